package beaker

import (
	"context"

	"github.com/ethereum/go-ethereum/log"

	"github.com/branched-services/go-beaker/teal"
)

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*coordinatorConfig)

// coordinatorConfig holds configuration for Coordinator.Compile.
type coordinatorConfig struct {
	concurrency int
	logger      log.Logger
}

// defaultCoordinatorConfig returns the default coordinator configuration.
func defaultCoordinatorConfig() *coordinatorConfig {
	return &coordinatorConfig{
		concurrency: 1,
		logger:      log.Root(),
	}
}

// WithConcurrency bounds how many compile steps run at once. The default of
// 1 compiles strictly sequentially in declaration order. Values below 1 are
// treated as 1.
func WithConcurrency(n int) CoordinatorOption {
	return func(c *coordinatorConfig) {
		if n < 1 {
			n = 1
		}
		c.concurrency = n
	}
}

// WithLogger sets the logger used for compile progress.
func WithLogger(l log.Logger) CoordinatorOption {
	return func(c *coordinatorConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// AppOption configures an Application.
type AppOption func(*appConfig)

// SourceFunc produces approval and clear TEAL once an application's
// precompiles have been compiled.
type SourceFunc func(ctx context.Context) (approval, clear string, err error)

type appConfig struct {
	description string
	version     uint64
	source      SourceFunc
	defaults    bool
}

func defaultAppConfig() *appConfig {
	return &appConfig{
		version:  teal.DefaultVersion,
		defaults: true,
	}
}

// WithDescription sets the description recorded in the contract.
func WithDescription(d string) AppOption {
	return func(c *appConfig) {
		c.description = d
	}
}

// WithVersion sets the AVM version of generated programs.
func WithVersion(v uint64) AppOption {
	return func(c *appConfig) {
		c.version = v
	}
}

// WithSource replaces router generated programs with fn.
func WithSource(fn SourceFunc) AppOption {
	return func(c *appConfig) {
		c.source = fn
	}
}

// WithoutDefaultBareActions drops the default create, update and delete
// handlers.
func WithoutDefaultBareActions() AppOption {
	return func(c *appConfig) {
		c.defaults = false
	}
}

// MethodOption configures a Method or bare action.
type MethodOption func(*methodConfig)

type methodConfig struct {
	authorize   teal.Expr
	readOnly    bool
	description string
}

// Authorize guards the handler with pred, which must be a uint64 expression.
func Authorize(pred teal.Expr) MethodOption {
	return func(c *methodConfig) {
		c.authorize = pred
	}
}

// ReadOnly marks a method as not modifying state.
func ReadOnly() MethodOption {
	return func(c *methodConfig) {
		c.readOnly = true
	}
}

// Describe sets the method description.
func Describe(d string) MethodOption {
	return func(c *methodConfig) {
		c.description = d
	}
}

// LSigOption configures a LogicSignature.
type LSigOption func(*lsigConfig)

type lsigConfig struct {
	vars    []TemplateVariable
	version uint64
}

func defaultLSigConfig() *lsigConfig {
	return &lsigConfig{version: teal.DefaultVersion}
}

// WithTemplateVariables declares the template variables of a logic
// signature, in argument order.
func WithTemplateVariables(vars ...TemplateVariable) LSigOption {
	return func(c *lsigConfig) {
		c.vars = append(c.vars, vars...)
	}
}

// WithLSigVersion sets the AVM version of a generated logic signature.
func WithLSigVersion(v uint64) LSigOption {
	return func(c *lsigConfig) {
		c.version = v
	}
}
