package beaker

import (
	"sync"

	"github.com/branched-services/go-beaker/teal"
)

// LogicSignature is a stateless program, written as an expression or as
// TEAL source, with optional template variables.
type LogicSignature struct {
	name   string
	expr   teal.Expr
	source string
	cfg    *lsigConfig

	nodeOnce sync.Once
	node     *LSigPrecompile
}

// NewLogicSignature creates a logic signature from an expression. Template
// variables appear in it through TemplateVariable.Expr.
func NewLogicSignature(name string, expr teal.Expr, opts ...LSigOption) *LogicSignature {
	cfg := defaultLSigConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &LogicSignature{name: name, expr: expr, cfg: cfg}
}

// NewLogicSignatureFromSource creates a logic signature from TEAL source.
// Each template variable needs its placeholder statement on a line of its own.
func NewLogicSignatureFromSource(name, source string, opts ...LSigOption) *LogicSignature {
	cfg := defaultLSigConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &LogicSignature{name: name, source: source, cfg: cfg}
}

// Name returns the logic signature name.
func (l *LogicSignature) Name() string { return l.name }

// TemplateVariables returns the declared template variables in order.
func (l *LogicSignature) TemplateVariables() []TemplateVariable {
	return append([]TemplateVariable(nil), l.cfg.vars...)
}

// Source returns the TEAL source, compiling the expression if needed.
func (l *LogicSignature) Source() (string, error) {
	if l.expr == nil {
		return l.source, nil
	}
	return teal.Compile(l.expr, teal.WithVersion(l.cfg.version))
}
