package beaker

import (
	"context"
	"fmt"

	"github.com/branched-services/go-beaker/teal"
)

// Node is a unit of precompilation. Dependencies are compiled before the
// node's own step.
// This is a sealed interface - only AppPrecompile and LSigPrecompile implement it.
type Node interface {
	Name() string
	Dependencies() []Node
	Compiled() bool

	compile(ctx context.Context, c Compiler) error
}

// AppPrecompile compiles an application after everything it depends on.
// Approval and Clear are replaced on every compile.
type AppPrecompile struct {
	App      *Application
	Approval *Program
	Clear    *Program
}

// PrecompileApp returns the precompile node of app. Every call for the same
// application returns the same node.
func PrecompileApp(app *Application) *AppPrecompile {
	app.nodeOnce.Do(func() {
		app.node = &AppPrecompile{
			App:      app,
			Approval: NewProgram(""),
			Clear:    NewProgram(""),
		}
	})
	return app.node
}

func (p *AppPrecompile) Name() string         { return p.App.Name() }
func (p *AppPrecompile) Dependencies() []Node { return p.App.Precompiles() }

// Compiled reports whether both programs are assembled.
func (p *AppPrecompile) Compiled() bool {
	return p.Approval.Assembled() && p.Clear.Assembled()
}

func (p *AppPrecompile) compile(ctx context.Context, c Compiler) error {
	approvalSrc, clearSrc, err := p.App.Sources(ctx)
	if err != nil {
		return err
	}
	approval, clear := NewProgram(approvalSrc), NewProgram(clearSrc)
	if err := approval.Assemble(ctx, c); err != nil {
		return fmt.Errorf("approval program: %w", err)
	}
	if err := clear.Assemble(ctx, c); err != nil {
		return fmt.Errorf("clear program: %w", err)
	}
	p.Approval, p.Clear = approval, clear
	return nil
}

// CreateConfig holds the fields of an application create transaction for a
// compiled application.
type CreateConfig struct {
	GlobalSchema  StateSchema
	LocalSchema   StateSchema
	ApprovalPages [][]byte
	ClearPages    [][]byte
	ExtraPages    int
}

// CreateConfig returns what a parent needs to create this application.
func (p *AppPrecompile) CreateConfig() (*CreateConfig, error) {
	approval, err := p.Approval.Binary()
	if err != nil {
		return nil, err
	}
	clear, err := p.Clear.Binary()
	if err != nil {
		return nil, err
	}
	extra := ExtraPages(approval, clear)
	if extra > MaxExtraPages {
		return nil, fmt.Errorf("%w: %s needs %d extra pages (max %d)", ErrProgramTooLarge, p.Name(), extra, MaxExtraPages)
	}
	global, local := p.App.Schema()
	return &CreateConfig{
		GlobalSchema:  global,
		LocalSchema:   local,
		ApprovalPages: SplitPages(approval, PageSize),
		ClearPages:    SplitPages(clear, PageSize),
		ExtraPages:    extra,
	}, nil
}

// LSigPrecompile compiles a logic signature as a templated program.
type LSigPrecompile struct {
	LSig  *LogicSignature
	Logic *TemplatedProgram
}

// PrecompileLSig returns the precompile node of lsig. Every call for the same
// logic signature returns the same node.
func PrecompileLSig(lsig *LogicSignature) *LSigPrecompile {
	lsig.nodeOnce.Do(func() {
		lsig.node = &LSigPrecompile{LSig: lsig, Logic: &TemplatedProgram{Program: NewProgram("")}}
	})
	return lsig.node
}

func (p *LSigPrecompile) Name() string         { return p.LSig.Name() }
func (p *LSigPrecompile) Dependencies() []Node { return nil }
func (p *LSigPrecompile) Compiled() bool       { return p.Logic.Assembled() }

func (p *LSigPrecompile) compile(ctx context.Context, c Compiler) error {
	src, err := p.LSig.Source()
	if err != nil {
		return err
	}
	logic, err := NewTemplatedProgram(src, p.LSig.TemplateVariables()...)
	if err != nil {
		return err
	}
	if err := logic.Assemble(ctx, c); err != nil {
		return err
	}
	p.Logic = logic
	return nil
}

// Address returns the account address of the compiled logic signature.
// It is only meaningful when the signature has no template variables.
func (p *LSigPrecompile) Address() (string, error) {
	bin, err := p.Logic.Binary()
	if err != nil {
		return "", err
	}
	return LogicSigAddress(bin), nil
}

// TemplateAddress returns the account address of the signature populated
// with args.
func (p *LSigPrecompile) TemplateAddress(args ...any) (string, error) {
	bin, err := p.Logic.Populate(args...)
	if err != nil {
		return "", err
	}
	return LogicSigAddress(bin), nil
}

// TemplateHash returns an expression for the address digest of the
// signature populated with args at run time.
func (p *LSigPrecompile) TemplateHash(args ...teal.Expr) (teal.Expr, error) {
	return p.Logic.TemplateHash(args...)
}
