package beaker

import (
	"context"
	"fmt"
	"sync"

	"github.com/branched-services/go-beaker/teal"
)

// OnComplete is the OnCompletion action of an application call.
type OnComplete uint64

const (
	NoOp OnComplete = iota
	OptIn
	CloseOut
	ClearState
	UpdateApplication
	DeleteApplication
)

func (oc OnComplete) String() string {
	switch oc {
	case NoOp:
		return "no_op"
	case OptIn:
		return "opt_in"
	case CloseOut:
		return "close_out"
	case ClearState:
		return "clear_state"
	case UpdateApplication:
		return "update_application"
	case DeleteApplication:
		return "delete_application"
	default:
		return fmt.Sprintf("on_complete(%d)", uint64(oc))
	}
}

type bareKey struct {
	oc     OnComplete
	create bool
}

type bareAction struct {
	key     bareKey
	handler BareHandler
	cfg     *methodConfig
}

// Application declares an application's methods, bare actions, state and
// the precompiles its programs embed. Register everything before compiling;
// an Application is not safe for concurrent registration.
type Application struct {
	name string
	cfg  *appConfig

	methods     []*Method
	selectors   map[[4]byte]*Method
	bare        map[bareKey]*bareAction
	bareOrder   []bareKey
	state       *State
	precompiles []Node

	nodeOnce sync.Once
	node     *AppPrecompile
}

// NewApplication creates an application. Unless WithoutDefaultBareActions is
// given, a bare create approves and bare update and delete reject.
func NewApplication(name string, opts ...AppOption) *Application {
	cfg := defaultAppConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	a := &Application{
		name:      name,
		cfg:       cfg,
		selectors: make(map[[4]byte]*Method),
		bare:      make(map[bareKey]*bareAction),
		state:     &State{},
	}
	if cfg.defaults {
		a.BareCreate(func() (teal.Expr, error) { return teal.Approve(), nil })
		a.setBare(bareKey{oc: UpdateApplication}, func() (teal.Expr, error) { return teal.Reject(), nil }, nil)
		a.setBare(bareKey{oc: DeleteApplication}, func() (teal.Expr, error) { return teal.Reject(), nil }, nil)
	}
	return a
}

// Name returns the application name.
func (a *Application) Name() string { return a.name }

// Description returns the application description.
func (a *Application) Description() string { return a.cfg.description }

// AddMethod registers m. Selectors must be unique.
func (a *Application) AddMethod(m *Method) error {
	if prev, ok := a.selectors[m.selector]; ok {
		return fmt.Errorf("%w: %s and %s", ErrDuplicateMethod, prev.signature, m.signature)
	}
	a.selectors[m.selector] = m
	a.methods = append(a.methods, m)
	return nil
}

// External parses signature and registers a method handled by h.
func (a *Application) External(signature string, h Handler, opts ...MethodOption) (*Method, error) {
	m, err := NewMethod(signature, h, opts...)
	if err != nil {
		return nil, err
	}
	if err := a.AddMethod(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Methods returns the registered methods in registration order.
func (a *Application) Methods() []*Method {
	return append([]*Method(nil), a.methods...)
}

// BareCreate sets the action for a bare NoOp call that creates the
// application.
func (a *Application) BareCreate(h BareHandler, opts ...MethodOption) {
	a.setBare(bareKey{oc: NoOp, create: true}, h, opts)
}

// Bare sets the action for a bare call with the given OnCompletion on an
// existing application. ClearState is handled by the clear program and
// cannot be set here.
func (a *Application) Bare(oc OnComplete, h BareHandler, opts ...MethodOption) error {
	if oc == ClearState || oc > DeleteApplication {
		return fmt.Errorf("beaker: no bare action for %s", oc)
	}
	a.setBare(bareKey{oc: oc}, h, opts)
	return nil
}

func (a *Application) setBare(key bareKey, h BareHandler, opts []MethodOption) {
	cfg := &methodConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if _, ok := a.bare[key]; !ok {
		a.bareOrder = append(a.bareOrder, key)
	}
	a.bare[key] = &bareAction{key: key, handler: h, cfg: cfg}
}

// DeclareState adds state declarations.
func (a *Application) DeclareState(decls ...StateDecl) error {
	s, err := NewState(append(a.state.Decls(), decls...)...)
	if err != nil {
		return err
	}
	a.state = s
	return nil
}

// State returns the application's state declarations.
func (a *Application) State() *State { return a.state }

// Schema returns the global and local state schemas.
func (a *Application) Schema() (global, local StateSchema) {
	return a.state.Schema()
}

// Get reads the declaration called name. Local values default to the
// sender; reserved values need a.Key.
func (a *Application) Get(name string, acc Access) (teal.Expr, error) {
	d, ok := a.state.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: no state named %q", ErrStateAccess, name)
	}
	return StateGet(d, acc)
}

// Set writes v to the declaration called name.
func (a *Application) Set(name string, acc Access, v teal.Expr) (teal.Expr, error) {
	d, ok := a.state.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: no state named %q", ErrStateAccess, name)
	}
	return StateSet(d, acc, v)
}

// AddPrecompile makes n a dependency of the application and returns it.
func (a *Application) AddPrecompile(n Node) Node {
	a.precompiles = append(a.precompiles, n)
	return n
}

// Precompiles returns the application's dependencies in declaration order.
func (a *Application) Precompiles() []Node {
	return append([]Node(nil), a.precompiles...)
}

// Sources returns the approval and clear TEAL. Handlers run here, so
// precompiles they embed must already be compiled.
func (a *Application) Sources(ctx context.Context) (approval, clear string, err error) {
	if a.cfg.source != nil {
		return a.cfg.source(ctx)
	}
	approvalExpr, err := a.ApprovalExpr()
	if err != nil {
		return "", "", err
	}
	approval, err = teal.Compile(approvalExpr, teal.WithVersion(a.cfg.version))
	if err != nil {
		return "", "", fmt.Errorf("approval program: %w", err)
	}
	clear, err = teal.Compile(a.ClearExpr(), teal.WithVersion(a.cfg.version))
	if err != nil {
		return "", "", fmt.Errorf("clear program: %w", err)
	}
	return approval, clear, nil
}

// Build compiles the application and everything it depends on and returns
// its specification.
func (a *Application) Build(ctx context.Context, c Compiler, opts ...CoordinatorOption) (*ApplicationSpecification, error) {
	node := PrecompileApp(a)
	if err := Compile(ctx, c, node, opts...); err != nil {
		return nil, err
	}
	return node.Spec()
}
