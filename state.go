package beaker

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/branched-services/go-beaker/teal"
)

// Protocol limits on declared state keys.
const (
	MaxGlobalKeys = 64
	MaxLocalKeys  = 16

	// BlobPageSize is the bytes stored under each blob key.
	BlobPageSize = 127
)

// StateKind identifies where a state value lives and how its keys are formed.
type StateKind uint8

const (
	// ScalarGlobal is one global key.
	ScalarGlobal StateKind = iota

	// ScalarLocal is one key in each opted-in account.
	ScalarLocal

	// ReservedGlobal reserves up to MaxKeys global keys sharing a prefix.
	ReservedGlobal

	// ReservedLocal reserves up to MaxKeys local keys sharing a prefix.
	ReservedLocal

	// BlobGlobal reserves BlobKeys global byte-slice keys as one blob.
	BlobGlobal

	// BlobLocal reserves BlobKeys local byte-slice keys as one blob.
	BlobLocal
)

func (k StateKind) String() string {
	switch k {
	case ScalarGlobal:
		return "global"
	case ScalarLocal:
		return "local"
	case ReservedGlobal:
		return "reserved-global"
	case ReservedLocal:
		return "reserved-local"
	case BlobGlobal:
		return "blob-global"
	case BlobLocal:
		return "blob-local"
	default:
		return fmt.Sprintf("StateKind(%d)", uint8(k))
	}
}

// Global reports whether the kind lives in application global state.
func (k StateKind) Global() bool {
	return k == ScalarGlobal || k == ReservedGlobal || k == BlobGlobal
}

// StateSchema counts the keys of each type an application needs.
type StateSchema struct {
	NumUints      int `json:"num_uints"`
	NumByteSlices int `json:"num_byte_slices"`
}

// Keys returns the total key count.
func (s StateSchema) Keys() int {
	return s.NumUints + s.NumByteSlices
}

func (s StateSchema) add(o StateSchema) StateSchema {
	return StateSchema{NumUints: s.NumUints + o.NumUints, NumByteSlices: s.NumByteSlices + o.NumByteSlices}
}

// StateDecl is an immutable state declaration. Build one with GlobalState,
// LocalState, ReservedGlobalState, ReservedLocalState, GlobalBlob or
// LocalBlob.
type StateDecl struct {
	Name        string
	Kind        StateKind
	Key         []byte
	Type        teal.Type
	Default     teal.Expr
	Static      bool
	MaxKeys     int
	BlobKeys    int
	Description string
}

// StateOption configures a StateDecl.
type StateOption func(*StateDecl)

// WithKey overrides the key (or key prefix) derived from the name.
func WithKey(key []byte) StateOption {
	return func(d *StateDecl) {
		d.Key = append([]byte(nil), key...)
	}
}

// WithDefault sets the value written by StateInitialize.
func WithDefault(v teal.Expr) StateOption {
	return func(d *StateDecl) {
		d.Default = v
	}
}

// Static makes StateSet fail once the global key holds a value.
func Static() StateOption {
	return func(d *StateDecl) {
		d.Static = true
	}
}

// WithStateDescription sets the description recorded in the app spec.
func WithStateDescription(s string) StateOption {
	return func(d *StateDecl) {
		d.Description = s
	}
}

func newDecl(name string, kind StateKind, t teal.Type, opts []StateOption) StateDecl {
	d := StateDecl{Name: name, Kind: kind, Key: []byte(name), Type: t}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// GlobalState declares a single global value.
func GlobalState(name string, t teal.Type, opts ...StateOption) StateDecl {
	return newDecl(name, ScalarGlobal, t, opts)
}

// LocalState declares a single value per opted-in account.
func LocalState(name string, t teal.Type, opts ...StateOption) StateDecl {
	return newDecl(name, ScalarLocal, t, opts)
}

// ReservedGlobalState reserves maxKeys global keys of type t. Keys are the
// name (or WithKey prefix) followed by the access key.
func ReservedGlobalState(name string, t teal.Type, maxKeys int, opts ...StateOption) StateDecl {
	d := newDecl(name, ReservedGlobal, t, opts)
	d.MaxKeys = maxKeys
	return d
}

// ReservedLocalState reserves maxKeys local keys of type t.
func ReservedLocalState(name string, t teal.Type, maxKeys int, opts ...StateOption) StateDecl {
	d := newDecl(name, ReservedLocal, t, opts)
	d.MaxKeys = maxKeys
	return d
}

// GlobalBlob reserves keys global byte-slice keys, named by the single
// bytes 0 .. keys-1.
func GlobalBlob(name string, keys int, opts ...StateOption) StateDecl {
	d := newDecl(name, BlobGlobal, teal.TypeBytes, opts)
	d.BlobKeys = keys
	return d
}

// LocalBlob reserves keys local byte-slice keys.
func LocalBlob(name string, keys int, opts ...StateOption) StateDecl {
	d := newDecl(name, BlobLocal, teal.TypeBytes, opts)
	d.BlobKeys = keys
	return d
}

// Schema returns the keys the declaration occupies.
func (d StateDecl) Schema() StateSchema {
	n := 1
	switch d.Kind {
	case ReservedGlobal, ReservedLocal:
		n = d.MaxKeys
	case BlobGlobal, BlobLocal:
		return StateSchema{NumByteSlices: d.BlobKeys}
	}
	if d.Type == teal.TypeUint64 {
		return StateSchema{NumUints: n}
	}
	return StateSchema{NumByteSlices: n}
}

func (d StateDecl) validate() error {
	if d.Type != teal.TypeUint64 && d.Type != teal.TypeBytes {
		return fmt.Errorf("%w: %s has stack type %s", ErrStateAccess, d.Name, d.Type)
	}
	switch d.Kind {
	case ReservedGlobal, ReservedLocal:
		if d.MaxKeys < 1 {
			return fmt.Errorf("%w: %s reserves %d keys", ErrStateAccess, d.Name, d.MaxKeys)
		}
	case BlobGlobal, BlobLocal:
		if d.BlobKeys < 1 || d.BlobKeys > 255 {
			return fmt.Errorf("%w: %s blob has %d keys", ErrStateAccess, d.Name, d.BlobKeys)
		}
	}
	if d.Static && d.Kind != ScalarGlobal {
		return fmt.Errorf("%w: %s: only global scalar values can be static", ErrStateAccess, d.Name)
	}
	if d.Default != nil && d.Default.Type() != d.Type {
		return fmt.Errorf("%w: %s default has type %s, want %s", ErrStateAccess, d.Name, d.Default.Type(), d.Type)
	}
	return nil
}

// State is the validated set of an application's declarations.
type State struct {
	decls []StateDecl
}

// NewState validates decls: names and scalar keys must be unique and each
// side must fit the protocol key limit.
func NewState(decls ...StateDecl) (*State, error) {
	names := make(map[string]bool, len(decls))
	keys := make(map[string]bool, len(decls))
	for _, d := range decls {
		if err := d.validate(); err != nil {
			return nil, err
		}
		if names[d.Name] {
			return nil, fmt.Errorf("%w: name %q", ErrDuplicateState, d.Name)
		}
		names[d.Name] = true
		if d.Kind == ScalarGlobal || d.Kind == ScalarLocal {
			k := fmt.Sprintf("%t/%x", d.Kind.Global(), d.Key)
			if keys[k] {
				return nil, fmt.Errorf("%w: key %q", ErrDuplicateState, d.Key)
			}
			keys[k] = true
		}
	}

	s := &State{decls: append([]StateDecl(nil), decls...)}
	global, local := s.Schema()
	if global.Keys() > MaxGlobalKeys {
		return nil, fmt.Errorf("%w: %d global keys (max %d)", ErrSchemaTooLarge, global.Keys(), MaxGlobalKeys)
	}
	if local.Keys() > MaxLocalKeys {
		return nil, fmt.Errorf("%w: %d local keys (max %d)", ErrSchemaTooLarge, local.Keys(), MaxLocalKeys)
	}
	return s, nil
}

// Decls returns the declarations in declaration order.
func (s *State) Decls() []StateDecl {
	return append([]StateDecl(nil), s.decls...)
}

// Lookup returns the declaration called name.
func (s *State) Lookup(name string) (StateDecl, bool) {
	return lo.Find(s.decls, func(d StateDecl) bool { return d.Name == name })
}

// Schema sums the global and local schemas of all declarations.
func (s *State) Schema() (global, local StateSchema) {
	for _, d := range s.decls {
		if d.Kind.Global() {
			global = global.add(d.Schema())
		} else {
			local = local.add(d.Schema())
		}
	}
	return global, local
}

// Access locates a value within a declaration.
type Access struct {
	// Account selects the account for local kinds. Nil means the sender.
	Account teal.Expr

	// Key is appended to the prefix of reserved kinds.
	Key teal.Expr
}

func (a Access) account() teal.Expr {
	if a.Account == nil {
		return teal.TxnSender()
	}
	return a.Account
}

func (d StateDecl) key(a Access) (teal.Expr, error) {
	switch d.Kind {
	case ScalarGlobal, ScalarLocal:
		return teal.Bytes(d.Key), nil
	case ReservedGlobal, ReservedLocal:
		if a.Key == nil {
			return nil, fmt.Errorf("%w: %s needs an access key", ErrStateAccess, d.Name)
		}
		if a.Key.Type() != teal.TypeBytes {
			return nil, fmt.Errorf("%w: %s access key has type %s", ErrStateAccess, d.Name, a.Key.Type())
		}
		return teal.Concat(teal.Bytes(d.Key), a.Key), nil
	default:
		return nil, fmt.Errorf("%w: %s is a %s; blob read and write are not provided", ErrStateAccess, d.Name, d.Kind)
	}
}

// StateGet returns an expression reading the value at a.
func StateGet(d StateDecl, a Access) (teal.Expr, error) {
	key, err := d.key(a)
	if err != nil {
		return nil, err
	}
	if d.Kind.Global() {
		return teal.AppGlobalGet(key, d.Type), nil
	}
	return teal.AppLocalGet(a.account(), key, d.Type), nil
}

// StateSet returns an expression writing v at a. Static values assert the
// key is still empty.
func StateSet(d StateDecl, a Access, v teal.Expr) (teal.Expr, error) {
	key, err := d.key(a)
	if err != nil {
		return nil, err
	}
	if v == nil || v.Type() != d.Type {
		got := "nil"
		if v != nil {
			got = v.Type().String()
		}
		return nil, fmt.Errorf("%w: %s expects %s, got %s", ErrStateAccess, d.Name, d.Type, got)
	}
	if !d.Kind.Global() {
		return teal.AppLocalPut(a.account(), key, v), nil
	}
	put := teal.AppGlobalPut(key, v)
	if d.Static {
		return teal.Seq(teal.Assert(teal.Not(teal.AppGlobalExists(teal.Bytes(d.Key)))), put), nil
	}
	return put, nil
}

// StateInitialize returns the expression that sets a declaration to its
// default, or nil when the kind has nothing to initialise. Scalars get their
// default (or the zero value); blobs get BlobPageSize zero bytes per key.
func StateInitialize(d StateDecl, a Access) (teal.Expr, error) {
	switch d.Kind {
	case ScalarGlobal, ScalarLocal:
		v := d.Default
		if v == nil {
			v = zeroExpr(d.Type)
		}
		key := teal.Bytes(d.Key)
		if d.Kind.Global() {
			return teal.AppGlobalPut(key, v), nil
		}
		return teal.AppLocalPut(a.account(), key, v), nil

	case BlobGlobal, BlobLocal:
		page := teal.Bytes(make([]byte, BlobPageSize))
		puts := make([]teal.Expr, 0, d.BlobKeys)
		for i := 0; i < d.BlobKeys; i++ {
			key := teal.Bytes([]byte{byte(i)})
			if d.Kind.Global() {
				puts = append(puts, teal.AppGlobalPut(key, page))
			} else {
				puts = append(puts, teal.AppLocalPut(a.account(), key, page))
			}
		}
		return teal.Seq(puts...), nil

	default:
		return nil, nil
	}
}

func zeroExpr(t teal.Type) teal.Expr {
	if t == teal.TypeBytes {
		return teal.Bytes(nil)
	}
	return teal.Int(0)
}

// InitializeGlobal returns the expression initialising every global
// declaration, in declaration order.
func (s *State) InitializeGlobal() (teal.Expr, error) {
	return s.initialize(true, Access{})
}

// InitializeLocal initialises every local declaration for account; a nil
// account means the sender.
func (s *State) InitializeLocal(account teal.Expr) (teal.Expr, error) {
	return s.initialize(false, Access{Account: account})
}

func (s *State) initialize(global bool, a Access) (teal.Expr, error) {
	var exprs []teal.Expr
	for _, d := range s.decls {
		if d.Kind.Global() != global {
			continue
		}
		e, err := StateInitialize(d, a)
		if err != nil {
			return nil, err
		}
		if e != nil {
			exprs = append(exprs, e)
		}
	}
	return teal.Seq(exprs...), nil
}
