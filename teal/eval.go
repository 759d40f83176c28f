package teal

import (
	"crypto/sha512"
	"errors"
)

// DefaultMaxSteps bounds loop iterations during evaluation.
const DefaultMaxSteps = 1 << 20

// Env is the transaction and ledger context an expression is evaluated in.
type Env struct {
	// Args are the application call arguments.
	Args [][]byte

	// LsigArgs are the logic signature arguments.
	LsigArgs [][]byte

	// Templates supplies values for Tmpl placeholders, by variable name.
	Templates map[string]Value

	Sender                    []byte
	ApplicationID             uint64
	OnCompletion              uint64
	CreatorAddress            []byte
	CurrentApplicationAddress []byte

	// Globals is the application's global state by key.
	Globals map[string]Value

	// Locals is per-account local state, keyed by account then key.
	Locals map[string]map[string]Value

	// Logs collects log output in order.
	Logs [][]byte

	// MaxSteps overrides DefaultMaxSteps when positive.
	MaxSteps int
}

type frame struct {
	env      *Env
	scratch  map[*ScratchVar]Value
	steps    int
	maxSteps int
}

func newFrame(env *Env) *frame {
	max := DefaultMaxSteps
	if env.MaxSteps > 0 {
		max = env.MaxSteps
	}
	return &frame{
		env:      env,
		scratch:  make(map[*ScratchVar]Value),
		maxSteps: max,
	}
}

func (f *frame) tick() error {
	f.steps++
	if f.steps > f.maxSteps {
		return ErrStepLimit
	}
	return nil
}

// Eval type-checks root and evaluates it against env. A return opcode ends
// evaluation with its operand; otherwise the value of root is returned.
// A nil env evaluates against an empty context.
func Eval(root Expr, env *Env) (Value, error) {
	if env == nil {
		env = &Env{}
	}
	if root == nil {
		return Value{}, &TypeError{Op: "program", Expected: TypeUint64, Got: TypeNone}
	}
	if err := root.check(); err != nil {
		return Value{}, err
	}

	v, err := root.eval(newFrame(env))
	var ret *returnSignal
	if errors.As(err, &ret) {
		return ret.value, nil
	}
	if err != nil {
		return Value{}, err
	}
	return v, nil
}

// Approved reports whether a program result approves the transaction.
func Approved(v Value) bool {
	return v.typ == TypeUint64 && v.u != 0
}

func sha512_256(b []byte) [32]byte {
	return sha512.Sum512_256(b)
}
