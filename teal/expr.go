package teal

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Expr is a node in a TEAL expression tree.
// This is a sealed interface - only types within this package can implement it.
type Expr interface {
	// isExpr is unexported to seal the interface.
	isExpr()

	// Type returns the stack type the expression produces.
	Type() Type

	check() error
	emit(e *emitter)
	eval(f *frame) (Value, error)
}

// intExpr is a uint64 constant.
type intExpr struct {
	v uint64
}

// Int returns a uint64 constant.
func Int(v uint64) Expr {
	return &intExpr{v: v}
}

func (x *intExpr) isExpr()      {}
func (x *intExpr) Type() Type   { return TypeUint64 }
func (x *intExpr) check() error { return nil }

func (x *intExpr) emit(e *emitter) {
	e.line("pushint " + strconv.FormatUint(x.v, 10))
}

func (x *intExpr) eval(*frame) (Value, error) {
	return UintValue(x.v), nil
}

// bytesExpr is a byte string constant.
type bytesExpr struct {
	b []byte
}

// Bytes returns a byte string constant holding a copy of b.
func Bytes(b []byte) Expr {
	return &bytesExpr{b: append([]byte{}, b...)}
}

// Str returns a byte string constant holding the UTF-8 bytes of s.
func Str(s string) Expr {
	return &bytesExpr{b: []byte(s)}
}

func (x *bytesExpr) isExpr()      {}
func (x *bytesExpr) Type() Type   { return TypeBytes }
func (x *bytesExpr) check() error { return nil }

func (x *bytesExpr) emit(e *emitter) {
	if len(x.b) == 0 {
		e.line(`pushbytes ""`)
		return
	}
	e.line("pushbytes 0x" + hex.EncodeToString(x.b))
}

func (x *bytesExpr) eval(*frame) (Value, error) {
	return bval(x.b), nil
}

// tmplExpr is a template placeholder substituted after assembly.
type tmplExpr struct {
	name  string
	token string
	typ   Type
}

// Tmpl returns a placeholder for the template variable name.
// It renders as "pushbytes TMPL_NAME // TMPL_NAME" (or pushint for uint64).
func Tmpl(name string, t Type) Expr {
	return &tmplExpr{name: name, token: TemplateToken(name), typ: t}
}

func (x *tmplExpr) isExpr()    {}
func (x *tmplExpr) Type() Type { return x.typ }

func (x *tmplExpr) check() error {
	if x.typ != TypeBytes && x.typ != TypeUint64 {
		return &TypeError{Op: "template " + x.token, Expected: TypeBytes, Got: x.typ}
	}
	return nil
}

func (x *tmplExpr) emit(e *emitter) {
	op := "pushint"
	if x.typ == TypeBytes {
		op = "pushbytes"
	}
	e.line(fmt.Sprintf("%s %s // %s", op, x.token, x.token))
}

func (x *tmplExpr) eval(f *frame) (Value, error) {
	v, ok := f.env.Templates[x.name]
	if !ok {
		return Value{}, fmt.Errorf("%w: template value %q", ErrMissingInput, x.name)
	}
	if v.typ != x.typ {
		return Value{}, &TypeError{Op: "template " + x.token, Expected: x.typ, Got: v.typ}
	}
	return v, nil
}

// opExpr is an instruction sequence that consumes its arguments from the
// stack and leaves at most one result.
type opExpr struct {
	ops       []string
	args      []Expr
	in        []Type
	out       Type
	sameTypes bool
	run       func(f *frame, vals []Value) (Value, error)
}

func (x *opExpr) isExpr()    {}
func (x *opExpr) Type() Type { return x.out }

func (x *opExpr) name() string {
	return strings.Fields(x.ops[len(x.ops)-1])[0]
}

func (x *opExpr) check() error {
	for i, a := range x.args {
		if a == nil {
			return &TypeError{Op: x.name(), Index: i, Expected: x.in[i], Got: TypeNone}
		}
		if err := a.check(); err != nil {
			return err
		}
		got := a.Type()
		if x.in[i] == anyType {
			if got == TypeNone {
				return &TypeError{Op: x.name(), Index: i, Expected: anyType, Got: got}
			}
			continue
		}
		if got != x.in[i] {
			return &TypeError{Op: x.name(), Index: i, Expected: x.in[i], Got: got}
		}
	}
	if x.sameTypes && x.args[0].Type() != x.args[1].Type() {
		return &TypeError{Op: x.name(), Index: 1, Expected: x.args[0].Type(), Got: x.args[1].Type()}
	}
	return nil
}

func (x *opExpr) emit(e *emitter) {
	for _, a := range x.args {
		a.emit(e)
	}
	for _, op := range x.ops {
		e.line(op)
	}
}

func (x *opExpr) eval(f *frame) (Value, error) {
	vals := make([]Value, len(x.args))
	for i, a := range x.args {
		v, err := a.eval(f)
		if err != nil {
			return Value{}, err
		}
		vals[i] = v
	}
	return x.run(f, vals)
}

func op(mnemonic string, out Type, run func(*frame, []Value) (Value, error), args []Expr, in ...Type) *opExpr {
	return &opExpr{ops: []string{mnemonic}, args: args, in: in, out: out, run: run}
}

func constSmall(e Expr) (uint64, bool) {
	c, ok := e.(*intExpr)
	if !ok || c.v > 255 {
		return 0, false
	}
	return c.v, true
}

// AppArg returns application call argument i.
func AppArg(i uint8) Expr {
	return op(fmt.Sprintf("txna ApplicationArgs %d", i), TypeBytes, func(f *frame, _ []Value) (Value, error) {
		if int(i) >= len(f.env.Args) {
			return Value{}, fmt.Errorf("%w: application arg %d", ErrMissingInput, i)
		}
		return bval(f.env.Args[i]), nil
	}, nil)
}

// Arg returns logic signature argument i.
func Arg(i uint8) Expr {
	return op(fmt.Sprintf("arg %d", i), TypeBytes, func(f *frame, _ []Value) (Value, error) {
		if int(i) >= len(f.env.LsigArgs) {
			return Value{}, fmt.Errorf("%w: lsig arg %d", ErrMissingInput, i)
		}
		return bval(f.env.LsigArgs[i]), nil
	}, nil)
}

// TxnSender is the sender of the current transaction.
func TxnSender() Expr {
	return op("txn Sender", TypeBytes, func(f *frame, _ []Value) (Value, error) {
		return bval(f.env.Sender), nil
	}, nil)
}

// TxnApplicationID is the called application, zero during creation.
func TxnApplicationID() Expr {
	return op("txn ApplicationID", TypeUint64, func(f *frame, _ []Value) (Value, error) {
		return UintValue(f.env.ApplicationID), nil
	}, nil)
}

// TxnOnCompletion is the OnCompletion action of the current transaction.
func TxnOnCompletion() Expr {
	return op("txn OnCompletion", TypeUint64, func(f *frame, _ []Value) (Value, error) {
		return UintValue(f.env.OnCompletion), nil
	}, nil)
}

// TxnNumAppArgs is the number of application call arguments.
func TxnNumAppArgs() Expr {
	return op("txn NumAppArgs", TypeUint64, func(f *frame, _ []Value) (Value, error) {
		return UintValue(uint64(len(f.env.Args))), nil
	}, nil)
}

// GlobalCreatorAddress is the creator of the current application.
func GlobalCreatorAddress() Expr {
	return op("global CreatorAddress", TypeBytes, func(f *frame, _ []Value) (Value, error) {
		return bval(f.env.CreatorAddress), nil
	}, nil)
}

// GlobalCurrentApplicationID is the ID of the running application.
func GlobalCurrentApplicationID() Expr {
	return op("global CurrentApplicationID", TypeUint64, func(f *frame, _ []Value) (Value, error) {
		return UintValue(f.env.ApplicationID), nil
	}, nil)
}

// GlobalCurrentApplicationAddress is the account of the running application.
func GlobalCurrentApplicationAddress() Expr {
	return op("global CurrentApplicationAddress", TypeBytes, func(f *frame, _ []Value) (Value, error) {
		return bval(f.env.CurrentApplicationAddress), nil
	}, nil)
}

// Concat joins byte strings left to right.
func Concat(first, second Expr, rest ...Expr) Expr {
	out := concat2(first, second)
	for _, r := range rest {
		out = concat2(out, r)
	}
	return out
}

func concat2(a, b Expr) Expr {
	return op("concat", TypeBytes, func(_ *frame, v []Value) (Value, error) {
		n := len(v[0].b) + len(v[1].b)
		if n > MaxBytesLength {
			return Value{}, evalErrorf("concat", "result length %d exceeds %d", n, MaxBytesLength)
		}
		out := make([]byte, 0, n)
		out = append(out, v[0].b...)
		return bval(append(out, v[1].b...)), nil
	}, []Expr{a, b}, TypeBytes, TypeBytes)
}

func slice(opName string, b []byte, start, end uint64) (Value, error) {
	if start > end || end > uint64(len(b)) {
		return Value{}, evalErrorf(opName, "range [%d:%d] out of bounds for length %d", start, end, len(b))
	}
	return bval(b[start:end]), nil
}

// Substring returns b[start:end].
func Substring(b, start, end Expr) Expr {
	s, sok := constSmall(start)
	en, eok := constSmall(end)
	if sok && eok && s <= en {
		return op(fmt.Sprintf("substring %d %d", s, en), TypeBytes, func(_ *frame, v []Value) (Value, error) {
			return slice("substring", v[0].b, s, en)
		}, []Expr{b}, TypeBytes)
	}
	return op("substring3", TypeBytes, func(_ *frame, v []Value) (Value, error) {
		return slice("substring3", v[0].b, v[1].u, v[2].u)
	}, []Expr{b, start, end}, TypeBytes, TypeUint64, TypeUint64)
}

// Suffix returns b[start:].
func Suffix(b, start Expr) Expr {
	x := op("substring3", TypeBytes, func(_ *frame, v []Value) (Value, error) {
		return slice("substring3", v[0].b, v[1].u, uint64(len(v[0].b)))
	}, []Expr{b, start}, TypeBytes, TypeUint64)
	x.ops = []string{"dig 1", "len", "substring3"}
	return x
}

// Extract returns length bytes of b starting at start.
func Extract(b, start, length Expr) Expr {
	s, sok := constSmall(start)
	l, lok := constSmall(length)
	if sok && lok && l > 0 {
		return op(fmt.Sprintf("extract %d %d", s, l), TypeBytes, func(_ *frame, v []Value) (Value, error) {
			return slice("extract", v[0].b, s, s+l)
		}, []Expr{b}, TypeBytes)
	}
	return op("extract3", TypeBytes, func(_ *frame, v []Value) (Value, error) {
		end := v[1].u + v[2].u
		if end < v[1].u {
			return Value{}, evalErrorf("extract3", "range overflows")
		}
		return slice("extract3", v[0].b, v[1].u, end)
	}, []Expr{b, start, length}, TypeBytes, TypeUint64, TypeUint64)
}

// Len returns the length of a byte string.
func Len(b Expr) Expr {
	return op("len", TypeUint64, func(_ *frame, v []Value) (Value, error) {
		return UintValue(uint64(len(v[0].b))), nil
	}, []Expr{b}, TypeBytes)
}

// Itob converts an integer to its 8-byte big-endian form.
func Itob(n Expr) Expr {
	return op("itob", TypeBytes, func(_ *frame, v []Value) (Value, error) {
		out := make([]byte, 8)
		for i := 7; i >= 0; i-- {
			out[i] = byte(v[0].u >> (8 * (7 - i)))
		}
		return bval(out), nil
	}, []Expr{n}, TypeUint64)
}

// Btoi converts a big-endian byte string of at most 8 bytes to an integer.
func Btoi(b Expr) Expr {
	return op("btoi", TypeUint64, func(_ *frame, v []Value) (Value, error) {
		if len(v[0].b) > 8 {
			return Value{}, evalErrorf("btoi", "input length %d exceeds 8", len(v[0].b))
		}
		var n uint64
		for _, c := range v[0].b {
			n = n<<8 | uint64(c)
		}
		return UintValue(n), nil
	}, []Expr{b}, TypeBytes)
}

func arith(mnemonic string, a, b Expr, fn func(x, y uint64) (uint64, error)) Expr {
	return op(mnemonic, TypeUint64, func(_ *frame, v []Value) (Value, error) {
		r, err := fn(v[0].u, v[1].u)
		if err != nil {
			return Value{}, err
		}
		return UintValue(r), nil
	}, []Expr{a, b}, TypeUint64, TypeUint64)
}

func boolean(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// Add returns a + b, failing on overflow.
func Add(a, b Expr) Expr {
	return arith("+", a, b, func(x, y uint64) (uint64, error) {
		if x+y < x {
			return 0, evalErrorf("+", "overflow")
		}
		return x + y, nil
	})
}

// Minus returns a - b, failing on underflow.
func Minus(a, b Expr) Expr {
	return arith("-", a, b, func(x, y uint64) (uint64, error) {
		if y > x {
			return 0, evalErrorf("-", "underflow")
		}
		return x - y, nil
	})
}

// BitwiseAnd returns a & b.
func BitwiseAnd(a, b Expr) Expr {
	return arith("&", a, b, func(x, y uint64) (uint64, error) { return x & y, nil })
}

// BitwiseOr returns a | b.
func BitwiseOr(a, b Expr) Expr {
	return arith("|", a, b, func(x, y uint64) (uint64, error) { return x | y, nil })
}

// ShiftRight returns a >> b.
func ShiftRight(a, b Expr) Expr {
	return arith("shr", a, b, func(x, y uint64) (uint64, error) {
		if y > 63 {
			return 0, evalErrorf("shr", "shift %d out of range", y)
		}
		return x >> y, nil
	})
}

// Lt returns a < b.
func Lt(a, b Expr) Expr {
	return arith("<", a, b, func(x, y uint64) (uint64, error) { return boolean(x < y), nil })
}

// Ge returns a >= b.
func Ge(a, b Expr) Expr {
	return arith(">=", a, b, func(x, y uint64) (uint64, error) { return boolean(x >= y), nil })
}

// And returns a && b.
func And(a, b Expr) Expr {
	return arith("&&", a, b, func(x, y uint64) (uint64, error) { return boolean(x != 0 && y != 0), nil })
}

// Or returns a || b.
func Or(a, b Expr) Expr {
	return arith("||", a, b, func(x, y uint64) (uint64, error) { return boolean(x != 0 || y != 0), nil })
}

// Not returns !a.
func Not(a Expr) Expr {
	return op("!", TypeUint64, func(_ *frame, v []Value) (Value, error) {
		return UintValue(boolean(v[0].u == 0)), nil
	}, []Expr{a}, TypeUint64)
}

// Eq compares two values of the same type.
func Eq(a, b Expr) Expr {
	x := op("==", TypeUint64, func(_ *frame, v []Value) (Value, error) {
		return UintValue(boolean(v[0].Equal(v[1]))), nil
	}, []Expr{a, b}, anyType, anyType)
	x.sameTypes = true
	return x
}

// Neq is the negation of Eq.
func Neq(a, b Expr) Expr {
	x := op("!=", TypeUint64, func(_ *frame, v []Value) (Value, error) {
		return UintValue(boolean(!v[0].Equal(v[1]))), nil
	}, []Expr{a, b}, anyType, anyType)
	x.sameTypes = true
	return x
}

// Sha512_256 hashes a byte string with SHA-512/256.
func Sha512_256(b Expr) Expr {
	return op("sha512_256", TypeBytes, func(_ *frame, v []Value) (Value, error) {
		sum := sha512_256(v[0].b)
		return bval(sum[:]), nil
	}, []Expr{b}, TypeBytes)
}

// Assert fails the program when cond is zero.
func Assert(cond Expr) Expr {
	return op("assert", TypeNone, func(_ *frame, v []Value) (Value, error) {
		if v[0].u == 0 {
			return Value{}, ErrAssertionFailed
		}
		return Value{}, nil
	}, []Expr{cond}, TypeUint64)
}

// Log records a byte string in the transaction log.
func Log(b Expr) Expr {
	return op("log", TypeNone, func(f *frame, v []Value) (Value, error) {
		f.env.Logs = append(f.env.Logs, append([]byte{}, v[0].b...))
		return Value{}, nil
	}, []Expr{b}, TypeBytes)
}

// Return ends the program with the given result.
func Return(result Expr) Expr {
	return op("return", TypeNone, func(_ *frame, v []Value) (Value, error) {
		return Value{}, &returnSignal{value: v[0]}
	}, []Expr{result}, TypeUint64)
}

// Approve ends the program successfully.
func Approve() Expr {
	return Return(Int(1))
}

// Reject ends the program unsuccessfully.
func Reject() Expr {
	return Return(Int(0))
}

// Err fails the program immediately.
func Err() Expr {
	return op("err", TypeNone, func(*frame, []Value) (Value, error) {
		return Value{}, ErrRejected
	}, nil)
}
