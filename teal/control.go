package teal

import (
	"fmt"
)

// ScratchVar is a named scratch space slot. Slots are assigned when the
// program is compiled, in order of first use.
type ScratchVar struct {
	typ Type
}

// NewScratchVar declares a scratch variable holding values of type t.
func NewScratchVar(t Type) *ScratchVar {
	return &ScratchVar{typ: t}
}

// Type returns the declared type of the slot.
func (s *ScratchVar) Type() Type {
	return s.typ
}

// Store writes v into the slot.
func (s *ScratchVar) Store(v Expr) Expr {
	return &storeExpr{slot: s, value: v}
}

// Load reads the slot.
func (s *ScratchVar) Load() Expr {
	return &loadExpr{slot: s}
}

type storeExpr struct {
	slot  *ScratchVar
	value Expr
}

func (x *storeExpr) isExpr()    {}
func (x *storeExpr) Type() Type { return TypeNone }

func (x *storeExpr) check() error {
	if x.value == nil {
		return &TypeError{Op: "store", Expected: x.slot.typ, Got: TypeNone}
	}
	if err := x.value.check(); err != nil {
		return err
	}
	if x.value.Type() != x.slot.typ {
		return &TypeError{Op: "store", Expected: x.slot.typ, Got: x.value.Type()}
	}
	return nil
}

func (x *storeExpr) emit(e *emitter) {
	x.value.emit(e)
	e.line(fmt.Sprintf("store %d", e.slot(x.slot)))
}

func (x *storeExpr) eval(f *frame) (Value, error) {
	v, err := x.value.eval(f)
	if err != nil {
		return Value{}, err
	}
	f.scratch[x.slot] = v
	return Value{}, nil
}

type loadExpr struct {
	slot *ScratchVar
}

func (x *loadExpr) isExpr()      {}
func (x *loadExpr) Type() Type   { return x.slot.typ }
func (x *loadExpr) check() error { return nil }

func (x *loadExpr) emit(e *emitter) {
	e.line(fmt.Sprintf("load %d", e.slot(x.slot)))
}

func (x *loadExpr) eval(f *frame) (Value, error) {
	if v, ok := f.scratch[x.slot]; ok {
		return v, nil
	}
	return zeroValue(x.slot.typ), nil
}

// seqExpr evaluates expressions in order and yields the last one.
type seqExpr struct {
	exprs []Expr
}

// Seq runs exprs in order. Every expression but the last must have
// TypeNone; the sequence has the type of the last.
func Seq(exprs ...Expr) Expr {
	return &seqExpr{exprs: exprs}
}

func (x *seqExpr) isExpr() {}

func (x *seqExpr) Type() Type {
	if len(x.exprs) == 0 {
		return TypeNone
	}
	return x.exprs[len(x.exprs)-1].Type()
}

func (x *seqExpr) check() error {
	for i, ex := range x.exprs {
		if ex == nil {
			return &TypeError{Op: "seq", Index: i, Expected: TypeNone, Got: TypeNone}
		}
		if err := ex.check(); err != nil {
			return err
		}
		if i < len(x.exprs)-1 && ex.Type() != TypeNone {
			return &TypeError{Op: "seq", Index: i, Expected: TypeNone, Got: ex.Type()}
		}
	}
	return nil
}

func (x *seqExpr) emit(e *emitter) {
	for _, ex := range x.exprs {
		ex.emit(e)
	}
}

func (x *seqExpr) eval(f *frame) (Value, error) {
	var last Value
	for _, ex := range x.exprs {
		v, err := ex.eval(f)
		if err != nil {
			return Value{}, err
		}
		last = v
	}
	return last, nil
}

type ifExpr struct {
	cond, then, els Expr
}

// If evaluates then when cond is non-zero, otherwise els. A nil els is
// allowed only when then has TypeNone.
func If(cond, then, els Expr) Expr {
	return &ifExpr{cond: cond, then: then, els: els}
}

func (x *ifExpr) isExpr()    {}
func (x *ifExpr) Type() Type { return x.then.Type() }

func (x *ifExpr) check() error {
	if x.cond == nil || x.then == nil {
		return &TypeError{Op: "if", Expected: TypeUint64, Got: TypeNone}
	}
	for _, ex := range []Expr{x.cond, x.then, x.els} {
		if ex == nil {
			continue
		}
		if err := ex.check(); err != nil {
			return err
		}
	}
	if x.cond.Type() != TypeUint64 {
		return &TypeError{Op: "if", Expected: TypeUint64, Got: x.cond.Type()}
	}
	if x.els == nil {
		if x.then.Type() != TypeNone {
			return &TypeError{Op: "if", Index: 1, Expected: TypeNone, Got: x.then.Type()}
		}
		return nil
	}
	if x.els.Type() != x.then.Type() {
		return &TypeError{Op: "if", Index: 2, Expected: x.then.Type(), Got: x.els.Type()}
	}
	return nil
}

func (x *ifExpr) emit(e *emitter) {
	elseLabel, endLabel := e.label("if_else"), e.label("if_end")
	x.cond.emit(e)
	if x.els == nil {
		e.line("bz " + endLabel)
		x.then.emit(e)
		e.line(endLabel + ":")
		return
	}
	e.line("bz " + elseLabel)
	x.then.emit(e)
	e.line("b " + endLabel)
	e.line(elseLabel + ":")
	x.els.emit(e)
	e.line(endLabel + ":")
}

func (x *ifExpr) eval(f *frame) (Value, error) {
	c, err := x.cond.eval(f)
	if err != nil {
		return Value{}, err
	}
	if c.u != 0 {
		return x.then.eval(f)
	}
	if x.els == nil {
		return Value{}, nil
	}
	return x.els.eval(f)
}

// Cond chains (condition, branch) pairs; the first true condition wins and
// the program fails with err when none matches.
func Cond(pairs ...[2]Expr) Expr {
	var out Expr = Err()
	for i := len(pairs) - 1; i >= 0; i-- {
		out = If(pairs[i][0], pairs[i][1], out)
	}
	return out
}

type whileExpr struct {
	cond, body Expr
}

// While repeats body as long as cond is non-zero.
func While(cond, body Expr) Expr {
	return &whileExpr{cond: cond, body: body}
}

func (x *whileExpr) isExpr()    {}
func (x *whileExpr) Type() Type { return TypeNone }

func (x *whileExpr) check() error {
	if x.cond == nil || x.body == nil {
		return &TypeError{Op: "while", Expected: TypeUint64, Got: TypeNone}
	}
	if err := x.cond.check(); err != nil {
		return err
	}
	if err := x.body.check(); err != nil {
		return err
	}
	if x.cond.Type() != TypeUint64 {
		return &TypeError{Op: "while", Expected: TypeUint64, Got: x.cond.Type()}
	}
	if x.body.Type() != TypeNone {
		return &TypeError{Op: "while", Index: 1, Expected: TypeNone, Got: x.body.Type()}
	}
	return nil
}

func (x *whileExpr) emit(e *emitter) {
	start, end := e.label("loop"), e.label("loop_end")
	e.line(start + ":")
	x.cond.emit(e)
	e.line("bz " + end)
	x.body.emit(e)
	e.line("b " + start)
	e.line(end + ":")
}

func (x *whileExpr) eval(f *frame) (Value, error) {
	for {
		if err := f.tick(); err != nil {
			return Value{}, err
		}
		c, err := x.cond.eval(f)
		if err != nil {
			return Value{}, err
		}
		if c.u == 0 {
			return Value{}, nil
		}
		if _, err := x.body.eval(f); err != nil {
			return Value{}, err
		}
	}
}

// subroutineExpr calls a zero-argument subroutine whose body is emitted once
// after the main program.
type subroutineExpr struct {
	name string
	body Expr
}

// Subroutine wraps body in a named subroutine and returns the call site.
// Call sites sharing a body share one subroutine.
func Subroutine(name string, body Expr) Expr {
	return &subroutineExpr{name: name, body: body}
}

func (x *subroutineExpr) isExpr()    {}
func (x *subroutineExpr) Type() Type { return x.body.Type() }

func (x *subroutineExpr) check() error {
	if x.body == nil {
		return &TypeError{Op: "callsub " + x.name, Expected: TypeNone, Got: TypeNone}
	}
	return x.body.check()
}

func (x *subroutineExpr) emit(e *emitter) {
	e.line("callsub " + e.subroutine(x))
}

func (x *subroutineExpr) eval(f *frame) (Value, error) {
	return x.body.eval(f)
}
