package teal

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions.
var (
	// ErrTypeMismatch indicates an operand has the wrong stack type.
	ErrTypeMismatch = errors.New("teal: type mismatch")

	// ErrSlotExhausted indicates more scratch variables than slots.
	ErrSlotExhausted = errors.New("teal: scratch slot limit exceeded (max 256)")

	// ErrAssertionFailed indicates an assert saw zero.
	ErrAssertionFailed = errors.New("teal: assertion failed")

	// ErrRejected indicates the err opcode was executed.
	ErrRejected = errors.New("teal: err opcode executed")

	// ErrEval indicates a runtime failure during evaluation.
	ErrEval = errors.New("teal: evaluation failed")

	// ErrStepLimit indicates evaluation exceeded its step budget.
	ErrStepLimit = errors.New("teal: step limit exceeded")

	// ErrMissingInput indicates the Env lacks an argument, template value or field.
	ErrMissingInput = errors.New("teal: missing evaluation input")
)

// TypeError indicates an operand of Op had the wrong type.
type TypeError struct {
	Op       string
	Index    int
	Expected Type
	Got      Type
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("teal: %s operand %d: expected %s, got %s", e.Op, e.Index, e.Expected, e.Got)
}

func (e *TypeError) Unwrap() error {
	return ErrTypeMismatch
}

// EvalError is a runtime failure of a single operation.
type EvalError struct {
	Op  string
	Msg string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("teal: %s: %s", e.Op, e.Msg)
}

func (e *EvalError) Unwrap() error {
	return ErrEval
}

func evalErrorf(op, format string, args ...any) error {
	return &EvalError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// returnSignal unwinds evaluation when a return opcode runs.
type returnSignal struct {
	value Value
}

func (r *returnSignal) Error() string {
	return "teal: return"
}
