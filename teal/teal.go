// Package teal builds TEAL programs as typed expression trees.
//
// An expression tree can be rendered to TEAL source with Compile, or
// evaluated directly with Eval. Eval follows the AVM semantics of the node
// set (uint64 overflow, out-of-range slicing, assert, err, return), which
// lets callers check what a program computes without a network round trip.
//
// # Types
//
// Every expression leaves one of three things on the stack:
//
//   - TypeNone: nothing (stores, puts, asserts, loops)
//   - TypeUint64: an unsigned 64-bit integer
//   - TypeBytes: a byte string of at most MaxBytesLength bytes
//
// Types are checked statically before compiling or evaluating.
//
// # Templates
//
// Tmpl produces the exact placeholder line a template scanner expects:
//
//	pushbytes TMPL_OWNER // TMPL_OWNER
//
// so programs built here can be patched after assembly without recompiling.
package teal

import (
	"bytes"
	"encoding/hex"
	"strconv"
	"strings"
)

// DefaultVersion is the AVM version used when none is requested.
const DefaultVersion = 8

// MaxBytesLength is the largest byte string the AVM keeps on the stack.
const MaxBytesLength = 4096

// MaxScratchSlots is the number of scratch slots available to a program.
const MaxScratchSlots = 256

// Type is the stack type an expression produces.
type Type uint8

const (
	// TypeNone means the expression leaves nothing on the stack.
	TypeNone Type = iota

	// TypeUint64 is an unsigned 64-bit integer.
	TypeUint64

	// TypeBytes is a byte string.
	TypeBytes

	// anyType accepts uint64 or bytes operands (==, !=).
	anyType Type = 0xFF
)

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeUint64:
		return "uint64"
	case TypeBytes:
		return "bytes"
	case anyType:
		return "any"
	default:
		return "unknown(" + strconv.Itoa(int(t)) + ")"
	}
}

// Value is the result of evaluating an expression.
type Value struct {
	typ Type
	u   uint64
	b   []byte
}

// UintValue returns a uint64 value.
func UintValue(v uint64) Value {
	return Value{typ: TypeUint64, u: v}
}

// BytesValue returns a bytes value holding a copy of b.
func BytesValue(b []byte) Value {
	return bval(append([]byte{}, b...))
}

// bval wraps b without copying.
func bval(b []byte) Value {
	if b == nil {
		b = []byte{}
	}
	return Value{typ: TypeBytes, b: b}
}

// zeroValue returns the default for a type, as read from an unset slot.
func zeroValue(t Type) Value {
	if t == TypeBytes {
		return bval(nil)
	}
	return UintValue(0)
}

// Type returns the value's type. The zero Value has TypeNone.
func (v Value) Type() Type {
	return v.typ
}

// Uint returns the integer held by a uint64 value.
func (v Value) Uint() uint64 {
	return v.u
}

// Bytes returns the byte string held by a bytes value.
func (v Value) Bytes() []byte {
	return v.b
}

// Equal reports whether two values have the same type and content.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	if v.typ == TypeBytes {
		return bytes.Equal(v.b, o.b)
	}
	return v.u == o.u
}

func (v Value) String() string {
	switch v.typ {
	case TypeUint64:
		return strconv.FormatUint(v.u, 10)
	case TypeBytes:
		return "0x" + hex.EncodeToString(v.b)
	default:
		return "<none>"
	}
}

// TemplateToken returns the placeholder token for a template variable name.
func TemplateToken(name string) string {
	return "TMPL_" + strings.ToUpper(name)
}
