package beaker

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure conditions.
var (
	// ErrUninitialized indicates a program was used before it was assembled.
	ErrUninitialized = errors.New("beaker: program not assembled")

	// ErrPlaceholderNotFound indicates a template placeholder line is missing from the source.
	ErrPlaceholderNotFound = errors.New("beaker: template placeholder not found")

	// ErrPlaceholderEncoding indicates the assembled placeholder is not a one-byte zero literal.
	ErrPlaceholderEncoding = errors.New("beaker: unexpected placeholder encoding")

	// ErrArgumentCount indicates the number of template arguments does not match the template values.
	ErrArgumentCount = errors.New("beaker: wrong number of template arguments")

	// ErrArgumentType indicates a template argument does not match its value kind.
	ErrArgumentType = errors.New("beaker: template argument type mismatch")

	// ErrChildCompilation indicates a dependency failed to compile.
	ErrChildCompilation = errors.New("beaker: child compilation failed")

	// ErrCyclicDependency indicates a precompile depends on itself.
	ErrCyclicDependency = errors.New("beaker: cyclic precompile dependency detected")

	// ErrInvalidAddress indicates a malformed or corrupted address string.
	ErrInvalidAddress = errors.New("beaker: invalid address")

	// ErrProgramTooLarge indicates the programs need more than MaxExtraPages extra pages.
	ErrProgramTooLarge = errors.New("beaker: program exceeds maximum size")

	// ErrDuplicateMethod indicates two methods share a selector.
	ErrDuplicateMethod = errors.New("beaker: duplicate method selector")

	// ErrDuplicateState indicates two state declarations share a name or key.
	ErrDuplicateState = errors.New("beaker: duplicate state declaration")

	// ErrInvalidSignature indicates a malformed ARC-4 method signature.
	ErrInvalidSignature = errors.New("beaker: invalid method signature")

	// ErrStateAccess indicates an operation the state kind does not support.
	ErrStateAccess = errors.New("beaker: unsupported state access")

	// ErrSchemaTooLarge indicates declared state exceeds the protocol key limits.
	ErrSchemaTooLarge = errors.New("beaker: state schema exceeds key limit")
)

// PlaceholderNotFoundError indicates no source line matched the placeholder
// statement for a template variable.
type PlaceholderNotFoundError struct {
	Name      string
	Statement string
}

func (e *PlaceholderNotFoundError) Error() string {
	return fmt.Sprintf("beaker: template variable %q: no line equal to %q", e.Name, e.Statement)
}

func (e *PlaceholderNotFoundError) Unwrap() error {
	return ErrPlaceholderNotFound
}

// PlaceholderEncodingError indicates the bytes at a template value's pc are
// not the push opcode followed by a zero literal.
type PlaceholderEncodingError struct {
	Name   string
	Line   int
	PC     int
	Reason string
}

func (e *PlaceholderEncodingError) Error() string {
	return fmt.Sprintf("beaker: template variable %q at line %d (pc %d): %s", e.Name, e.Line, e.PC, e.Reason)
}

func (e *PlaceholderEncodingError) Unwrap() error {
	return ErrPlaceholderEncoding
}

// ArgumentCountError indicates a populate call with the wrong number of arguments.
type ArgumentCountError struct {
	Expected int
	Got      int
}

func (e *ArgumentCountError) Error() string {
	return fmt.Sprintf("beaker: expected %d template arguments, got %d", e.Expected, e.Got)
}

func (e *ArgumentCountError) Unwrap() error {
	return ErrArgumentCount
}

// ArgumentTypeError indicates an argument whose type does not match the kind
// of its template value.
type ArgumentTypeError struct {
	Name  string
	Index int
	Kind  ValueKind
	Got   string
}

func (e *ArgumentTypeError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("beaker: argument %d for template variable %q: expected %s, got %s", e.Index, e.Name, e.Kind, e.Got)
	}
	return fmt.Sprintf("beaker: expected %s argument, got %s", e.Kind, e.Got)
}

func (e *ArgumentTypeError) Unwrap() error {
	return ErrArgumentType
}

// CompileError wraps the failure of a single precompile's own compile step.
type CompileError struct {
	Node string
	Err  error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("beaker: compile %s: %v", e.Node, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// ChildCompilationError is returned by a parent whose dependency failed. The
// parent's own step is never run.
type ChildCompilationError struct {
	Parent string
	Child  string
	Err    error
}

func (e *ChildCompilationError) Error() string {
	return fmt.Sprintf("beaker: %s: dependency %s: %v", e.Parent, e.Child, e.Err)
}

func (e *ChildCompilationError) Unwrap() error {
	return e.Err
}

// Is matches ErrChildCompilation in addition to the wrapped chain.
func (e *ChildCompilationError) Is(target error) bool {
	return target == ErrChildCompilation
}

// CycleError reports the dependency path that closes a cycle. The first and
// last entries name the same node.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("beaker: cyclic precompile dependency: %s", strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error {
	return ErrCyclicDependency
}

// MethodError wraps errors that occur while routing a method.
type MethodError struct {
	Method string
	Err    error
}

func (e *MethodError) Error() string {
	return fmt.Sprintf("beaker: method %q: %v", e.Method, e.Err)
}

func (e *MethodError) Unwrap() error {
	return e.Err
}
