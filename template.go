package beaker

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/branched-services/go-beaker/teal"
)

// ValueKind is the stack type of a template variable.
type ValueKind uint8

const (
	// KindBytes is a byte string template variable.
	KindBytes ValueKind = iota

	// KindUint64 is an integer template variable.
	KindUint64
)

func (k ValueKind) String() string {
	switch k {
	case KindBytes:
		return "bytes"
	case KindUint64:
		return "uint64"
	default:
		return fmt.Sprintf("ValueKind(%d)", uint8(k))
	}
}

// TealType returns the expression type of the kind.
func (k ValueKind) TealType() teal.Type {
	if k == KindBytes {
		return teal.TypeBytes
	}
	return teal.TypeUint64
}

// Placeholder statement pieces.
const (
	PushBytesOp = "pushbytes"
	PushIntOp   = "pushint"
	ZeroBytes   = `""`
	ZeroInt     = "0"
)

const (
	pushBytesOpcode byte = 0x80
	pushIntOpcode   byte = 0x81
)

func (k ValueKind) pushOp() string {
	if k == KindBytes {
		return PushBytesOp
	}
	return PushIntOp
}

func (k ValueKind) zeroLiteral() string {
	if k == KindBytes {
		return ZeroBytes
	}
	return ZeroInt
}

func (k ValueKind) opcode() byte {
	if k == KindBytes {
		return pushBytesOpcode
	}
	return pushIntOpcode
}

// TemplateVariable declares a value substituted into a program after it has
// been assembled.
type TemplateVariable struct {
	Name  string
	Token string
	Kind  ValueKind
}

// NewTemplateVariable declares a variable whose token is TMPL_ + upper(name).
func NewTemplateVariable(name string, kind ValueKind) TemplateVariable {
	return TemplateVariable{Name: name, Token: teal.TemplateToken(name), Kind: kind}
}

// Expr returns the placeholder expression for use in a program body.
func (v TemplateVariable) Expr() teal.Expr {
	return teal.Tmpl(v.Name, v.Kind.TealType())
}

// Statement is the exact source line the placeholder must appear on.
func (v TemplateVariable) Statement() string {
	return fmt.Sprintf("%s %s // %s", v.Kind.pushOp(), v.Token, v.Token)
}

// TemplateValue is a placeholder located in a program: its source line and,
// after assembly, the pc of its zero literal.
type TemplateValue struct {
	Name string
	Kind ValueKind
	Line int
	PC   int

	resolved bool
}

// Resolved reports whether PC has been set by assembly.
func (v TemplateValue) Resolved() bool {
	return v.resolved
}

// TemplatedProgram is a program whose placeholders were replaced with zero
// literals so it can be assembled once and patched per argument set.
type TemplatedProgram struct {
	*Program

	mu     sync.RWMutex
	values []TemplateValue
}

// NewTemplatedProgram replaces each variable's placeholder statement with the
// zero literal of its kind. Variables are matched in order against the first
// line exactly equal to their statement. CRLF line endings become LF.
func NewTemplatedProgram(source string, vars ...TemplateVariable) (*TemplatedProgram, error) {
	lines := splitLines(source)
	values := make([]TemplateValue, 0, len(vars))

	for _, v := range vars {
		stmt := v.Statement()
		idx := -1
		for i, line := range lines {
			if line == stmt {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, &PlaceholderNotFoundError{Name: v.Name, Statement: stmt}
		}
		lines[idx] = strings.Replace(lines[idx], v.Token, v.Kind.zeroLiteral(), 1)
		values = append(values, TemplateValue{Name: v.Name, Kind: v.Kind, Line: idx})
	}

	return &TemplatedProgram{
		Program: NewProgram(strings.Join(lines, "\n")),
		values:  values,
	}, nil
}

// Assemble compiles the program and resolves the pc of every template value
// to the byte after its push opcode. The zero literal there must be the
// single byte 0x00.
func (tp *TemplatedProgram) Assemble(ctx context.Context, c Compiler) error {
	res, err := tp.compile(ctx, c)
	if err != nil {
		return err
	}

	tp.mu.RLock()
	values := make([]TemplateValue, len(tp.values))
	copy(values, tp.values)
	tp.mu.RUnlock()

	for i := range values {
		v := &values[i]
		pcs := res.SourceMap.PCsForLine(v.Line)
		if len(pcs) == 0 {
			return &PlaceholderEncodingError{Name: v.Name, Line: v.Line, PC: -1, Reason: "line has no pc"}
		}
		pc := pcs[0] + 1
		if pc >= len(res.Binary) {
			return &PlaceholderEncodingError{Name: v.Name, Line: v.Line, PC: pc, Reason: "pc beyond end of binary"}
		}
		if op := res.Binary[pc-1]; op != v.Kind.opcode() {
			return &PlaceholderEncodingError{Name: v.Name, Line: v.Line, PC: pc,
				Reason: fmt.Sprintf("opcode 0x%02x, expected %s (0x%02x)", op, v.Kind.pushOp(), v.Kind.opcode())}
		}
		if b := res.Binary[pc]; b != 0x00 {
			return &PlaceholderEncodingError{Name: v.Name, Line: v.Line, PC: pc,
				Reason: fmt.Sprintf("zero literal encoded as 0x%02x", b)}
		}
		v.PC = pc
		v.resolved = true
	}

	tp.commit(res)
	tp.mu.Lock()
	tp.values = values
	tp.mu.Unlock()
	return nil
}

// TemplateValues returns a copy of the template values in declaration order.
func (tp *TemplatedProgram) TemplateValues() []TemplateValue {
	tp.mu.RLock()
	defer tp.mu.RUnlock()
	out := make([]TemplateValue, len(tp.values))
	copy(out, tp.values)
	return out
}
