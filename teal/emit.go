package teal

import (
	"fmt"
	"strings"
)

// CompileOption configures Compile.
type CompileOption func(*compileConfig)

type compileConfig struct {
	version  uint64
	maxSlots int
}

func defaultCompileConfig() *compileConfig {
	return &compileConfig{
		version:  DefaultVersion,
		maxSlots: MaxScratchSlots,
	}
}

// WithVersion sets the AVM version written to the pragma line.
func WithVersion(v uint64) CompileOption {
	return func(c *compileConfig) {
		c.version = v
	}
}

// WithMaxScratchSlots lowers the number of scratch slots available.
// Values above MaxScratchSlots are clamped.
func WithMaxScratchSlots(n int) CompileOption {
	return func(c *compileConfig) {
		if n > MaxScratchSlots {
			n = MaxScratchSlots
		}
		c.maxSlots = n
	}
}

// emitter accumulates TEAL lines, hands out labels, and allocates scratch
// slots in order of first use.
type emitter struct {
	cfg      *compileConfig
	lines    []string
	slots    map[*ScratchVar]int
	nextSlot int
	labels   int
	subs     []subroutineBody
	subLabel map[Expr]string
	used     map[string]bool
	err      error
}

type subroutineBody struct {
	label string
	body  Expr
}

func newEmitter(cfg *compileConfig) *emitter {
	return &emitter{
		cfg:      cfg,
		lines:    make([]string, 0, 64),
		slots:    make(map[*ScratchVar]int),
		subLabel: make(map[Expr]string),
		used:     make(map[string]bool),
	}
}

func (e *emitter) line(s string) {
	e.lines = append(e.lines, s)
}

func (e *emitter) label(prefix string) string {
	e.labels++
	return fmt.Sprintf("%s_%d", prefix, e.labels)
}

// slot returns the scratch slot for v, allocating the next free one.
func (e *emitter) slot(v *ScratchVar) int {
	if s, ok := e.slots[v]; ok {
		return s
	}
	if e.nextSlot >= e.cfg.maxSlots {
		if e.err == nil {
			e.err = ErrSlotExhausted
		}
		return 0
	}
	s := e.nextSlot
	e.nextSlot++
	e.slots[v] = s
	return s
}

// subroutine registers the body of x and returns its label. Bodies are
// deduplicated by identity; a second body under a used name gets a numeric
// suffix.
func (e *emitter) subroutine(x *subroutineExpr) string {
	if l, ok := e.subLabel[x.body]; ok {
		return l
	}
	l := x.name
	for n := 1; e.used[l]; n++ {
		l = fmt.Sprintf("%s_%d", x.name, n)
	}
	e.used[l] = true
	e.subLabel[x.body] = l
	e.subs = append(e.subs, subroutineBody{label: l, body: x.body})
	return l
}

// Compile renders root as a complete TEAL program. A uint64 root is
// followed by return; a root of TypeNone must end the program itself.
func Compile(root Expr, opts ...CompileOption) (string, error) {
	cfg := defaultCompileConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if root == nil {
		return "", &TypeError{Op: "program", Expected: TypeUint64, Got: TypeNone}
	}
	if err := root.check(); err != nil {
		return "", err
	}
	if root.Type() == TypeBytes {
		return "", &TypeError{Op: "program", Expected: TypeUint64, Got: TypeBytes}
	}

	e := newEmitter(cfg)
	e.line(fmt.Sprintf("#pragma version %d", cfg.version))
	root.emit(e)
	if root.Type() == TypeUint64 {
		e.line("return")
	} else if len(e.subs) > 0 {
		// keep control from falling into subroutine bodies
		e.line("err")
	}

	// Bodies may call further subroutines, which append to e.subs.
	for i := 0; i < len(e.subs); i++ {
		sub := e.subs[i]
		e.line("")
		e.line(sub.label + ":")
		sub.body.emit(e)
		e.line("retsub")
	}

	if e.err != nil {
		return "", e.err
	}
	return strings.Join(e.lines, "\n"), nil
}

// Lines is like Compile but returns the program split into lines.
func Lines(root Expr, opts ...CompileOption) ([]string, error) {
	src, err := Compile(root, opts...)
	if err != nil {
		return nil, err
	}
	return strings.Split(src, "\n"), nil
}
