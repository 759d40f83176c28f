package beaker

import (
	"context"
	"strings"
	"sync"

	"github.com/branched-services/go-beaker/teal"
)

// Assertion is the message attached to an assert by the comment line above it.
type Assertion struct {
	Line    int
	Message string
}

// Program is a TEAL source and, once assembled, its binary, hash and source
// map. The source never changes; Assemble replaces the compiled artifacts
// together.
type Program struct {
	source string

	mu         sync.RWMutex
	binary     []byte
	hash       string
	sourceMap  *SourceMap
	assertions map[int]Assertion
}

// NewProgram wraps TEAL source. Nothing is compiled until Assemble.
func NewProgram(source string) *Program {
	return &Program{source: source}
}

// Source returns the TEAL source.
func (p *Program) Source() string {
	return p.source
}

// Assemble compiles the source with c. On error the previous artifacts are
// kept.
func (p *Program) Assemble(ctx context.Context, c Compiler) error {
	res, err := p.compile(ctx, c)
	if err != nil {
		return err
	}
	p.commit(res)
	return nil
}

func (p *Program) compile(ctx context.Context, c Compiler) (*CompileResult, error) {
	res, err := c.Compile(ctx, p.source)
	if err != nil {
		return nil, err
	}
	if res.SourceMap == nil {
		res.SourceMap = NewSourceMap(nil)
	}
	return res, nil
}

func (p *Program) commit(res *CompileResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.binary = append([]byte(nil), res.Binary...)
	p.hash = res.Hash
	p.sourceMap = res.SourceMap
	p.assertions = nil
}

// Assembled reports whether the program has been assembled.
func (p *Program) Assembled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.binary != nil
}

// Binary returns a copy of the assembled program.
func (p *Program) Binary() ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.binary == nil {
		return nil, ErrUninitialized
	}
	return append([]byte(nil), p.binary...), nil
}

// BinaryHash returns the compiler's hash of the program in address form.
func (p *Program) BinaryHash() (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.binary == nil {
		return "", ErrUninitialized
	}
	return p.hash, nil
}

// SourceMap returns the pc <-> line mapping of the last assembly.
func (p *Program) SourceMap() (*SourceMap, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.binary == nil {
		return nil, ErrUninitialized
	}
	return p.sourceMap, nil
}

// Assertions maps the pc of each commented assert to its message. A source
// line counts as an assert when its first space-separated token is "assert",
// and it carries a message when the line directly above starts with "//".
// Multi-line comments are not recognised.
func (p *Program) Assertions() (map[int]Assertion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.binary == nil {
		return nil, ErrUninitialized
	}
	if p.assertions == nil {
		p.assertions = gatherAssertions(p.source, p.sourceMap)
	}
	out := make(map[int]Assertion, len(p.assertions))
	for pc, a := range p.assertions {
		out[pc] = a
	}
	return out, nil
}

func gatherAssertions(source string, sm *SourceMap) map[int]Assertion {
	out := make(map[int]Assertion)
	lines := splitLines(source)
	for idx, line := range lines {
		first, _, _ := strings.Cut(line, " ")
		if first != "assert" || idx == 0 {
			continue
		}
		pcs := sm.PCsForLine(idx)
		if len(pcs) == 0 {
			continue
		}
		before := lines[idx-1]
		if !strings.HasPrefix(before, "//") {
			continue
		}
		out[pcs[0]] = Assertion{Line: idx, Message: strings.Trim(before, "/ ")}
	}
	return out
}

// splitLines splits source on "\n", dropping the "\r" of CRLF endings.
func splitLines(source string) []string {
	lines := strings.Split(source, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// BinaryExpr returns the assembled program as a bytes constant.
func (p *Program) BinaryExpr() (teal.Expr, error) {
	bin, err := p.Binary()
	if err != nil {
		return nil, err
	}
	return teal.Bytes(bin), nil
}

// HashExpr returns the 32-byte program hash as a bytes constant.
func (p *Program) HashExpr() (teal.Expr, error) {
	hash, err := p.BinaryHash()
	if err != nil {
		return nil, err
	}
	digest, err := DecodeAddress(hash)
	if err != nil {
		return nil, err
	}
	return teal.Bytes(digest[:]), nil
}

// Pages splits the binary into pageSize chunks.
func (p *Program) Pages(pageSize int) ([][]byte, error) {
	bin, err := p.Binary()
	if err != nil {
		return nil, err
	}
	return SplitPages(bin, pageSize), nil
}

// PageExprs returns the PageSize pages of the binary as bytes constants.
func (p *Program) PageExprs() ([]teal.Expr, error) {
	pages, err := p.Pages(PageSize)
	if err != nil {
		return nil, err
	}
	out := make([]teal.Expr, len(pages))
	for i, pg := range pages {
		out[i] = teal.Bytes(pg)
	}
	return out, nil
}
