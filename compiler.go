package beaker

import "context"

// CompileResult is what a compiler service returns for a TEAL source.
type CompileResult struct {
	// Binary is the assembled program.
	Binary []byte

	// Hash is the address form of the program hash.
	Hash string

	// SourceMap maps pcs in Binary back to source lines.
	SourceMap *SourceMap
}

// Compiler assembles TEAL source into a program binary.
type Compiler interface {
	Compile(ctx context.Context, source string) (*CompileResult, error)
}

// CompilerFunc adapts a function to the Compiler interface.
type CompilerFunc func(ctx context.Context, source string) (*CompileResult, error)

// Compile calls f.
func (f CompilerFunc) Compile(ctx context.Context, source string) (*CompileResult, error) {
	return f(ctx, source)
}
