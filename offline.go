package beaker

import (
	"context"

	"github.com/branched-services/go-beaker/internal/tealasm"
)

// OfflineCompiler returns a Compiler that assembles locally. It accepts the
// TEAL generated by package teal and hand written programs in the same
// subset.
func OfflineCompiler() Compiler {
	return CompilerFunc(func(ctx context.Context, source string) (*CompileResult, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		prog, err := tealasm.Assemble(source)
		if err != nil {
			return nil, err
		}
		return &CompileResult{
			Binary:    prog.Binary,
			Hash:      LogicSigAddress(prog.Binary),
			SourceMap: NewSourceMap(prog.PCToLine),
		}, nil
	})
}
