package beaker

import (
	"sort"

	"github.com/branched-services/go-beaker/teal"
)

// PopulateSubroutineName names the subroutine PopulateExpr emits.
const PopulateSubroutineName = "populate_template_program"

// PopulateExpr builds an expression that performs Populate inside the
// program: it walks the blank binary, copying the bytes between template
// values and splicing in each argument's encoding. Arguments must have the
// expression type of their template value's kind.
func (tp *TemplatedProgram) PopulateExpr(args ...teal.Expr) (teal.Expr, error) {
	binary, err := tp.BinaryExpr()
	if err != nil {
		return nil, err
	}
	values := tp.TemplateValues()
	if len(args) != len(values) {
		return nil, &ArgumentCountError{Expected: len(values), Got: len(args)}
	}
	for i, v := range values {
		if !v.resolved {
			return nil, ErrUninitialized
		}
		if args[i] == nil {
			return nil, &ArgumentTypeError{Name: v.Name, Index: i, Kind: v.Kind, Got: "nil"}
		}
		if got := args[i].Type(); got != v.Kind.TealType() {
			return nil, &ArgumentTypeError{Name: v.Name, Index: i, Kind: v.Kind, Got: got.String()}
		}
	}

	lastPos := teal.NewScratchVar(teal.TypeUint64)
	offset := teal.NewScratchVar(teal.TypeUint64)
	currVal := teal.NewScratchVar(teal.TypeBytes)
	buff := teal.NewScratchVar(teal.TypeBytes)

	body := []teal.Expr{
		lastPos.Store(teal.Int(0)),
		offset.Store(teal.Int(0)),
		currVal.Store(teal.Bytes(nil)),
		buff.Store(teal.Bytes(nil)),
	}
	for _, i := range pcOrder(values) {
		v := values[i]
		pc := teal.Int(uint64(v.PC))
		var encoded teal.Expr
		if v.Kind == KindBytes {
			encoded = teal.Concat(teal.EncodeUvarint(teal.Len(args[i])), args[i])
		} else {
			encoded = teal.EncodeUvarint(args[i])
		}
		body = append(body,
			currVal.Store(encoded),
			buff.Store(teal.Concat(buff.Load(), teal.Substring(binary, lastPos.Load(), pc), currVal.Load())),
			offset.Store(teal.Minus(teal.Add(offset.Load(), teal.Len(currVal.Load())), teal.Int(1))),
			lastPos.Store(teal.Add(pc, teal.Int(1))),
		)
	}
	body = append(body,
		buff.Store(teal.Concat(buff.Load(), teal.Suffix(binary, lastPos.Load()))),
		buff.Load(),
	)

	return teal.Subroutine(PopulateSubroutineName, teal.Seq(body...)), nil
}

// TemplateHash builds an expression for the program hash of the populated
// binary, which is the logic signature address of those arguments.
func (tp *TemplatedProgram) TemplateHash(args ...teal.Expr) (teal.Expr, error) {
	populated, err := tp.PopulateExpr(args...)
	if err != nil {
		return nil, err
	}
	return teal.Sha512_256(teal.Concat(teal.Str(ProgramDomainSeparator), populated)), nil
}

// pcOrder returns the indexes of values sorted by pc.
func pcOrder(values []TemplateValue) []int {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return values[order[a]].PC < values[order[b]].PC
	})
	return order
}
