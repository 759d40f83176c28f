package beaker

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

// Patch replaces the one-byte zero literal of a template value with the
// encoded argument.
type Patch struct {
	Name string

	// PC is the template value's pc in the unpatched binary.
	PC int

	// Position is where Encoded starts in the patched binary.
	Position int

	Encoded []byte
}

// EncodeTemplateArg encodes an argument the way the AVM reads an immediate of
// the given kind: integers as a uvarint, byte strings as uvarint(length)
// followed by the bytes. Strings are taken as their UTF-8 bytes. There is no
// coercion between kinds.
func EncodeTemplateArg(kind ValueKind, arg any) ([]byte, error) {
	switch kind {
	case KindUint64:
		n, ok := toUint64(arg)
		if !ok {
			return nil, &ArgumentTypeError{Kind: kind, Got: describeArg(arg)}
		}
		return EncodeUvarint(n), nil

	case KindBytes:
		var b []byte
		switch a := arg.(type) {
		case []byte:
			b = a
		case string:
			b = []byte(a)
		default:
			return nil, &ArgumentTypeError{Kind: kind, Got: describeArg(arg)}
		}
		out := EncodeUvarint(uint64(len(b)))
		return append(out, b...), nil

	default:
		return nil, &ArgumentTypeError{Kind: kind, Got: describeArg(arg)}
	}
}

func toUint64(arg any) (uint64, bool) {
	switch n := arg.(type) {
	case uint:
		return uint64(n), true
	case uint8:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	case int:
		return uint64(n), n >= 0
	case int8:
		return uint64(n), n >= 0
	case int16:
		return uint64(n), n >= 0
	case int32:
		return uint64(n), n >= 0
	case int64:
		return uint64(n), n >= 0
	default:
		return 0, false
	}
}

func describeArg(arg any) string {
	if n, ok := arg.(int); ok && n < 0 {
		return fmt.Sprintf("negative int %d", n)
	}
	if n, ok := arg.(int64); ok && n < 0 {
		return fmt.Sprintf("negative int64 %d", n)
	}
	return fmt.Sprintf("%T", arg)
}

// Patches computes the splice for each template value. Arguments follow
// declaration order; patches are returned in pc order, since an encoding
// longer than the byte it replaces shifts every later value by the
// difference.
func (tp *TemplatedProgram) Patches(args ...any) ([]Patch, error) {
	values := tp.TemplateValues()
	if len(args) != len(values) {
		return nil, &ArgumentCountError{Expected: len(values), Got: len(args)}
	}

	patches := make([]Patch, 0, len(values))
	for i, v := range values {
		if !v.resolved {
			return nil, ErrUninitialized
		}
		enc, err := EncodeTemplateArg(v.Kind, args[i])
		if err != nil {
			var typeErr *ArgumentTypeError
			if errors.As(err, &typeErr) {
				typeErr.Name, typeErr.Index = v.Name, i
			}
			return nil, err
		}
		patches = append(patches, Patch{Name: v.Name, PC: v.PC, Encoded: enc})
	}

	sort.SliceStable(patches, func(i, j int) bool {
		return patches[i].PC < patches[j].PC
	})
	offset := 0
	for i := range patches {
		patches[i].Position = patches[i].PC + offset
		offset += len(patches[i].Encoded) - 1
	}
	return patches, nil
}

// ApplyPatches returns a copy of bin with each patch's zero byte replaced by
// its encoding. Patches must come from Patches over the same binary.
func ApplyPatches(bin []byte, patches []Patch) []byte {
	out := slices.Clone(bin)
	for _, p := range patches {
		out = slices.Concat(out[:p.Position], p.Encoded, out[p.Position+1:])
	}
	if out == nil {
		out = []byte{}
	}
	return out
}

// Populate returns the binary with args substituted for the template values,
// in declaration order. With no template values and no args it returns a
// copy of the binary.
func (tp *TemplatedProgram) Populate(args ...any) ([]byte, error) {
	bin, err := tp.Binary()
	if err != nil {
		return nil, err
	}
	patches, err := tp.Patches(args...)
	if err != nil {
		return nil, err
	}
	return ApplyPatches(bin, patches), nil
}
