package beaker

import (
	"context"
	"errors"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrUninitialized", ErrUninitialized, "beaker: program not assembled"},
		{"ErrPlaceholderNotFound", ErrPlaceholderNotFound, "beaker: template placeholder not found"},
		{"ErrPlaceholderEncoding", ErrPlaceholderEncoding, "beaker: unexpected placeholder encoding"},
		{"ErrArgumentCount", ErrArgumentCount, "beaker: wrong number of template arguments"},
		{"ErrArgumentType", ErrArgumentType, "beaker: template argument type mismatch"},
		{"ErrChildCompilation", ErrChildCompilation, "beaker: child compilation failed"},
		{"ErrCyclicDependency", ErrCyclicDependency, "beaker: cyclic precompile dependency detected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("Expected error message %q, got %q", tt.msg, tt.err.Error())
			}
		})
	}
}

func TestPlaceholderErrors(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		err := &PlaceholderNotFoundError{Name: "owner", Statement: "pushbytes TMPL_OWNER // TMPL_OWNER"}
		expected := `beaker: template variable "owner": no line equal to "pushbytes TMPL_OWNER // TMPL_OWNER"`
		if err.Error() != expected {
			t.Errorf("Expected error message %q, got %q", expected, err.Error())
		}
		if !errors.Is(err, ErrPlaceholderNotFound) {
			t.Error("errors.Is should find ErrPlaceholderNotFound")
		}
	})

	t.Run("encoding", func(t *testing.T) {
		err := &PlaceholderEncodingError{Name: "n", Line: 3, PC: 7, Reason: "zero literal encoded as 0x01"}
		expected := `beaker: template variable "n" at line 3 (pc 7): zero literal encoded as 0x01`
		if err.Error() != expected {
			t.Errorf("Expected error message %q, got %q", expected, err.Error())
		}
		if !errors.Is(err, ErrPlaceholderEncoding) {
			t.Error("errors.Is should find ErrPlaceholderEncoding")
		}
	})
}

func TestArgumentErrors(t *testing.T) {
	t.Run("count", func(t *testing.T) {
		err := &ArgumentCountError{Expected: 2, Got: 3}
		expected := "beaker: expected 2 template arguments, got 3"
		if err.Error() != expected {
			t.Errorf("Expected error message %q, got %q", expected, err.Error())
		}
		if !errors.Is(err, ErrArgumentCount) {
			t.Error("errors.Is should find ErrArgumentCount")
		}
	})

	t.Run("type with name", func(t *testing.T) {
		err := &ArgumentTypeError{Name: "amount", Index: 1, Kind: KindUint64, Got: "string"}
		expected := `beaker: argument 1 for template variable "amount": expected uint64, got string`
		if err.Error() != expected {
			t.Errorf("Expected error message %q, got %q", expected, err.Error())
		}
		if !errors.Is(err, ErrArgumentType) {
			t.Error("errors.Is should find ErrArgumentType")
		}
	})

	t.Run("type without name", func(t *testing.T) {
		err := &ArgumentTypeError{Kind: KindBytes, Got: "int"}
		expected := "beaker: expected bytes argument, got int"
		if err.Error() != expected {
			t.Errorf("Expected error message %q, got %q", expected, err.Error())
		}
	})
}

func TestCompileErrors(t *testing.T) {
	t.Run("compile error unwraps", func(t *testing.T) {
		err := &CompileError{Node: "vault", Err: context.DeadlineExceeded}
		expected := "beaker: compile vault: context deadline exceeded"
		if err.Error() != expected {
			t.Errorf("Expected error message %q, got %q", expected, err.Error())
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Error("errors.Is should find the cause")
		}
	})

	t.Run("child compilation matches sentinel and cause", func(t *testing.T) {
		cause := &CompileError{Node: "leaf", Err: ErrPlaceholderNotFound}
		err := &ChildCompilationError{Parent: "root", Child: "leaf", Err: cause}

		expected := "beaker: root: dependency leaf: beaker: compile leaf: beaker: template placeholder not found"
		if err.Error() != expected {
			t.Errorf("Expected error message %q, got %q", expected, err.Error())
		}
		if !errors.Is(err, ErrChildCompilation) {
			t.Error("errors.Is should find ErrChildCompilation")
		}
		if !errors.Is(err, ErrPlaceholderNotFound) {
			t.Error("errors.Is should find the child's cause")
		}
		if errors.Is(err, ErrCyclicDependency) {
			t.Error("errors.Is should not match unrelated sentinels")
		}
	})

	t.Run("cycle", func(t *testing.T) {
		err := &CycleError{Path: []string{"a", "b", "a"}}
		expected := "beaker: cyclic precompile dependency: a -> b -> a"
		if err.Error() != expected {
			t.Errorf("Expected error message %q, got %q", expected, err.Error())
		}
		if !errors.Is(err, ErrCyclicDependency) {
			t.Error("errors.Is should find ErrCyclicDependency")
		}
	})
}

func TestMethodError(t *testing.T) {
	inner := errors.New("handler returned uint64 for string")
	err := &MethodError{Method: "greet(string)string", Err: inner}

	expected := `beaker: method "greet(string)string": handler returned uint64 for string`
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
	if err.Unwrap() != inner {
		t.Error("Unwrap should return the inner error")
	}
}
