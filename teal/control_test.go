package teal

import (
	"errors"
	"testing"
)

func TestScratchVar(t *testing.T) {
	t.Run("unset reads zero", func(t *testing.T) {
		b := NewScratchVar(TypeBytes)
		v := mustEval(t, Len(b.Load()), nil)
		if v.Uint() != 0 {
			t.Errorf("Expected empty bytes, got length %d", v.Uint())
		}
	})

	t.Run("store then load", func(t *testing.T) {
		n := NewScratchVar(TypeUint64)
		v := mustEval(t, Seq(n.Store(Int(3)), n.Store(Add(n.Load(), Int(4))), n.Load()), nil)
		if v.Uint() != 7 {
			t.Errorf("Expected 7, got %d", v.Uint())
		}
	})
}

func TestIf(t *testing.T) {
	t.Run("then", func(t *testing.T) {
		if v := mustEval(t, If(Int(1), Str("yes"), Str("no")), nil); string(v.Bytes()) != "yes" {
			t.Errorf("Expected yes, got %q", v.Bytes())
		}
	})

	t.Run("else", func(t *testing.T) {
		if v := mustEval(t, If(Int(0), Str("yes"), Str("no")), nil); string(v.Bytes()) != "no" {
			t.Errorf("Expected no, got %q", v.Bytes())
		}
	})

	t.Run("no else", func(t *testing.T) {
		env := &Env{}
		mustEval(t, Seq(If(Int(0), Log(Str("x")), nil), Int(1)), env)
		if len(env.Logs) != 0 {
			t.Errorf("Expected no logs, got %q", env.Logs)
		}
	})
}

func TestCond(t *testing.T) {
	n := NewScratchVar(TypeUint64)
	pick := func(x uint64) Expr {
		return Seq(
			n.Store(Int(x)),
			Cond(
				[2]Expr{Eq(n.Load(), Int(1)), Return(Int(10))},
				[2]Expr{Eq(n.Load(), Int(2)), Return(Int(20))},
			),
		)
	}

	if v := mustEval(t, pick(2), nil); v.Uint() != 20 {
		t.Errorf("Expected 20, got %d", v.Uint())
	}
	if _, err := Eval(pick(3), nil); !errors.Is(err, ErrRejected) {
		t.Errorf("Expected ErrRejected when no branch matches, got %v", err)
	}
}

func TestWhile(t *testing.T) {
	t.Run("sums", func(t *testing.T) {
		i := NewScratchVar(TypeUint64)
		sum := NewScratchVar(TypeUint64)
		e := Seq(
			While(Lt(i.Load(), Int(5)), Seq(
				sum.Store(Add(sum.Load(), i.Load())),
				i.Store(Add(i.Load(), Int(1))),
			)),
			sum.Load(),
		)
		if v := mustEval(t, e, nil); v.Uint() != 10 {
			t.Errorf("Expected 10, got %d", v.Uint())
		}
	})

	t.Run("step limit", func(t *testing.T) {
		_, err := Eval(Seq(While(Int(1), Seq()), Int(1)), &Env{MaxSteps: 10})
		if !errors.Is(err, ErrStepLimit) {
			t.Errorf("Expected ErrStepLimit, got %v", err)
		}
	})
}

func TestSubroutineEval(t *testing.T) {
	body := Concat(Str("a"), Str("b"))
	v := mustEval(t, Concat(Subroutine("ab", body), Subroutine("ab", body)), nil)
	if string(v.Bytes()) != "abab" {
		t.Errorf("Expected abab, got %q", v.Bytes())
	}
}

func TestAppState(t *testing.T) {
	t.Run("global put and get", func(t *testing.T) {
		env := &Env{}
		v := mustEval(t, Seq(
			AppGlobalPut(Str("count"), Int(5)),
			AppGlobalGet(Str("count"), TypeUint64),
		), env)
		if v.Uint() != 5 {
			t.Errorf("Expected 5, got %d", v.Uint())
		}
	})

	t.Run("global exists", func(t *testing.T) {
		env := &Env{}
		if v := mustEval(t, AppGlobalExists(Str("k")), env); v.Uint() != 0 {
			t.Error("Expected missing key")
		}
		env.Globals = map[string]Value{"k": BytesValue(nil)}
		if v := mustEval(t, AppGlobalExists(Str("k")), env); v.Uint() != 1 {
			t.Error("Expected present key")
		}
	})

	t.Run("global missing reads zero", func(t *testing.T) {
		if v := mustEval(t, Len(AppGlobalGet(Str("k"), TypeBytes)), nil); v.Uint() != 0 {
			t.Errorf("Expected zero length, got %d", v.Uint())
		}
	})

	t.Run("global stored type mismatch", func(t *testing.T) {
		env := &Env{Globals: map[string]Value{"k": UintValue(1)}}
		if _, err := Eval(Len(AppGlobalGet(Str("k"), TypeBytes)), env); !errors.Is(err, ErrEval) {
			t.Errorf("Expected ErrEval, got %v", err)
		}
	})

	t.Run("local requires opt in", func(t *testing.T) {
		env := &Env{Sender: []byte("alice")}
		put := Seq(AppLocalPut(TxnSender(), Str("k"), Str("v")), Int(1))
		if _, err := Eval(put, env); !errors.Is(err, ErrEval) {
			t.Fatalf("Expected ErrEval before opt in, got %v", err)
		}

		env.OptIn([]byte("alice"))
		mustEval(t, put, env)
		v := mustEval(t, AppLocalGet(TxnSender(), Str("k"), TypeBytes), env)
		if string(v.Bytes()) != "v" {
			t.Errorf("Expected v, got %q", v.Bytes())
		}
	})
}
