package beaker

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/branched-services/go-beaker/teal"
)

var creator = bytes.Repeat([]byte{0xcc}, 32)

func itob(n uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, n)
}

func selector(sig string) []byte {
	sel := MethodSelector(sig)
	return sel[:]
}

func counterApp(t *testing.T) *Application {
	t.Helper()
	app := NewApplication("counter", WithDescription("counts calls"))
	if err := app.DeclareState(GlobalState("count", teal.TypeUint64, WithStateDescription("calls so far"))); err != nil {
		t.Fatalf("DeclareState() error = %v", err)
	}

	_, err := app.External("add(uint64,uint64)uint64", func(args []teal.Expr) (teal.Expr, error) {
		return teal.Add(teal.Btoi(args[0]), teal.Btoi(args[1])), nil
	}, ReadOnly())
	if err != nil {
		t.Fatalf("External(add) error = %v", err)
	}

	_, err = app.External("incr()void", func([]teal.Expr) (teal.Expr, error) {
		cur, err := app.Get("count", Access{})
		if err != nil {
			return nil, err
		}
		return app.Set("count", Access{}, teal.Add(cur, teal.Int(1)))
	}, Authorize(OnlyCreator()))
	if err != nil {
		t.Fatalf("External(incr) error = %v", err)
	}

	_, err = app.External("hello(string)string", func(args []teal.Expr) (teal.Expr, error) {
		return teal.Concat(teal.Str("hi "), args[0]), nil
	}, Describe("greets"))
	if err != nil {
		t.Fatalf("External(hello) error = %v", err)
	}
	return app
}

func TestNewApplication_NoState(t *testing.T) {
	a := NewApplication("empty")
	if global, local := a.Schema(); global.Keys() != 0 || local.Keys() != 0 {
		t.Errorf("Schema() = %+v, %+v", global, local)
	}
	if got := a.State().Decls(); len(got) != 0 {
		t.Errorf("Decls() = %v", got)
	}
	if err := a.DeclareState(GlobalState("count", teal.TypeUint64)); err != nil {
		t.Fatalf("DeclareState() error = %v", err)
	}
	if global, _ := a.Schema(); global.NumUints != 1 {
		t.Errorf("global schema = %+v after DeclareState", global)
	}
}

func TestApplication_Routing(t *testing.T) {
	app := counterApp(t)
	approval, err := app.ApprovalExpr()
	if err != nil {
		t.Fatalf("ApprovalExpr() error = %v", err)
	}

	tests := []struct {
		name     string
		env      teal.Env
		approved bool
		wantErr  error
		wantLog  []byte
	}{
		{
			name:     "bare create",
			env:      teal.Env{},
			approved: true,
		},
		{
			name:     "bare update rejected",
			env:      teal.Env{ApplicationID: 1, OnCompletion: uint64(UpdateApplication)},
			approved: false,
		},
		{
			name:    "bare update during create",
			env:     teal.Env{OnCompletion: uint64(UpdateApplication)},
			wantErr: teal.ErrRejected,
		},
		{
			name:    "bare opt in not routed",
			env:     teal.Env{ApplicationID: 1, OnCompletion: uint64(OptIn)},
			wantErr: teal.ErrRejected,
		},
		{
			name:     "add",
			env:      teal.Env{ApplicationID: 1, Args: [][]byte{selector("add(uint64,uint64)uint64"), itob(2), itob(3)}},
			approved: true,
			wantLog:  append(append([]byte{}, ReturnPrefix...), itob(5)...),
		},
		{
			name:     "hello",
			env:      teal.Env{ApplicationID: 1, Args: [][]byte{selector("hello(string)string"), []byte("bob")}},
			approved: true,
			wantLog:  append(append([]byte{}, ReturnPrefix...), "hi bob"...),
		},
		{
			name:    "method with opt in",
			env:     teal.Env{ApplicationID: 1, OnCompletion: uint64(OptIn), Args: [][]byte{selector("add(uint64,uint64)uint64"), itob(2), itob(3)}},
			wantErr: teal.ErrAssertionFailed,
		},
		{
			name:    "method during create",
			env:     teal.Env{Args: [][]byte{selector("add(uint64,uint64)uint64"), itob(2), itob(3)}},
			wantErr: teal.ErrAssertionFailed,
		},
		{
			name:     "authorized",
			env:      teal.Env{ApplicationID: 1, Sender: creator, CreatorAddress: creator, Args: [][]byte{selector("incr()void")}},
			approved: true,
		},
		{
			name:    "unauthorized",
			env:     teal.Env{ApplicationID: 1, Sender: sender, CreatorAddress: creator, Args: [][]byte{selector("incr()void")}},
			wantErr: teal.ErrAssertionFailed,
		},
		{
			name:    "unknown selector",
			env:     teal.Env{ApplicationID: 1, Args: [][]byte{{1, 2, 3, 4}}},
			wantErr: teal.ErrRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := tt.env
			v, err := teal.Eval(approval, &env)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Eval() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Eval() error = %v", err)
			}
			if teal.Approved(v) != tt.approved {
				t.Errorf("approved = %v, want %v", teal.Approved(v), tt.approved)
			}
			if tt.wantLog != nil {
				if len(env.Logs) != 1 || !bytes.Equal(env.Logs[0], tt.wantLog) {
					t.Errorf("logs = %x, want [%x]", env.Logs, tt.wantLog)
				}
			}
		})
	}
}

func TestApplication_StateThroughRouter(t *testing.T) {
	app := counterApp(t)
	approval, err := app.ApprovalExpr()
	if err != nil {
		t.Fatalf("ApprovalExpr() error = %v", err)
	}

	env := &teal.Env{ApplicationID: 1, Sender: creator, CreatorAddress: creator, Args: [][]byte{selector("incr()void")}}
	for i := 0; i < 3; i++ {
		if _, err := teal.Eval(approval, env); err != nil {
			t.Fatalf("call %d: Eval() error = %v", i, err)
		}
	}
	if got := env.Globals["count"]; got.Uint() != 3 {
		t.Errorf("count = %v, want 3", got)
	}
}

func TestApplication_BareActions(t *testing.T) {
	app := NewApplication("registry", WithoutDefaultBareActions())
	if err := app.DeclareState(LocalState("joined", teal.TypeUint64, WithDefault(teal.Int(1)))); err != nil {
		t.Fatalf("DeclareState() error = %v", err)
	}
	err := app.Bare(OptIn, func() (teal.Expr, error) {
		return app.State().InitializeLocal(nil)
	})
	if err != nil {
		t.Fatalf("Bare(OptIn) error = %v", err)
	}
	if err := app.Bare(ClearState, nil); err == nil {
		t.Error("Bare(ClearState) succeeded")
	}

	approval, err := app.ApprovalExpr()
	if err != nil {
		t.Fatalf("ApprovalExpr() error = %v", err)
	}

	if _, err := teal.Eval(approval, &teal.Env{}); !errors.Is(err, teal.ErrRejected) {
		t.Errorf("create without default actions error = %v, want ErrRejected", err)
	}

	env := &teal.Env{ApplicationID: 7, OnCompletion: uint64(OptIn), Sender: sender}
	env.OptIn(sender)
	v, err := teal.Eval(approval, env)
	if err != nil {
		t.Fatalf("opt in: Eval() error = %v", err)
	}
	if !teal.Approved(v) {
		t.Error("opt in not approved")
	}
	if got := env.Locals[string(sender)]["joined"]; got.Uint() != 1 {
		t.Errorf("joined = %v, want 1", got)
	}
}

func TestApplication_RegistrationErrors(t *testing.T) {
	t.Run("duplicate selector", func(t *testing.T) {
		app := NewApplication("dup")
		if _, err := app.External("f()void", nil); err != nil {
			t.Fatalf("first External() error = %v", err)
		}
		if _, err := app.External("f()void", nil); !errors.Is(err, ErrDuplicateMethod) {
			t.Errorf("second External() error = %v, want ErrDuplicateMethod", err)
		}
	})

	t.Run("invalid signature", func(t *testing.T) {
		app := NewApplication("bad")
		if _, err := app.External("f(", nil); !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("External() error = %v, want ErrInvalidSignature", err)
		}
	})

	t.Run("state conflicts", func(t *testing.T) {
		app := NewApplication("state")
		if err := app.DeclareState(GlobalState("a", teal.TypeUint64)); err != nil {
			t.Fatalf("DeclareState() error = %v", err)
		}
		if err := app.DeclareState(GlobalState("a", teal.TypeBytes)); !errors.Is(err, ErrDuplicateState) {
			t.Errorf("DeclareState(dup) error = %v, want ErrDuplicateState", err)
		}
		if len(app.State().Decls()) != 1 {
			t.Error("failed declaration modified state")
		}
		if _, err := app.Get("missing", Access{}); !errors.Is(err, ErrStateAccess) {
			t.Errorf("Get(missing) error = %v, want ErrStateAccess", err)
		}
	})
}

func TestApplication_HandlerErrors(t *testing.T) {
	tests := []struct {
		name string
		sig  string
		h    Handler
		opts []MethodOption
	}{
		{"uint64 for string", "f()string", func([]teal.Expr) (teal.Expr, error) { return teal.Int(1), nil }, nil},
		{"missing return", "f()uint64", func([]teal.Expr) (teal.Expr, error) { return nil, nil }, nil},
		{"void returns value", "f()void", func([]teal.Expr) (teal.Expr, error) { return teal.Int(1), nil }, nil},
		{"handler failure", "f()void", func([]teal.Expr) (teal.Expr, error) { return nil, errors.New("boom") }, nil},
		{"bytes predicate", "f()void", nil, []MethodOption{Authorize(teal.TxnSender())}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := NewApplication("broken")
			if _, err := app.External(tt.sig, tt.h, tt.opts...); err != nil {
				t.Fatalf("External() error = %v", err)
			}
			_, err := app.ApprovalExpr()
			var methodErr *MethodError
			if !errors.As(err, &methodErr) || methodErr.Method != tt.sig {
				t.Errorf("ApprovalExpr() error = %v, want MethodError for %s", err, tt.sig)
			}
		})
	}
}

func TestApplication_Build(t *testing.T) {
	app := counterApp(t)
	spec, err := app.Build(context.Background(), OfflineCompiler())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if spec.Name != "counter" || spec.Description != "counts calls" {
		t.Errorf("Name, Description = %q, %q", spec.Name, spec.Description)
	}
	if len(spec.Contract.Methods) != 3 {
		t.Fatalf("Contract.Methods has %d entries, want 3", len(spec.Contract.Methods))
	}
	add := spec.Contract.Methods[0]
	if add.Name != "add" || !add.ReadOnly || len(add.Args) != 2 || add.Returns.Type != "uint64" {
		t.Errorf("add = %+v", add)
	}
	if !bytes.Equal(add.Selector, selector("add(uint64,uint64)uint64")) {
		t.Errorf("add selector = %x", add.Selector)
	}
	if spec.Contract.Methods[2].Description != "greets" {
		t.Errorf("hello description = %q", spec.Contract.Methods[2].Description)
	}

	wantBare := map[string]string{"no_op": "CREATE", "update_application": "CALL", "delete_application": "CALL"}
	if len(spec.BareCalls) != len(wantBare) {
		t.Errorf("BareCalls = %v, want %v", spec.BareCalls, wantBare)
	}
	for k, v := range wantBare {
		if spec.BareCalls[k] != v {
			t.Errorf("BareCalls[%s] = %q, want %q", k, spec.BareCalls[k], v)
		}
	}

	if spec.Schema.Global != (StateSchema{NumUints: 1}) || spec.Schema.Local != (StateSchema{}) {
		t.Errorf("Schema = %+v", spec.Schema)
	}
	if d := spec.State.Global.Declared["count"]; d.Type != "uint64" || d.Key != "count" || d.Description != "calls so far" {
		t.Errorf("declared count = %+v", d)
	}

	src, err := base64.StdEncoding.DecodeString(spec.Source.Approval)
	if err != nil {
		t.Fatalf("decode approval source: %v", err)
	}
	if !strings.HasPrefix(string(src), "#pragma version 8\n") {
		t.Errorf("approval source starts %q", string(src)[:20])
	}
	if spec.Hash.Approval != LogicSigAddress(spec.Binary.Approval) {
		t.Error("approval hash does not match binary")
	}
	if spec.ExtraPages != 0 {
		t.Errorf("ExtraPages = %d, want 0", spec.ExtraPages)
	}

	raw, err := spec.JSON()
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("JSON() produced invalid JSON: %v", err)
	}
	for _, key := range []string{"source", "binary", "hash", "contract", "schema", "state", "bare_call_config"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("JSON missing %q", key)
		}
	}
}

func TestApplication_WithSource(t *testing.T) {
	app := NewApplication("raw", WithSource(func(context.Context) (string, string, error) {
		return "#pragma version 8\npushint 1\nreturn", "#pragma version 8\npushint 1", nil
	}))
	node := PrecompileApp(app)
	if err := Compile(context.Background(), OfflineCompiler(), node); err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	bin, err := node.Approval.Binary()
	if err != nil {
		t.Fatalf("Binary() error = %v", err)
	}
	if !bytes.Equal(bin, []byte{0x08, 0x81, 0x01, 0x43}) {
		t.Errorf("approval = %x", bin)
	}
	if PrecompileApp(app) != node {
		t.Error("PrecompileApp() returned a different node")
	}
}
