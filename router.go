package beaker

import (
	"fmt"

	"github.com/branched-services/go-beaker/teal"
)

// ReturnPrefix precedes an ARC-4 method's return value in the log.
var ReturnPrefix = []byte{0x15, 0x1f, 0x7c, 0x75}

// ApprovalExpr builds the approval program. Calls without arguments are
// dispatched on OnCompletion to the bare actions; other calls on the
// selector in argument 0. Anything unmatched fails.
func (a *Application) ApprovalExpr() (teal.Expr, error) {
	bare, err := a.bareDispatch()
	if err != nil {
		return nil, err
	}
	methods, err := a.methodDispatch()
	if err != nil {
		return nil, err
	}
	return teal.If(teal.Eq(teal.TxnNumAppArgs(), teal.Int(0)), bare, methods), nil
}

// ClearExpr builds the clear program, which always approves.
func (a *Application) ClearExpr() teal.Expr {
	return teal.Approve()
}

func (a *Application) bareDispatch() (teal.Expr, error) {
	branches := make([][2]teal.Expr, 0, len(a.bareOrder))
	for _, key := range a.bareOrder {
		action := a.bare[key]
		var body teal.Expr
		if action.handler != nil {
			var err error
			if body, err = action.handler(); err != nil {
				return nil, &MethodError{Method: "bare " + key.oc.String(), Err: err}
			}
		}
		guarded, err := finishHandler(body, action.cfg)
		if err != nil {
			return nil, &MethodError{Method: "bare " + key.oc.String(), Err: err}
		}
		branches = append(branches, [2]teal.Expr{bareCondition(key), guarded})
	}
	return teal.Cond(branches...), nil
}

func bareCondition(key bareKey) teal.Expr {
	onComplete := teal.Eq(teal.TxnOnCompletion(), teal.Int(uint64(key.oc)))
	if key.create {
		return teal.And(onComplete, teal.Eq(teal.TxnApplicationID(), teal.Int(0)))
	}
	return teal.And(onComplete, teal.Neq(teal.TxnApplicationID(), teal.Int(0)))
}

func (a *Application) methodDispatch() (teal.Expr, error) {
	branches := make([][2]teal.Expr, 0, len(a.methods))
	for _, m := range a.methods {
		body, err := routeMethod(m)
		if err != nil {
			return nil, &MethodError{Method: m.signature, Err: err}
		}
		sel := m.selector
		branches = append(branches, [2]teal.Expr{teal.Eq(teal.AppArg(0), teal.Bytes(sel[:])), body})
	}
	return teal.Cond(branches...), nil
}

// routeMethod wraps a method handler: NoOp call on an existing application,
// authorization, then the body with its return value logged.
func routeMethod(m *Method) (teal.Expr, error) {
	var body teal.Expr
	if m.handler != nil {
		var err error
		if body, err = m.handler(m.argExprs()); err != nil {
			return nil, err
		}
	}

	if m.Returns != "void" {
		if body == nil {
			return nil, fmt.Errorf("handler returned no value for %s", m.Returns)
		}
		switch body.Type() {
		case teal.TypeUint64:
			if m.Returns != "uint64" {
				return nil, fmt.Errorf("handler returned uint64 for %s", m.Returns)
			}
			body = teal.Itob(body)
		case teal.TypeBytes:
		default:
			return nil, fmt.Errorf("handler returned %s for %s", body.Type(), m.Returns)
		}
		body = teal.Log(teal.Concat(teal.Bytes(ReturnPrefix), body))
	} else if body != nil && body.Type() != teal.TypeNone {
		return nil, fmt.Errorf("void method handler returned %s", body.Type())
	}

	routed, err := finishHandler(body, m.cfg)
	if err != nil {
		return nil, err
	}
	return teal.Seq(
		teal.Assert(teal.Eq(teal.TxnOnCompletion(), teal.Int(uint64(NoOp)))),
		teal.Assert(teal.Neq(teal.TxnApplicationID(), teal.Int(0))),
		routed,
	), nil
}

// finishHandler asserts the authorization predicate and ends the branch.
// A uint64 body becomes the program result; a TypeNone body is followed by
// approval.
func finishHandler(body teal.Expr, cfg *methodConfig) (teal.Expr, error) {
	var parts []teal.Expr
	if cfg.authorize != nil {
		if t := cfg.authorize.Type(); t != teal.TypeUint64 {
			return nil, fmt.Errorf("authorize predicate has type %s", t)
		}
		parts = append(parts, teal.Assert(cfg.authorize))
	}
	switch {
	case body == nil:
		parts = append(parts, teal.Approve())
	case body.Type() == teal.TypeUint64:
		parts = append(parts, teal.Return(body))
	case body.Type() == teal.TypeNone:
		parts = append(parts, body, teal.Approve())
	default:
		return nil, fmt.Errorf("handler body has type %s", body.Type())
	}
	return teal.Seq(parts...), nil
}

// OnlyCreator authorizes the application creator.
func OnlyCreator() teal.Expr {
	return teal.Eq(teal.TxnSender(), teal.GlobalCreatorAddress())
}

// OnlyAddress authorizes a single 32-byte address.
func OnlyAddress(addr teal.Expr) teal.Expr {
	return teal.Eq(teal.TxnSender(), addr)
}
