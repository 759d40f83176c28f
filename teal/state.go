package teal

import "fmt"

func checkStored(opName string, v Value, t Type) (Value, error) {
	if v.typ == TypeNone {
		return zeroValue(t), nil
	}
	if v.typ != t {
		return Value{}, evalErrorf(opName, "stored %s, expected %s", v.typ, t)
	}
	return v, nil
}

// AppGlobalGet reads key from the current application's global state. A
// missing key reads as the zero value of t.
func AppGlobalGet(key Expr, t Type) Expr {
	return op("app_global_get", t, func(f *frame, v []Value) (Value, error) {
		return checkStored("app_global_get", f.env.Globals[string(v[0].b)], t)
	}, []Expr{key}, TypeBytes)
}

// AppGlobalPut writes val under key in global state.
func AppGlobalPut(key, val Expr) Expr {
	return op("app_global_put", TypeNone, func(f *frame, v []Value) (Value, error) {
		if f.env.Globals == nil {
			f.env.Globals = make(map[string]Value)
		}
		f.env.Globals[string(v[0].b)] = v[1]
		return Value{}, nil
	}, []Expr{key, val}, TypeBytes, anyType)
}

// AppGlobalExists reports whether key is present in global state.
func AppGlobalExists(key Expr) Expr {
	x := op("app_global_get_ex", TypeUint64, func(f *frame, v []Value) (Value, error) {
		_, ok := f.env.Globals[string(v[1].b)]
		return UintValue(boolean(ok)), nil
	}, []Expr{Int(0), key}, TypeUint64, TypeBytes)
	x.ops = []string{"app_global_get_ex", "swap", "pop"}
	return x
}

// AppLocalGet reads key from account's local state for the current
// application. A missing key reads as the zero value of t.
func AppLocalGet(account, key Expr, t Type) Expr {
	return op("app_local_get", t, func(f *frame, v []Value) (Value, error) {
		acct := f.env.Locals[string(v[0].b)]
		return checkStored("app_local_get", acct[string(v[1].b)], t)
	}, []Expr{account, key}, TypeBytes, TypeBytes)
}

// AppLocalPut writes val under key in account's local state.
func AppLocalPut(account, key, val Expr) Expr {
	return op("app_local_put", TypeNone, func(f *frame, v []Value) (Value, error) {
		if f.env.Locals == nil {
			f.env.Locals = make(map[string]map[string]Value)
		}
		acct := string(v[0].b)
		if f.env.Locals[acct] == nil {
			if !f.env.OptedIn(v[0].b) {
				return Value{}, evalErrorf("app_local_put", "account %x is not opted in", v[0].b)
			}
			f.env.Locals[acct] = make(map[string]Value)
		}
		f.env.Locals[acct][string(v[1].b)] = v[2]
		return Value{}, nil
	}, []Expr{account, key, val}, TypeBytes, TypeBytes, anyType)
}

// OptIn marks account as opted in to the evaluated application.
func (env *Env) OptIn(account []byte) {
	if env.Locals == nil {
		env.Locals = make(map[string]map[string]Value)
	}
	if env.Locals[string(account)] == nil {
		env.Locals[string(account)] = make(map[string]Value)
	}
}

// OptedIn reports whether account has local state.
func (env *Env) OptedIn(account []byte) bool {
	_, ok := env.Locals[string(account)]
	return ok
}

// String renders the state sizes, for debugging.
func (env *Env) String() string {
	return fmt.Sprintf("Env{args=%d globals=%d locals=%d logs=%d}", len(env.Args), len(env.Globals), len(env.Locals), len(env.Logs))
}
