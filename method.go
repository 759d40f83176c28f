package beaker

import (
	"crypto/sha512"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/branched-services/go-beaker/teal"
)

// MaxMethodAppArgs is the number of application arguments after the selector.
const MaxMethodAppArgs = 15

// Handler builds a method body. It receives one expression per argument:
// the raw application argument for ABI and reference types, and for
// transaction types the number of group positions before the call.
// Methods with a return type must return a bytes expression holding the
// encoded value (or a uint64 expression for uint64 returns); void methods
// return a TypeNone expression or nil.
type Handler func(args []teal.Expr) (teal.Expr, error)

// BareHandler builds the body of a bare action.
type BareHandler func() (teal.Expr, error)

var (
	referenceTypes   = map[string]bool{"account": true, "asset": true, "application": true}
	transactionTypes = map[string]bool{"txn": true, "pay": true, "keyreg": true, "acfg": true, "axfer": true, "afrz": true, "appl": true}

	arrayPattern  = regexp.MustCompile(`^(.+)\[(\d*)\]$`)
	uintPattern   = regexp.MustCompile(`^uint([1-9]\d*)$`)
	ufixedPattern = regexp.MustCompile(`^ufixed([1-9]\d*)x([1-9]\d*)$`)
	namePattern   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Method is an ARC-4 method with its handler.
type Method struct {
	Name    string
	Args    []string
	Returns string

	signature string
	selector  [4]byte
	handler   Handler
	cfg       *methodConfig
}

// NewMethod parses an ARC-4 signature such as "add(uint64,uint64)uint64".
func NewMethod(signature string, h Handler, opts ...MethodOption) (*Method, error) {
	name, args, ret, err := parseSignature(signature)
	if err != nil {
		return nil, err
	}
	cfg := &methodConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Method{
		Name:      name,
		Args:      args,
		Returns:   ret,
		signature: signature,
		selector:  MethodSelector(signature),
		handler:   h,
		cfg:       cfg,
	}, nil
}

// MethodSelector returns the first four bytes of SHA-512/256 of signature.
func MethodSelector(signature string) [4]byte {
	sum := sha512.Sum512_256([]byte(signature))
	var sel [4]byte
	copy(sel[:], sum[:4])
	return sel
}

// Signature returns the ARC-4 signature.
func (m *Method) Signature() string { return m.signature }

// Selector returns the method selector.
func (m *Method) Selector() [4]byte { return m.selector }

// SelectorHex returns the selector as 0x-prefixed hex.
func (m *Method) SelectorHex() string { return hexutil.Encode(m.selector[:]) }

// ReadOnly reports whether the method was marked read-only.
func (m *Method) ReadOnly() bool { return m.cfg.readOnly }

// Description returns the method description.
func (m *Method) Description() string { return m.cfg.description }

// appArgCount is the number of application arguments the method consumes.
func (m *Method) appArgCount() int {
	n := 0
	for _, a := range m.Args {
		if !transactionTypes[a] {
			n++
		}
	}
	return n
}

// argExprs maps arguments to their handler inputs.
func (m *Method) argExprs() []teal.Expr {
	txns := len(m.Args) - m.appArgCount()
	out := make([]teal.Expr, len(m.Args))
	appArg := uint8(1)
	for i, a := range m.Args {
		if transactionTypes[a] {
			out[i] = teal.Int(uint64(txns))
			txns--
			continue
		}
		out[i] = teal.AppArg(appArg)
		appArg++
	}
	return out
}

func parseSignature(sig string) (name string, args []string, ret string, err error) {
	open := strings.IndexByte(sig, '(')
	if open <= 0 {
		return "", nil, "", fmt.Errorf("%w: %q: missing name or argument list", ErrInvalidSignature, sig)
	}
	name = sig[:open]
	if !namePattern.MatchString(name) {
		return "", nil, "", fmt.Errorf("%w: %q: invalid method name", ErrInvalidSignature, sig)
	}

	close, err := matchParen(sig, open)
	if err != nil {
		return "", nil, "", fmt.Errorf("%w: %q: %v", ErrInvalidSignature, sig, err)
	}
	args, err = splitTopLevel(sig[open+1 : close])
	if err != nil {
		return "", nil, "", fmt.Errorf("%w: %q: %v", ErrInvalidSignature, sig, err)
	}
	for i, a := range args {
		if err := validateArgType(a); err != nil {
			return "", nil, "", fmt.Errorf("%w: %q argument %d: %v", ErrInvalidSignature, sig, i, err)
		}
	}

	ret = sig[close+1:]
	if ret != "void" {
		if err := validateABIType(ret); err != nil {
			return "", nil, "", fmt.Errorf("%w: %q return: %v", ErrInvalidSignature, sig, err)
		}
	}

	appArgs := 0
	for _, a := range args {
		if !transactionTypes[a] {
			appArgs++
		}
	}
	if appArgs > MaxMethodAppArgs {
		return "", nil, "", fmt.Errorf("%w: %q has %d application arguments (max %d)", ErrInvalidSignature, sig, appArgs, MaxMethodAppArgs)
	}
	return name, args, ret, nil
}

func matchParen(s string, open int) (int, error) {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("unbalanced parentheses")
}

// splitTopLevel splits a comma separated type list, ignoring commas nested
// in tuples.
func splitTopLevel(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var (
		out   []string
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced parentheses")
			}
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced parentheses")
	}
	out = append(out, s[start:])
	for _, t := range out {
		if t == "" {
			return nil, fmt.Errorf("empty type")
		}
	}
	return out, nil
}

func validateArgType(t string) error {
	if referenceTypes[t] || transactionTypes[t] {
		return nil
	}
	return validateABIType(t)
}

// validateABIType checks an ARC-4 value type.
func validateABIType(t string) error {
	if m := arrayPattern.FindStringSubmatch(t); m != nil {
		return validateABIType(m[1])
	}
	if strings.HasPrefix(t, "(") && strings.HasSuffix(t, ")") {
		comps, err := splitTopLevel(t[1 : len(t)-1])
		if err != nil {
			return err
		}
		for _, c := range comps {
			if err := validateABIType(c); err != nil {
				return err
			}
		}
		return nil
	}
	if m := ufixedPattern.FindStringSubmatch(t); m != nil {
		n, _ := strconv.Atoi(m[1])
		p, _ := strconv.Atoi(m[2])
		if n < 8 || n > 512 || n%8 != 0 || p < 1 || p > 160 {
			return fmt.Errorf("invalid type %q", t)
		}
		return nil
	}
	if m := uintPattern.FindStringSubmatch(t); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n < 8 || n > 512 || n%8 != 0 {
			return fmt.Errorf("invalid type %q", t)
		}
		return nil
	}
	switch t {
	case "byte", "bool", "string", "address":
		return nil
	}
	return fmt.Errorf("unknown type %q", t)
}
