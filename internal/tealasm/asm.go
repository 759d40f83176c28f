// Package tealasm assembles the subset of TEAL that package teal generates.
//
// It exists for offline builds and tests. Programs use push opcodes for
// every constant, so no constant blocks are produced, and branch offsets are
// always two bytes.
package tealasm

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrSyntax indicates a line that cannot be parsed.
	ErrSyntax = errors.New("tealasm: syntax error")

	// ErrUnknownOp indicates an opcode outside the supported subset.
	ErrUnknownOp = errors.New("tealasm: unknown opcode")

	// ErrLabel indicates a missing, duplicate or out of range label.
	ErrLabel = errors.New("tealasm: label error")
)

// LineError locates an assembly failure.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("tealasm: line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Program is an assembled program.
type Program struct {
	Version uint64
	Binary  []byte

	// PCToLine maps the first byte of every instruction to its source line.
	PCToLine map[int]int
}

type immKind uint8

const (
	immNone immKind = iota
	immUint8
	immUint8x2
	immField
	immFieldIndex
	immLabel
	immInt
	immBytes
)

type opSpec struct {
	code byte
	imm  immKind
}

var ops = map[string]opSpec{
	"err":               {0x00, immNone},
	"sha256":            {0x01, immNone},
	"keccak256":         {0x02, immNone},
	"sha512_256":        {0x03, immNone},
	"+":                 {0x08, immNone},
	"-":                 {0x09, immNone},
	"/":                 {0x0a, immNone},
	"*":                 {0x0b, immNone},
	"<":                 {0x0c, immNone},
	">":                 {0x0d, immNone},
	"<=":                {0x0e, immNone},
	">=":                {0x0f, immNone},
	"&&":                {0x10, immNone},
	"||":                {0x11, immNone},
	"==":                {0x12, immNone},
	"!=":                {0x13, immNone},
	"!":                 {0x14, immNone},
	"len":               {0x15, immNone},
	"itob":              {0x16, immNone},
	"btoi":              {0x17, immNone},
	"%":                 {0x18, immNone},
	"|":                 {0x19, immNone},
	"&":                 {0x1a, immNone},
	"^":                 {0x1b, immNone},
	"~":                 {0x1c, immNone},
	"arg":               {0x2c, immUint8},
	"txn":               {0x31, immField},
	"global":            {0x32, immField},
	"load":              {0x34, immUint8},
	"store":             {0x35, immUint8},
	"txna":              {0x36, immFieldIndex},
	"bnz":               {0x40, immLabel},
	"bz":                {0x41, immLabel},
	"b":                 {0x42, immLabel},
	"return":            {0x43, immNone},
	"assert":            {0x44, immNone},
	"pop":               {0x48, immNone},
	"dup":               {0x49, immNone},
	"dup2":              {0x4a, immNone},
	"dig":               {0x4b, immUint8},
	"swap":              {0x4c, immNone},
	"select":            {0x4d, immNone},
	"concat":            {0x50, immNone},
	"substring":         {0x51, immUint8x2},
	"substring3":        {0x52, immNone},
	"extract":           {0x57, immUint8x2},
	"extract3":          {0x58, immNone},
	"app_opted_in":      {0x61, immNone},
	"app_local_get":     {0x62, immNone},
	"app_local_get_ex":  {0x63, immNone},
	"app_global_get":    {0x64, immNone},
	"app_global_get_ex": {0x65, immNone},
	"app_local_put":     {0x66, immNone},
	"app_global_put":    {0x67, immNone},
	"app_local_del":     {0x68, immNone},
	"app_global_del":    {0x69, immNone},
	"pushbytes":         {0x80, immBytes},
	"pushint":           {0x81, immInt},
	"callsub":           {0x88, immLabel},
	"retsub":            {0x89, immNone},
	"shl":               {0x90, immNone},
	"shr":               {0x91, immNone},
	"log":               {0xb0, immNone},

	// pseudo ops, assembled as their push forms
	"int":  {0x81, immInt},
	"byte": {0x80, immBytes},
}

var txnFields = map[string]byte{
	"Sender":           0,
	"Fee":              1,
	"FirstValid":       2,
	"LastValid":        4,
	"Note":             5,
	"Lease":            6,
	"Receiver":         7,
	"Amount":           8,
	"CloseRemainderTo": 9,
	"TypeEnum":         16,
	"GroupIndex":       22,
	"TxID":             23,
	"ApplicationID":    24,
	"OnCompletion":     25,
	"ApplicationArgs":  26,
	"NumAppArgs":       27,
	"Accounts":         28,
	"NumAccounts":      29,
	"RekeyTo":          32,
}

var globalFields = map[string]byte{
	"MinTxnFee":                 0,
	"MinBalance":                1,
	"MaxTxnLife":                2,
	"ZeroAddress":               3,
	"GroupSize":                 4,
	"LogicSigVersion":           5,
	"Round":                     6,
	"LatestTimestamp":           7,
	"CurrentApplicationID":      8,
	"CreatorAddress":            9,
	"CurrentApplicationAddress": 10,
	"GroupID":                   11,
}

type instruction struct {
	line   int
	text   string
	spec   opSpec
	name   string
	args   []string
	pc     int
	size   int
	imm    []byte
	target string
}

// Assemble assembles source. Lines are split on "\n" and numbered from 0.
func Assemble(source string) (*Program, error) {
	lines := strings.Split(source, "\n")
	prog := &Program{Version: 1, PCToLine: make(map[int]int)}
	labels := make(map[string]int)
	var insts []*instruction

	pc := 1
	pragmaLine := -1
	for i, raw := range lines {
		fields, err := tokenize(raw)
		if err != nil {
			return nil, &LineError{Line: i, Text: raw, Err: err}
		}
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "#pragma" {
			if len(fields) != 3 || fields[1] != "version" || pc != 1 || len(insts) > 0 {
				return nil, &LineError{Line: i, Text: raw, Err: ErrSyntax}
			}
			v, err := strconv.ParseUint(fields[2], 10, 64)
			if err != nil {
				return nil, &LineError{Line: i, Text: raw, Err: fmt.Errorf("%w: version %q", ErrSyntax, fields[2])}
			}
			prog.Version = v
			pragmaLine = i
			continue
		}
		if strings.HasSuffix(fields[0], ":") && len(fields) == 1 {
			name := strings.TrimSuffix(fields[0], ":")
			if _, dup := labels[name]; dup || name == "" {
				return nil, &LineError{Line: i, Text: raw, Err: fmt.Errorf("%w: duplicate label %q", ErrLabel, name)}
			}
			labels[name] = pc
			continue
		}

		inst, err := parseInstruction(fields)
		if err != nil {
			return nil, &LineError{Line: i, Text: raw, Err: err}
		}
		inst.line, inst.text, inst.pc = i, raw, pc
		insts = append(insts, inst)
		pc += inst.size
	}

	versionBytes := binary.AppendUvarint(nil, prog.Version)
	shift := len(versionBytes) - 1
	out := make([]byte, 0, pc+shift)
	out = append(out, versionBytes...)
	if pragmaLine >= 0 {
		prog.PCToLine[0] = pragmaLine
	}

	for _, inst := range insts {
		out = append(out, inst.spec.code)
		if inst.spec.imm == immLabel {
			target, ok := labels[inst.target]
			if !ok {
				return nil, &LineError{Line: inst.line, Text: inst.text, Err: fmt.Errorf("%w: unknown label %q", ErrLabel, inst.target)}
			}
			rel := target - (inst.pc + inst.size)
			if rel < -0x8000 || rel > 0x7fff {
				return nil, &LineError{Line: inst.line, Text: inst.text, Err: fmt.Errorf("%w: branch offset %d", ErrLabel, rel)}
			}
			out = binary.BigEndian.AppendUint16(out, uint16(int16(rel)))
		} else {
			out = append(out, inst.imm...)
		}
		prog.PCToLine[inst.pc+shift] = inst.line
	}

	prog.Binary = out
	return prog, nil
}

func parseInstruction(fields []string) (*instruction, error) {
	name, args := fields[0], fields[1:]
	spec, ok := ops[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, name)
	}
	inst := &instruction{spec: spec, name: name, args: args}

	want := map[immKind]int{
		immNone: 0, immUint8: 1, immUint8x2: 2, immField: 1,
		immFieldIndex: 2, immLabel: 1, immInt: 1, immBytes: 1,
	}[spec.imm]
	if len(args) != want {
		return nil, fmt.Errorf("%w: %s expects %d immediates, got %d", ErrSyntax, name, want, len(args))
	}

	var err error
	switch spec.imm {
	case immUint8:
		inst.imm, err = uint8Imm(args[0])
	case immUint8x2:
		var a, b []byte
		if a, err = uint8Imm(args[0]); err == nil {
			if b, err = uint8Imm(args[1]); err == nil {
				inst.imm = append(a, b...)
			}
		}
	case immField:
		inst.imm, err = fieldImm(name, args[0])
	case immFieldIndex:
		var f, idx []byte
		if f, err = fieldImm(name, args[0]); err == nil {
			if idx, err = uint8Imm(args[1]); err == nil {
				inst.imm = append(f, idx...)
			}
		}
	case immLabel:
		inst.target = args[0]
		inst.size = 3
		return inst, nil
	case immInt:
		var n uint64
		if n, err = strconv.ParseUint(args[0], 0, 64); err == nil {
			inst.imm = binary.AppendUvarint(nil, n)
		} else {
			err = fmt.Errorf("%w: integer %q", ErrSyntax, args[0])
		}
	case immBytes:
		var b []byte
		if b, err = bytesLiteral(args[0]); err == nil {
			inst.imm = append(binary.AppendUvarint(nil, uint64(len(b))), b...)
		}
	}
	if err != nil {
		return nil, err
	}
	inst.size = 1 + len(inst.imm)
	return inst, nil
}

func uint8Imm(s string) ([]byte, error) {
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: byte immediate %q", ErrSyntax, s)
	}
	return []byte{byte(n)}, nil
}

func fieldImm(op, name string) ([]byte, error) {
	fields := txnFields
	if op == "global" {
		fields = globalFields
	}
	f, ok := fields[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown %s field %q", ErrSyntax, op, name)
	}
	return []byte{f}, nil
}

func bytesLiteral(s string) ([]byte, error) {
	switch {
	case strings.HasPrefix(s, "0x"):
		b, err := hex.DecodeString(s[2:])
		if err != nil {
			return nil, fmt.Errorf("%w: hex literal %q", ErrSyntax, s)
		}
		return b, nil
	case strings.HasPrefix(s, `"`):
		str, err := strconv.Unquote(s)
		if err != nil {
			return nil, fmt.Errorf("%w: string literal %s", ErrSyntax, s)
		}
		return []byte(str), nil
	default:
		return nil, fmt.Errorf("%w: bytes literal %q", ErrSyntax, s)
	}
}

// tokenize splits a line into fields, keeping quoted strings whole and
// dropping "//" comments.
func tokenize(line string) ([]string, error) {
	var (
		fields []string
		cur    strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			fields = append(fields, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			end := i + 1
			for end < len(line) && line[end] != '"' {
				if line[end] == '\\' {
					end++
				}
				end++
			}
			if end >= len(line) {
				return nil, fmt.Errorf("%w: unterminated string", ErrSyntax)
			}
			cur.WriteString(line[i : end+1])
			i = end
		case c == '/' && i+1 < len(line) && line[i+1] == '/':
			flush()
			return fields, nil
		case c == ' ' || c == '\t' || c == '\r':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return fields, nil
}
