package beaker

import (
	"encoding/base64"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/samber/lo"
)

// ApplicationSpecification describes a compiled application for clients.
type ApplicationSpecification struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Source      ProgramPair       `json:"source"`
	Binary      BinaryPair        `json:"binary"`
	Hash        ProgramPair       `json:"hash"`
	Contract    Contract          `json:"contract"`
	Schema      SchemaSpec        `json:"schema"`
	State       StateSpec         `json:"state"`
	BareCalls   map[string]string `json:"bare_call_config"`
	ExtraPages  int               `json:"extra_pages"`
}

// ProgramPair holds a value for each of the approval and clear programs.
type ProgramPair struct {
	Approval string `json:"approval"`
	Clear    string `json:"clear"`
}

// BinaryPair holds the assembled programs.
type BinaryPair struct {
	Approval hexutil.Bytes `json:"approval"`
	Clear    hexutil.Bytes `json:"clear"`
}

// Contract is the ARC-4 contract description.
type Contract struct {
	Name        string           `json:"name"`
	Description string           `json:"desc,omitempty"`
	Methods     []ContractMethod `json:"methods"`
}

// ContractMethod is one ARC-4 method description.
type ContractMethod struct {
	Name        string        `json:"name"`
	Description string        `json:"desc,omitempty"`
	Args        []ContractArg `json:"args"`
	Returns     ContractArg   `json:"returns"`
	Selector    hexutil.Bytes `json:"selector"`
	ReadOnly    bool          `json:"readonly,omitempty"`
}

// ContractArg is a typed argument or return value.
type ContractArg struct {
	Type string `json:"type"`
}

// SchemaSpec holds both state schemas.
type SchemaSpec struct {
	Global StateSchema `json:"global"`
	Local  StateSchema `json:"local"`
}

// StateSpec lists declared and reserved state for each side.
type StateSpec struct {
	Global StateValues `json:"global"`
	Local  StateValues `json:"local"`
}

// StateValues splits declarations into single keys and reserved ranges.
type StateValues struct {
	Declared map[string]DeclaredValue `json:"declared"`
	Reserved map[string]ReservedValue `json:"reserved"`
}

// DeclaredValue is a single state key.
type DeclaredValue struct {
	Type        string `json:"type"`
	Key         string `json:"key"`
	Description string `json:"descr,omitempty"`
	Static      bool   `json:"static,omitempty"`
}

// ReservedValue is a range of keys, including blobs.
type ReservedValue struct {
	Type        string `json:"type"`
	MaxKeys     int    `json:"max_keys"`
	Description string `json:"descr,omitempty"`
	Blob        bool   `json:"blob,omitempty"`
}

// Spec describes the compiled application.
func (p *AppPrecompile) Spec() (*ApplicationSpecification, error) {
	create, err := p.CreateConfig()
	if err != nil {
		return nil, err
	}
	approvalBin, _ := p.Approval.Binary()
	clearBin, _ := p.Clear.Binary()
	approvalHash, _ := p.Approval.BinaryHash()
	clearHash, _ := p.Clear.BinaryHash()

	app := p.App
	spec := &ApplicationSpecification{
		Name:        app.Name(),
		Description: app.Description(),
		Source: ProgramPair{
			Approval: base64.StdEncoding.EncodeToString([]byte(p.Approval.Source())),
			Clear:    base64.StdEncoding.EncodeToString([]byte(p.Clear.Source())),
		},
		Binary: BinaryPair{Approval: approvalBin, Clear: clearBin},
		Hash:   ProgramPair{Approval: approvalHash, Clear: clearHash},
		Contract: Contract{
			Name:        app.Name(),
			Description: app.Description(),
			Methods:     lo.Map(app.Methods(), func(m *Method, _ int) ContractMethod { return contractMethod(m) }),
		},
		Schema:     SchemaSpec{Global: create.GlobalSchema, Local: create.LocalSchema},
		State:      stateSpec(app.State()),
		BareCalls:  bareCallConfig(app),
		ExtraPages: create.ExtraPages,
	}
	return spec, nil
}

// JSON renders the specification indented.
func (s *ApplicationSpecification) JSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

func contractMethod(m *Method) ContractMethod {
	sel := m.Selector()
	return ContractMethod{
		Name:        m.Name,
		Description: m.Description(),
		Args:        lo.Map(m.Args, func(t string, _ int) ContractArg { return ContractArg{Type: t} }),
		Returns:     ContractArg{Type: m.Returns},
		Selector:    sel[:],
		ReadOnly:    m.ReadOnly(),
	}
}

func stateSpec(s *State) StateSpec {
	side := func(global bool) StateValues {
		decls := lo.Filter(s.Decls(), func(d StateDecl, _ int) bool { return d.Kind.Global() == global })
		v := StateValues{
			Declared: make(map[string]DeclaredValue),
			Reserved: make(map[string]ReservedValue),
		}
		for _, d := range decls {
			switch d.Kind {
			case ScalarGlobal, ScalarLocal:
				v.Declared[d.Name] = DeclaredValue{Type: d.Type.String(), Key: string(d.Key), Description: d.Description, Static: d.Static}
			case ReservedGlobal, ReservedLocal:
				v.Reserved[d.Name] = ReservedValue{Type: d.Type.String(), MaxKeys: d.MaxKeys, Description: d.Description}
			case BlobGlobal, BlobLocal:
				v.Reserved[d.Name] = ReservedValue{Type: d.Type.String(), MaxKeys: d.BlobKeys, Description: d.Description, Blob: true}
			}
		}
		return v
	}
	return StateSpec{Global: side(true), Local: side(false)}
}

func bareCallConfig(a *Application) map[string]string {
	out := make(map[string]string, len(a.bareOrder))
	for _, k := range a.bareOrder {
		cfg := "CALL"
		if k.create {
			cfg = "CREATE"
		}
		if prev, ok := out[k.oc.String()]; ok && prev != cfg {
			cfg = "ALL"
		}
		out[k.oc.String()] = cfg
	}
	return out
}
