package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	beaker "github.com/branched-services/go-beaker"
)

var errManifest = errors.New("invalid manifest")

// Manifest lists the programs of a project. TEAL paths are relative to the
// manifest file.
type Manifest struct {
	Root  string      `yaml:"root"`
	Apps  []AppEntry  `yaml:"apps"`
	LSigs []LSigEntry `yaml:"lsigs"`

	dir string
}

// AppEntry is an application whose approval and clear programs are
// text/template files rendered after its dependencies compile.
type AppEntry struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Approval    string   `yaml:"approval"`
	Clear       string   `yaml:"clear"`
	Depends     []string `yaml:"depends"`
}

// LSigEntry is a logic signature with optional template variables.
type LSigEntry struct {
	Name      string          `yaml:"name"`
	Source    string          `yaml:"source"`
	Variables []VariableEntry `yaml:"variables"`
}

// VariableEntry declares a template variable. Kind is "bytes" or "uint64".
type VariableEntry struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
}

// LoadManifest reads and decodes the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errManifest, path, err)
	}
	m.dir = filepath.Dir(path)
	return &m, nil
}

// project is a manifest resolved into precompile nodes.
type project struct {
	manifest *Manifest
	order    []string
	apps     map[string]*beaker.AppPrecompile
	lsigs    map[string]*beaker.LSigPrecompile
}

func (m *Manifest) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(m.dir, path)
}

// newProject creates a node for every entry of m and wires declared
// dependencies.
func newProject(m *Manifest) (*project, error) {
	p := &project{
		manifest: m,
		apps:     make(map[string]*beaker.AppPrecompile),
		lsigs:    make(map[string]*beaker.LSigPrecompile),
	}

	names := append(lo.Map(m.Apps, func(a AppEntry, _ int) string { return a.Name }),
		lo.Map(m.LSigs, func(l LSigEntry, _ int) string { return l.Name })...)
	if lo.Contains(names, "") {
		return nil, fmt.Errorf("%w: entry without a name", errManifest)
	}
	if dups := lo.FindDuplicates(names); len(dups) > 0 {
		return nil, fmt.Errorf("%w: duplicate names %v", errManifest, dups)
	}
	p.order = names

	for _, entry := range m.LSigs {
		node, err := m.buildLSig(entry)
		if err != nil {
			return nil, err
		}
		p.lsigs[entry.Name] = node
	}
	for _, entry := range m.Apps {
		entry := entry
		app := beaker.NewApplication(entry.Name,
			beaker.WithDescription(entry.Description),
			beaker.WithSource(func(ctx context.Context) (string, string, error) {
				return p.renderApp(entry)
			}),
		)
		p.apps[entry.Name] = beaker.PrecompileApp(app)
	}
	for _, entry := range m.Apps {
		app := p.apps[entry.Name].App
		for _, dep := range entry.Depends {
			node, ok := p.node(dep)
			if !ok {
				return nil, fmt.Errorf("%w: %s depends on unknown %q", errManifest, entry.Name, dep)
			}
			app.AddPrecompile(node)
		}
	}

	if m.Root != "" {
		if _, ok := p.node(m.Root); !ok {
			return nil, fmt.Errorf("%w: unknown root %q", errManifest, m.Root)
		}
	}
	return p, nil
}

func (m *Manifest) buildLSig(entry LSigEntry) (*beaker.LSigPrecompile, error) {
	if entry.Source == "" {
		return nil, fmt.Errorf("%w: lsig %s has no source", errManifest, entry.Name)
	}
	src, err := os.ReadFile(m.resolve(entry.Source))
	if err != nil {
		return nil, err
	}
	vars := make([]beaker.TemplateVariable, 0, len(entry.Variables))
	for _, v := range entry.Variables {
		kind, err := parseKind(v.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: lsig %s variable %s: %v", errManifest, entry.Name, v.Name, err)
		}
		vars = append(vars, beaker.NewTemplateVariable(v.Name, kind))
	}
	lsig := beaker.NewLogicSignatureFromSource(entry.Name, string(src), beaker.WithTemplateVariables(vars...))
	return beaker.PrecompileLSig(lsig), nil
}

func parseKind(s string) (beaker.ValueKind, error) {
	switch s {
	case "bytes", "":
		return beaker.KindBytes, nil
	case "uint64", "int":
		return beaker.KindUint64, nil
	default:
		return 0, fmt.Errorf("unknown kind %q", s)
	}
}

func (p *project) node(name string) (beaker.Node, bool) {
	if app, ok := p.apps[name]; ok {
		return app, true
	}
	if lsig, ok := p.lsigs[name]; ok {
		return lsig, true
	}
	return nil, false
}

func (p *project) renderApp(entry AppEntry) (approval, clear string, err error) {
	if approval, err = p.render(entry.Approval); err != nil {
		return "", "", fmt.Errorf("%s: %w", entry.Approval, err)
	}
	if clear, err = p.render(entry.Clear); err != nil {
		return "", "", fmt.Errorf("%s: %w", entry.Clear, err)
	}
	return approval, clear, nil
}

func (p *project) render(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: missing program path", errManifest)
	}
	text, err := os.ReadFile(p.manifest.resolve(path))
	if err != nil {
		return "", err
	}
	tmpl, err := template.New(filepath.Base(path)).
		Option("missingkey=error").
		Funcs(p.funcs()).
		Parse(string(text))
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	if err := tmpl.Execute(&out, nil); err != nil {
		return "", err
	}
	return out.String(), nil
}

// funcs exposes compiled dependencies to program templates. Binaries and
// digests render as 0x literals usable with pushbytes.
func (p *project) funcs() template.FuncMap {
	return template.FuncMap{
		"approval": func(name string) (string, error) {
			app, err := p.app(name)
			if err != nil {
				return "", err
			}
			return hexBinary(app.Approval.Binary())
		},
		"clear": func(name string) (string, error) {
			app, err := p.app(name)
			if err != nil {
				return "", err
			}
			return hexBinary(app.Clear.Binary())
		},
		"extraPages": func(name string) (int, error) {
			app, err := p.app(name)
			if err != nil {
				return 0, err
			}
			cfg, err := app.CreateConfig()
			if err != nil {
				return 0, err
			}
			return cfg.ExtraPages, nil
		},
		"logic": func(name string) (string, error) {
			lsig, err := p.lsig(name)
			if err != nil {
				return "", err
			}
			return hexBinary(lsig.Logic.Binary())
		},
		"address": func(name string) (string, error) {
			lsig, err := p.lsig(name)
			if err != nil {
				return "", err
			}
			return lsig.Address()
		},
		"hash": func(name string) (string, error) {
			lsig, err := p.lsig(name)
			if err != nil {
				return "", err
			}
			bin, err := lsig.Logic.Binary()
			if err != nil {
				return "", err
			}
			digest := beaker.ProgramDigest(bin)
			return hexutil.Encode(digest[:]), nil
		},
	}
}

func (p *project) app(name string) (*beaker.AppPrecompile, error) {
	app, ok := p.apps[name]
	if !ok {
		return nil, fmt.Errorf("unknown application %q", name)
	}
	return app, nil
}

func (p *project) lsig(name string) (*beaker.LSigPrecompile, error) {
	lsig, ok := p.lsigs[name]
	if !ok {
		return nil, fmt.Errorf("unknown logic signature %q", name)
	}
	return lsig, nil
}

func hexBinary(bin []byte, err error) (string, error) {
	if err != nil {
		return "", err
	}
	return hexutil.Encode(bin), nil
}
