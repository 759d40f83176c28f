package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	beaker "github.com/branched-services/go-beaker"
)

func newPrecompileCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "precompile [name]",
		Short: "Compile a program and everything it depends on",
		Long: "Compile the named application or logic signature, or the manifest root,\n" +
			"after its dependencies, and print the compiled programs as JSON.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := env.project()
			if err != nil {
				return err
			}
			name := p.manifest.Root
			if len(args) == 1 {
				name = args[0]
			}
			if name == "" {
				return errors.New("no program given and the manifest has no root")
			}
			if err := env.compile(cmd.Context(), p, name); err != nil {
				return err
			}
			report, err := p.report()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
}

func newPopulateCmd(env *environment) *cobra.Command {
	var (
		name string
		args []string
	)
	cmd := &cobra.Command{
		Use:   "populate",
		Short: "Fill the template variables of a logic signature",
		Long: "Compile a logic signature and substitute its template variables.\n" +
			"Values starting with 0x are bytes, decimal values of uint64 variables\n" +
			"are integers and anything else is taken as a string.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := env.project()
			if err != nil {
				return err
			}
			lsig, err := p.lsig(name)
			if err != nil {
				return err
			}
			if err := env.compile(cmd.Context(), p, name); err != nil {
				return err
			}
			values, err := templateArgs(lsig.Logic.TemplateValues(), args)
			if err != nil {
				return err
			}
			bin, err := lsig.Logic.Populate(values...)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), populateReport{
				Name:    name,
				Binary:  bin,
				Address: beaker.LogicSigAddress(bin),
			})
		},
	}
	cmd.Flags().StringVar(&name, "lsig", "", "Logic signature to populate")
	cmd.Flags().StringArrayVar(&args, "arg", nil, "Template value as name=value, repeatable")
	_ = cmd.MarkFlagRequired("lsig")
	return cmd
}

func newAssertsCmd(env *environment) *cobra.Command {
	var (
		name  string
		clear bool
	)
	cmd := &cobra.Command{
		Use:   "asserts",
		Short: "List the commented assertions of a compiled program",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := env.project()
			if err != nil {
				return err
			}
			if err := env.compile(cmd.Context(), p, name); err != nil {
				return err
			}
			var prog *beaker.Program
			switch {
			case p.apps[name] != nil && clear:
				prog = p.apps[name].Clear
			case p.apps[name] != nil:
				prog = p.apps[name].Approval
			default:
				prog = p.lsigs[name].Logic.Program
			}
			asserts, err := prog.Assertions()
			if err != nil {
				return err
			}
			return writeAssertions(cmd.OutOrStdout(), asserts)
		},
	}
	cmd.Flags().StringVar(&name, "program", "", "Application or logic signature")
	cmd.Flags().BoolVar(&clear, "clear", false, "Use the clear program of an application")
	_ = cmd.MarkFlagRequired("program")
	return cmd
}

type nodeReport struct {
	Name         string           `json:"name"`
	Kind         string           `json:"kind"`
	Approval     hexutil.Bytes    `json:"approval,omitempty"`
	Clear        hexutil.Bytes    `json:"clear,omitempty"`
	ApprovalHash string           `json:"approvalHash,omitempty"`
	ClearHash    string           `json:"clearHash,omitempty"`
	ExtraPages   int              `json:"extraPages,omitempty"`
	Logic        hexutil.Bytes    `json:"logic,omitempty"`
	Address      string           `json:"address,omitempty"`
	Variables    []variableReport `json:"variables,omitempty"`
}

type variableReport struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	PC   int    `json:"pc"`
}

type populateReport struct {
	Name    string        `json:"name"`
	Binary  hexutil.Bytes `json:"binary"`
	Address string        `json:"address"`
}

// report describes every compiled node in manifest order.
func (p *project) report() ([]nodeReport, error) {
	var out []nodeReport
	for _, name := range p.order {
		if app, ok := p.apps[name]; ok && app.Compiled() {
			cfg, err := app.CreateConfig()
			if err != nil {
				return nil, err
			}
			approval, _ := app.Approval.Binary()
			clear, _ := app.Clear.Binary()
			approvalHash, _ := app.Approval.BinaryHash()
			clearHash, _ := app.Clear.BinaryHash()
			out = append(out, nodeReport{
				Name:         name,
				Kind:         "app",
				Approval:     approval,
				Clear:        clear,
				ApprovalHash: approvalHash,
				ClearHash:    clearHash,
				ExtraPages:   cfg.ExtraPages,
			})
		}
		if lsig, ok := p.lsigs[name]; ok && lsig.Compiled() {
			bin, _ := lsig.Logic.Binary()
			addr, _ := lsig.Address()
			out = append(out, nodeReport{
				Name:    name,
				Kind:    "lsig",
				Logic:   bin,
				Address: addr,
				Variables: lo.Map(lsig.Logic.TemplateValues(), func(v beaker.TemplateValue, _ int) variableReport {
					return variableReport{Name: v.Name, Kind: v.Kind.String(), PC: v.PC}
				}),
			})
		}
	}
	return out, nil
}

// templateArgs orders name=value pairs by the declaration order of values.
func templateArgs(values []beaker.TemplateValue, pairs []string) ([]any, error) {
	given := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("argument %q is not name=value", pair)
		}
		if _, dup := given[k]; dup {
			return nil, fmt.Errorf("argument %s given twice", k)
		}
		given[k] = v
	}

	names := lo.Map(values, func(v beaker.TemplateValue, _ int) string { return v.Name })
	if unknown, _ := lo.Difference(lo.Keys(given), names); len(unknown) > 0 {
		slices.Sort(unknown)
		return nil, fmt.Errorf("unknown template variables %v", unknown)
	}

	out := make([]any, 0, len(values))
	for _, v := range values {
		raw, ok := given[v.Name]
		if !ok {
			return nil, fmt.Errorf("missing template variable %s", v.Name)
		}
		arg, err := parseArg(v.Kind, raw)
		if err != nil {
			return nil, fmt.Errorf("template variable %s: %w", v.Name, err)
		}
		out = append(out, arg)
	}
	return out, nil
}

func parseArg(kind beaker.ValueKind, raw string) (any, error) {
	if strings.HasPrefix(raw, "0x") {
		return hexutil.Decode(raw)
	}
	if kind == beaker.KindUint64 {
		if n, err := strconv.ParseUint(raw, 10, 64); err == nil {
			return n, nil
		}
	}
	return raw, nil
}

func writeAssertions(w io.Writer, asserts map[int]beaker.Assertion) error {
	pcs := lo.Keys(asserts)
	slices.Sort(pcs)
	for _, pc := range pcs {
		a := asserts[pc]
		if _, err := fmt.Fprintf(w, "%d\t%d\t%s\n", pc, a.Line, a.Message); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
