package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	beaker "github.com/branched-services/go-beaker"
)

const escrowTEAL = `#pragma version 8
txn Sender
pushbytes TMPL_OWNER // TMPL_OWNER
==
// sender is not the owner
assert
txn Fee
pushint TMPL_MAX_FEE // TMPL_MAX_FEE
<=`

const factoryTEAL = `#pragma version 8
pushbytes {{ approval "child" }}
len
pop
pushbytes {{ hash "escrow" }}
len
pushint 32
==
// digest is 32 bytes
assert
pushint {{ extraPages "child" }}
pop
pushint 1`

const approveTEAL = "#pragma version 8\npushint 1"

const manifestYAML = `root: factory
apps:
  - name: factory
    description: deploys children
    approval: factory.teal
    clear: approve.teal
    depends: [child, escrow]
  - name: child
    approval: approve.teal
    clear: approve.teal
lsigs:
  - name: escrow
    source: escrow.teal
    variables:
      - {name: owner, kind: bytes}
      - {name: max_fee, kind: uint64}
`

// escrowBinary is escrowTEAL with zero literals at pcs 4 and 10.
var escrowBinary = []byte{0x08, 0x31, 0x00, 0x80, 0x00, 0x12, 0x44, 0x31, 0x01, 0x81, 0x00, 0x0e}

func writeProject(t *testing.T, manifest string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"beaker.yaml":  manifest,
		"escrow.teal":  escrowTEAL,
		"factory.teal": factoryTEAL,
		"approve.teal": approveTEAL,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return filepath.Join(dir, "beaker.yaml")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, logs bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPrecompile(t *testing.T) {
	manifest := writeProject(t, manifestYAML)

	out, err := run(t, "precompile", "-m", manifest, "--offline", "--concurrency", "2")
	require.NoError(t, err)

	var reports []nodeReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 3)

	factory, child, escrow := reports[0], reports[1], reports[2]
	assert.Equal(t, "factory", factory.Name)
	assert.Equal(t, "app", factory.Kind)
	assert.Equal(t, "child", child.Name)
	assert.Equal(t, hexutil.Bytes{0x08, 0x81, 0x01}, child.Approval)
	assert.Equal(t, beaker.LogicSigAddress(child.Approval), child.ApprovalHash)

	// the child's approval program is embedded in the factory's
	assert.True(t, bytes.Contains(factory.Approval, []byte{0x80, 0x03, 0x08, 0x81, 0x01}))
	digest := beaker.ProgramDigest(escrowBinary)
	assert.True(t, bytes.Contains(factory.Approval, append([]byte{0x80, 0x20}, digest[:]...)))

	assert.Equal(t, "escrow", escrow.Name)
	assert.Equal(t, hexutil.Bytes(escrowBinary), escrow.Logic)
	assert.Equal(t, beaker.LogicSigAddress(escrowBinary), escrow.Address)
	assert.Equal(t, []variableReport{
		{Name: "owner", Kind: "bytes", PC: 4},
		{Name: "max_fee", Kind: "uint64", PC: 10},
	}, escrow.Variables)
}

func TestPrecompile_Subtree(t *testing.T) {
	manifest := writeProject(t, manifestYAML)

	out, err := run(t, "precompile", "child", "-m", manifest, "--offline")
	require.NoError(t, err)

	var reports []nodeReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "child", reports[0].Name)
}

func TestPrecompile_Errors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		wantErr  string
	}{
		{
			name:     "unknown dependency",
			manifest: "apps:\n  - {name: a, approval: approve.teal, clear: approve.teal, depends: [ghost]}\n",
			wantErr:  `depends on unknown "ghost"`,
		},
		{
			name:     "duplicate names",
			manifest: "apps:\n  - {name: a, approval: approve.teal, clear: approve.teal}\nlsigs:\n  - {name: a, source: escrow.teal}\n",
			wantErr:  "duplicate names",
		},
		{
			name:     "unknown field",
			manifest: "apps:\n  - {name: a, program: approve.teal}\n",
			wantErr:  "invalid manifest",
		},
		{
			name:     "no root",
			manifest: "apps:\n  - {name: a, approval: approve.teal, clear: approve.teal}\n",
			wantErr:  "no root",
		},
		{
			name: "cycle",
			manifest: "root: a\napps:\n" +
				"  - {name: a, approval: approve.teal, clear: approve.teal, depends: [b]}\n" +
				"  - {name: b, approval: approve.teal, clear: approve.teal, depends: [a]}\n",
			wantErr: "a -> b -> a",
		},
		{
			name:     "undeclared dependency in template",
			manifest: "root: a\napps:\n  - {name: a, approval: factory.teal, clear: approve.teal}\n  - {name: child, approval: approve.teal, clear: approve.teal}\n",
			wantErr:  beaker.ErrUninitialized.Error(),
		},
		{
			name:     "bad variable kind",
			manifest: "lsigs:\n  - name: e\n    source: escrow.teal\n    variables: [{name: owner, kind: float}]\n",
			wantErr:  `unknown kind "float"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manifest := writeProject(t, tt.manifest)
			_, err := run(t, "precompile", "-m", manifest, "--offline")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPopulate(t *testing.T) {
	manifest := writeProject(t, manifestYAML)
	owner := bytes.Repeat([]byte{0xaa}, 32)

	out, err := run(t, "populate", "-m", manifest, "--offline", "--lsig", "escrow",
		"--arg", "max_fee=1000", "--arg", "owner="+hexutil.Encode(owner))
	require.NoError(t, err)

	var report populateReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))

	want := append([]byte{0x08, 0x31, 0x00, 0x80, 0x20}, owner...)
	want = append(want, 0x12, 0x44, 0x31, 0x01, 0x81, 0xe8, 0x07, 0x0e)
	assert.Equal(t, hexutil.Bytes(want), report.Binary)
	assert.Equal(t, beaker.LogicSigAddress(want), report.Address)
}

func TestPopulate_Errors(t *testing.T) {
	manifest := writeProject(t, manifestYAML)
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing", []string{"--arg", "owner=x"}, "missing template variable max_fee"},
		{"unknown", []string{"--arg", "owner=x", "--arg", "max_fee=1", "--arg", "extra=1"}, "unknown template variables [extra]"},
		{"twice", []string{"--arg", "owner=x", "--arg", "owner=y"}, "given twice"},
		{"no separator", []string{"--arg", "owner"}, "not name=value"},
		{"bad hex", []string{"--arg", "owner=0xz", "--arg", "max_fee=1"}, "template variable owner"},
		{"string for uint", []string{"--arg", "owner=x", "--arg", "max_fee=lots"}, "expected uint64, got string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"populate", "-m", manifest, "--offline", "--lsig", "escrow"}, tt.args...)
			_, err := run(t, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := run(t, "populate", "-m", manifest, "--offline", "--lsig", "child")
	require.ErrorContains(t, err, `unknown logic signature "child"`)
}

func TestAsserts(t *testing.T) {
	manifest := writeProject(t, manifestYAML)

	out, err := run(t, "asserts", "-m", manifest, "--offline", "--program", "escrow")
	require.NoError(t, err)
	assert.Equal(t, "6\t5\tsender is not the owner\n", out)

	// 08 | 80 03 08 81 01 | 15 | 48 | 80 20 <32> | 15 | 81 20 | 12 | 44
	out, err = run(t, "asserts", "-m", manifest, "--offline", "--program", "factory")
	require.NoError(t, err)
	assert.Equal(t, "46\t9\tdigest is 32 bytes\n", out)

	out, err = run(t, "asserts", "-m", manifest, "--offline", "--program", "factory", "--clear")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestEnvironmentAndConfig(t *testing.T) {
	manifest := writeProject(t, manifestYAML)
	dir := filepath.Dir(manifest)

	t.Run("env", func(t *testing.T) {
		t.Setenv("BEAKER_OFFLINE", "true")
		t.Setenv("BEAKER_MANIFEST", manifest)
		_, err := run(t, "precompile", "escrow")
		require.NoError(t, err)
	})

	t.Run("config file", func(t *testing.T) {
		config := filepath.Join(dir, "config.yaml")
		content := "offline: true\nmanifest: \"" + filepath.ToSlash(manifest) + "\"\n"
		require.NoError(t, os.WriteFile(config, []byte(content), 0o644))
		_, err := run(t, "precompile", "escrow", "--config", config)
		require.NoError(t, err)
	})

	t.Run("missing config", func(t *testing.T) {
		_, err := run(t, "precompile", "--config", filepath.Join(dir, "nope.yaml"))
		require.ErrorContains(t, err, "read config")
	})
}

func TestMetricsFile(t *testing.T) {
	manifest := writeProject(t, manifestYAML)
	metrics := filepath.Join(filepath.Dir(manifest), "metrics.prom")

	_, err := run(t, "precompile", "-m", manifest, "--offline", "--metrics-file", metrics)
	require.NoError(t, err)

	data, err := os.ReadFile(metrics)
	require.NoError(t, err)
	text := string(data)
	// two programs per application plus the logic signature
	assert.Contains(t, text, `beaker_compile_requests_total{result="success"} 5`)
	assert.True(t, strings.Contains(text, "beaker_compile_duration_seconds_count 5"))
}
