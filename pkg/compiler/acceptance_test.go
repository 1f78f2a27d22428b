package compiler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/forthc/pkg/ast"
	"github.com/chazu/forthc/pkg/config"
	"github.com/chazu/forthc/pkg/ir"
)

// acceptanceCase is one directory under testdata: input.json is the tree,
// stdout.txt what running it prints, and the optional stdin.txt and
// error.txt the input it reads and the run-time fault it ends with.
type acceptanceCase struct {
	name   string
	tree   *ast.Program
	stdin  string
	stdout string
	fault  string
}

func loadCases(t *testing.T) []acceptanceCase {
	t.Helper()
	inputs, err := filepath.Glob(filepath.Join("..", "..", "testdata", "*", "input.json"))
	require.NoError(t, err)
	require.NotEmpty(t, inputs)

	var cases []acceptanceCase
	for _, input := range inputs {
		dir := filepath.Dir(input)
		data, err := os.ReadFile(input)
		require.NoError(t, err)
		tree, err := ast.ParseBytes(data)
		require.NoError(t, err, input)

		stdout, err := os.ReadFile(filepath.Join(dir, "stdout.txt"))
		require.NoError(t, err)
		cases = append(cases, acceptanceCase{
			name:   filepath.Base(dir),
			tree:   tree,
			stdin:  optional(t, filepath.Join(dir, "stdin.txt")),
			stdout: string(stdout),
			fault:  strings.TrimSpace(optional(t, filepath.Join(dir, "error.txt"))),
		})
	}
	return cases
}

func optional(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

func checkRun(t *testing.T, tc acceptanceCase, prog *ir.Program) {
	t.Helper()
	got, err := ir.Output(prog, tc.stdin)
	if tc.fault != "" {
		require.Error(t, err)
		assert.Contains(t, err.Error(), tc.fault)
	} else {
		require.NoError(t, err)
	}
	assert.Equal(t, tc.stdout, got)
}

func TestAcceptance(t *testing.T) {
	for _, tc := range loadCases(t) {
		t.Run(tc.name, func(t *testing.T) {
			plain, err := New(nil).Lower(tc.tree)
			require.NoError(t, err)
			checkRun(t, tc, plain)

			for _, inline := range []bool{false, true} {
				cfg := config.Default()
				cfg.Optimizer.Inline = inline
				c := New(cfg)

				prog := plain.Clone()
				report := c.Optimize(prog)
				assert.True(t, report.Converged, "inline=%v", inline)
				require.NoError(t, ir.Validate(prog))
				checkRun(t, tc, prog)
			}
		})
	}
}

func TestAcceptanceCompilesOnEveryBackend(t *testing.T) {
	c := New(nil)
	for _, tc := range loadCases(t) {
		for _, backend := range c.Backends() {
			t.Run(tc.name+"/"+backend, func(t *testing.T) {
				res, err := c.Compile(tc.tree, backend)
				require.NoError(t, err)
				assert.NotEmpty(t, res.Code)
			})
		}
	}
}
