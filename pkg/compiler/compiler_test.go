package compiler

import (
	"errors"
	"testing"

	"github.com/chazu/forthc/pkg/ast"
	"github.com/chazu/forthc/pkg/config"
	"github.com/chazu/forthc/pkg/diag"
	"github.com/chazu/forthc/pkg/ir"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func squareTree() *ast.Program {
	return ast.Prog(
		ast.Def("SQUARE", ast.W("DUP"), ast.W("*")),
		ast.Num(7), ast.W("SQUARE"), ast.Num(2), ast.Num(3), ast.W("+"), ast.W("+"), ast.W("."), ast.W("CR"),
	)
}

func TestBackends(t *testing.T) {
	c := New(nil)
	assert.Equal(t, []string{"c-pattern", "rust-pattern", "c-ir", "rust-ir", "go-ir", "llvm-ir"}, c.Backends())
	assert.Equal(t, config.Default(), c.Config())
}

func TestCompileEveryBackend(t *testing.T) {
	tests := []struct {
		backend string
		ext     string
		ir      bool
	}{
		{"c-pattern", ".c", false},
		{"rust-pattern", ".rs", false},
		{"c-ir", ".c", true},
		{"rust-ir", ".rs", true},
		{"go-ir", ".go", true},
		{"llvm-ir", ".ll", true},
	}

	c := New(nil)
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			res, err := c.Compile(squareTree(), tt.backend)
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, res.ID)
			assert.Equal(t, tt.backend, res.Backend)
			assert.Equal(t, tt.ext, res.Extension)
			assert.NotEmpty(t, res.Code)
			assert.NotEmpty(t, res.RunCommand("prog"+tt.ext))
			if tt.ir {
				require.NotNil(t, res.IR)
				require.NotNil(t, res.Report)
				assert.True(t, res.Report.Converged)
			} else {
				assert.Nil(t, res.IR)
				assert.Nil(t, res.Report)
			}
		})
	}
}

func TestCompileIDsAreUnique(t *testing.T) {
	c := New(nil)
	a, err := c.Compile(squareTree(), "c-ir")
	require.NoError(t, err)
	b, err := c.Compile(squareTree(), "c-ir")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.Code, b.Code)
}

func TestUnknownBackend(t *testing.T) {
	_, err := New(nil).Compile(squareTree(), "cobol")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownBackend))
	assert.Contains(t, err.Error(), "cobol")
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		tree    *ast.Program
		kind    diag.Kind
	}{
		{"unbalanced control on ir path", "c-ir", ast.Prog(ast.Words("1", "IF")...), diag.UnbalancedControl},
		{"stray THEN on ir path", "llvm-ir", ast.Prog(ast.Words("THEN")...), diag.UnbalancedControl},
	}

	c := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.Compile(tt.tree, tt.backend)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, tt.kind, diag.KindOf(err))
		})
	}
}

func TestOptimizerDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Optimizer.Enabled = false
	res, err := New(cfg).Compile(squareTree(), "c-ir")
	require.NoError(t, err)
	assert.Nil(t, res.Report)
	assert.Contains(t, res.Code, "push(2);\n    push(3);")
}

func TestOptimizationPreservesOutput(t *testing.T) {
	for _, inline := range []bool{false, true} {
		cfg := config.Default()
		cfg.Optimizer.Inline = inline
		c := New(cfg)

		plain, err := c.Lower(squareTree())
		require.NoError(t, err)
		want, err := ir.Output(plain, "")
		require.NoError(t, err)

		res, err := c.Compile(squareTree(), "c-ir")
		require.NoError(t, err)
		got, err := ir.Output(res.IR, "")
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, "54 \n", got)
	}
}

func TestNonConvergenceIsAWarning(t *testing.T) {
	cfg := config.Default()
	cfg.Optimizer.MaxIterations = 1
	res, err := New(cfg).Compile(squareTree(), "c-ir")
	require.NoError(t, err)
	require.NotNil(t, res.Report)
	assert.False(t, res.Report.Converged)
	assert.Contains(t, res.Warnings, "optimizer non-convergence: no fixpoint after 1 iterations")
}
