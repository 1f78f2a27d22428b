// Package compiler ties the two code-generation paths together behind one
// entry point. Backends are registered by name in a samber/do injector and
// built on first use.
package compiler

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/do"

	"github.com/chazu/forthc/pkg/ast"
	"github.com/chazu/forthc/pkg/codegen"
	"github.com/chazu/forthc/pkg/config"
	"github.com/chazu/forthc/pkg/ir"
	"github.com/chazu/forthc/pkg/irgen"
	"github.com/chazu/forthc/pkg/optimizer"
)

// ErrUnknownBackend is returned for a backend name nothing is registered under.
var ErrUnknownBackend = errors.New("unknown backend")

// Result is one compilation.
type Result struct {
	ID        uuid.UUID
	Backend   string
	Code      string
	Extension string
	Warnings  []string

	// IR path only: the program handed to the emitter, and the optimizer
	// report when optimization ran.
	IR     *ir.Program
	Report *optimizer.Report

	run func(file string) string
}

// RunCommand is the advisory shell command that builds and runs file.
func (r *Result) RunCommand(file string) string { return r.run(file) }

// target is a registered backend.
type target interface {
	Name() string
	Extension() string
	RunCommand(file string) string
	compile(c *Compiler, tree *ast.Program, res *Result) error
}

type patternTarget struct {
	*codegen.Backend
}

func (t patternTarget) compile(_ *Compiler, tree *ast.Program, res *Result) error {
	code, err := t.Generate(tree)
	if err != nil {
		return err
	}
	res.Code = code
	return nil
}

type irTarget struct {
	irgen.Backend
}

func (t irTarget) compile(c *Compiler, tree *ast.Program, res *Result) error {
	prog, err := c.Lower(tree)
	if err != nil {
		return err
	}
	if c.cfg.Optimizer.Enabled {
		res.Report = c.Optimize(prog)
		if w := res.Report.Warning(); w != nil {
			res.Warnings = append(res.Warnings, w.Error())
		}
	}
	out, err := t.Generate(prog)
	if err != nil {
		return err
	}
	res.IR = prog
	res.Code = out.Code
	res.Warnings = append(res.Warnings, out.Warnings...)
	return nil
}

// Compiler compiles syntax trees with the backends it has registered.
type Compiler struct {
	cfg      *config.Config
	injector *do.Injector
	names    []string
}

// New registers every backend. A nil cfg means config.Default().
func New(cfg *config.Config) *Compiler {
	if cfg == nil {
		cfg = config.Default()
	}
	c := &Compiler{cfg: cfg, injector: do.New()}

	c.register("c-pattern", func() (target, error) {
		return patternTarget{codegen.NewC().WithIndent(cfg.Emit.Indent)}, nil
	})
	c.register("rust-pattern", func() (target, error) {
		return patternTarget{codegen.NewRust().WithIndent(cfg.Emit.Indent)}, nil
	})
	c.registerIR("c-ir", func() (irgen.Backend, error) { return irgen.NewC() })
	c.registerIR("rust-ir", func() (irgen.Backend, error) { return irgen.NewRust() })
	c.registerIR("go-ir", func() (irgen.Backend, error) { return irgen.NewGolang() })
	c.registerIR("llvm-ir", func() (irgen.Backend, error) { return irgen.NewLLVM() })
	return c
}

func (c *Compiler) register(name string, build func() (target, error)) {
	c.names = append(c.names, name)
	do.ProvideNamed(c.injector, name, func(*do.Injector) (target, error) {
		return build()
	})
}

func (c *Compiler) registerIR(name string, build func() (irgen.Backend, error)) {
	c.register(name, func() (target, error) {
		b, err := build()
		if err != nil {
			return nil, err
		}
		return irTarget{b}, nil
	})
}

// Backends lists the registered backend names in registration order.
func (c *Compiler) Backends() []string {
	return append([]string(nil), c.names...)
}

// Config returns the settings the compiler was built with.
func (c *Compiler) Config() *config.Config { return c.cfg }

func (c *Compiler) target(name string) (target, error) {
	known := false
	for _, n := range c.names {
		if n == name {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
	return do.InvokeNamed[target](c.injector, name)
}

// Compile translates tree with the named backend.
func (c *Compiler) Compile(tree *ast.Program, backend string) (*Result, error) {
	t, err := c.target(backend)
	if err != nil {
		return nil, err
	}
	res := &Result{
		ID:        uuid.New(),
		Backend:   t.Name(),
		Extension: t.Extension(),
		run:       t.RunCommand,
	}
	if err := t.compile(c, tree, res); err != nil {
		return nil, fmt.Errorf("%s: %w", backend, err)
	}
	return res, nil
}

// Lower builds and checks the IR for tree and computes stack effects.
func (c *Compiler) Lower(tree *ast.Program) (*ir.Program, error) {
	prog, err := ir.Lower(tree)
	if err != nil {
		return nil, err
	}
	if err := ir.Validate(prog); err != nil {
		return nil, err
	}
	ir.AnalyzeStackEffects(prog)
	return prog, nil
}

// Optimize runs the configured pipeline over prog in place.
func (c *Compiler) Optimize(prog *ir.Program) *optimizer.Report {
	p := optimizer.Default()
	if c.cfg.Optimizer.Inline {
		p = optimizer.WithInlining()
	}
	p.MaxIterations = c.cfg.Optimizer.MaxIterations
	report := p.Run(prog)
	// inlining and dead-code removal change what functions consume
	ir.AnalyzeStackEffects(prog)
	return report
}
