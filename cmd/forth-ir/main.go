// Package main provides a CLI tool for inspecting the forthc IR.
//
// It lowers a JSON syntax tree and prints or executes the result, so the
// optimizer's work can be checked by eye and on the reference machine.
//
// Usage:
//
//	forth-ir lower <ast.json>       # Print the unoptimized IR
//	forth-ir optimize <ast.json>    # Print the optimized IR and the optimizer report
//	forth-ir run <ast.json>         # Execute the optimized IR, reading KEY input from stdin
//	forth-ir compare <ast.json>     # Execute both forms and report whether they agree
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/chazu/forthc/pkg/ast"
	"github.com/chazu/forthc/pkg/compiler"
	"github.com/chazu/forthc/pkg/config"
	"github.com/chazu/forthc/pkg/ir"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	var cmd func(string) error
	switch command {
	case "lower":
		cmd = cmdLower
	case "optimize":
		cmd = cmdOptimize
	case "run":
		cmd = cmdRun
	case "compare":
		cmd = cmdCompare
	case "-h", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command '%s'\n", command)
		printUsage()
		os.Exit(1)
	}

	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Error: missing file argument")
		printUsage()
		os.Exit(1)
	}
	if err := cmd(os.Args[2]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`forth-ir - Inspect and execute forthc IR

Usage:
  forth-ir lower <ast.json>       Print the unoptimized IR
  forth-ir optimize <ast.json>    Print the optimized IR and the optimizer report
  forth-ir run <ast.json>         Execute the optimized IR (KEY reads stdin)
  forth-ir compare <ast.json>     Execute both forms and report whether they agree
  forth-ir help                   Show this help message

Examples:
  forth-ir optimize square.json
  echo x | forth-ir run echo.json`)
}

// load reads and lowers a tree with the settings of forthc.toml.
func load(filename string) (*compiler.Compiler, *ir.Program, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, nil, fmt.Errorf("reading file: %w", err)
	}
	tree, err := ast.ParseBytes(content)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing: %w", err)
	}
	cfg, err := config.Load(config.FileName)
	if err != nil {
		return nil, nil, err
	}
	c := compiler.New(cfg)
	prog, err := c.Lower(tree)
	if err != nil {
		return nil, nil, fmt.Errorf("lowering: %w", err)
	}
	return c, prog, nil
}

func cmdLower(filename string) error {
	_, prog, err := load(filename)
	if err != nil {
		return err
	}
	fmt.Print(prog)
	return nil
}

func cmdOptimize(filename string) error {
	c, prog, err := load(filename)
	if err != nil {
		return err
	}
	report := c.Optimize(prog)
	fmt.Print(prog)
	fmt.Print(report)
	if w := report.Warning(); w != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", w)
	}
	return nil
}

func cmdRun(filename string) error {
	c, prog, err := load(filename)
	if err != nil {
		return err
	}
	c.Optimize(prog)
	m := ir.NewMachine(os.Stdout, os.Stdin)
	return m.Run(prog)
}

func cmdCompare(filename string) error {
	c, plain, err := load(filename)
	if err != nil {
		return err
	}
	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		return err
	}

	optimized := plain.Clone()
	report := c.Optimize(optimized)

	want, wantErr := ir.Output(plain, string(input))
	got, gotErr := ir.Output(optimized, string(input))
	fmt.Printf("unoptimized: %q (err: %v)\n", want, wantErr)
	fmt.Printf("optimized:   %q (err: %v)\n", got, gotErr)
	fmt.Printf("rewrites:    %d in %d iterations\n", len(report.Rewrites), report.Iterations)
	if want != got || (wantErr == nil) != (gotErr == nil) {
		return fmt.Errorf("optimized program disagrees with the original")
	}
	fmt.Println("ok")
	return nil
}
