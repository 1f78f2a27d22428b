// forthc - Forth to C, Rust, Go and LLVM IR compiler
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/forthc/pkg/ast"
	"github.com/chazu/forthc/pkg/compiler"
	"github.com/chazu/forthc/pkg/config"
)

var (
	backend    = flag.String("backend", "", "target backend (see -list); overrides the config file")
	configPath = flag.String("config", config.FileName, "configuration file")
	input      = flag.String("in", "", "read the AST from this file instead of stdin")
	output     = flag.String("o", "", "write the program to this file instead of stdout")
	all        = flag.Bool("all", false, "compile for every backend into -outdir")
	outDir     = flag.String("outdir", "out", "output directory for -all")
	noOpt      = flag.Bool("O0", false, "disable the IR optimizer")
	inline     = flag.Bool("inline", false, "inline small words before optimizing")
	debug      = flag.Bool("debug", false, "print the optimized IR and optimizer report to stderr")
	strict     = flag.Bool("strict", false, "treat warnings as errors")
	dryRun     = flag.Bool("dry-run", false, "show what would be generated without outputting")
	list       = flag.Bool("list", false, "list backends and exit")
	printCfg   = flag.Bool("print-config", false, "print the effective configuration as TOML and exit")
	version    = flag.Bool("version", false, "print version and exit")
)

const versionStr = "0.1.0"

func main() {
	log.SetFlags(0)
	log.SetPrefix("forthc: ")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "forthc - Forth to C, Rust, Go and LLVM IR compiler\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  forthc [options] < ast.json > program.c\n")
		fmt.Fprintf(os.Stderr, "  forthc -all -outdir out -in ast.json\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *version {
		fmt.Printf("forthc version %s\n", versionStr)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	applyFlags(cfg)
	if *printCfg {
		data, err := cfg.Encode()
		if err != nil {
			log.Fatal(err)
		}
		os.Stdout.Write(data)
		return
	}
	c := compiler.New(cfg)

	if *list {
		for _, name := range c.Backends() {
			fmt.Println(name)
		}
		return
	}

	tree, err := readTree()
	if err != nil {
		log.Fatal(err)
	}

	if *all {
		if err := compileAll(c, tree); err != nil {
			log.Fatal(err)
		}
		return
	}

	res, err := c.Compile(tree, cfg.Backend)
	if err != nil {
		log.Fatal(err)
	}
	report(res, cfg.Emit.Debug)
	if *strict && len(res.Warnings) > 0 {
		log.Fatalf("-strict: refusing to emit with %d warnings", len(res.Warnings))
	}

	if *dryRun {
		fmt.Fprintf(os.Stderr, "Dry run - would generate %d bytes of %s\n", len(res.Code), res.Backend)
		return
	}
	if *output == "" {
		fmt.Print(res.Code)
		return
	}
	if err := os.WriteFile(*output, []byte(res.Code), 0o644); err != nil {
		log.Fatal(err)
	}
	fmt.Fprintf(os.Stderr, "run with: %s\n", res.RunCommand(*output))
}

// applyFlags lets explicitly set flags override the config file.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Backend = *backend
		case "O0":
			cfg.Optimizer.Enabled = !*noOpt
		case "inline":
			cfg.Optimizer.Inline = *inline
		case "debug":
			cfg.Emit.Debug = *debug
		}
	})
}

func readTree() (*ast.Program, error) {
	var r io.Reader = os.Stdin
	if *input != "" {
		f, err := os.Open(*input)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("no input provided")
	}
	return ast.ParseBytes(data)
}

// compileAll compiles tree for every backend concurrently. Each backend
// writes its own file; the first failure cancels the rest.
func compileAll(c *compiler.Compiler, tree *ast.Program) error {
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}
	stem := "program"
	if *input != "" {
		stem = strings.TrimSuffix(filepath.Base(*input), filepath.Ext(*input))
	}

	var mu sync.Mutex
	var g errgroup.Group
	for _, name := range c.Backends() {
		name := name
		g.Go(func() error {
			res, err := c.Compile(tree, name)
			if err != nil {
				return err
			}
			file := filepath.Join(*outDir, stem+"-"+name+res.Extension)
			if err := os.WriteFile(file, []byte(res.Code), 0o644); err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			report(res, false)
			fmt.Fprintf(os.Stderr, "%-13s %s\n", name, res.RunCommand(file))
			return nil
		})
	}
	return g.Wait()
}

func report(res *compiler.Result, debug bool) {
	id := res.ID.String()[:8]
	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "Warning [%s %s]: %s\n", id, res.Backend, w)
	}
	if !debug || res.IR == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "== %s %s: optimized IR ==\n%s", id, res.Backend, res.IR)
	if res.Report != nil {
		fmt.Fprintf(os.Stderr, "== %s %s: optimizer ==\n%s", id, res.Backend, res.Report)
	}
}
