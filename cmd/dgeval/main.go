package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sarowish/dgeval/internal/ast"
	"github.com/sarowish/dgeval/internal/bytecode"
	"github.com/sarowish/dgeval/internal/compiler"
	"github.com/sarowish/dgeval/internal/errors"
	"github.com/sarowish/dgeval/internal/jit"
	"github.com/sarowish/dgeval/internal/parser"
	"github.com/sarowish/dgeval/internal/pkg"
	"github.com/sarowish/dgeval/internal/printer"
	"github.com/sarowish/dgeval/internal/runtime"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: dgeval [-pN] <module.txt>")
}

// parseFlags validates the -pN flag (N is a 4-bit integer 0..15) before any
// file is touched: a malformed flag is a CLI error, not a compile error.
func parseFlags(args []string) (flags bytecode.Flags, module string, ok bool) {
	flags = -1 // sentinel: "use config default"
	for _, a := range args {
		if strings.HasPrefix(a, "-p") {
			n, err := strconv.Atoi(a[2:])
			if err != nil || n < 0 || n > 15 {
				fmt.Fprintf(os.Stderr, "invalid flag %q: N must be an integer in 0..15\n", a)
				return 0, "", false
			}
			flags = bytecode.Flags(n)
			continue
		}
		if module != "" {
			usage()
			return 0, "", false
		}
		module = a
	}
	if module == "" {
		usage()
		return 0, "", false
	}
	return flags, module, true
}

func main() {
	flags, module, ok := parseFlags(os.Args[1:])
	if !ok {
		os.Exit(1)
	}

	if flags == -1 {
		cfgPath := pkg.Find(module)
		if cfgPath == "" {
			cfgPath = filepath.Join(filepath.Dir(module), pkg.ConfigFileName)
		}
		cfg, err := pkg.Load(cfgPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		flags = configFlags(cfg)
	}

	source, err := os.ReadFile(module)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	base := strings.TrimSuffix(module, filepath.Ext(module))
	program := parser.New(string(source), module).Parse()

	symbols := compiler.NewSymbolTable()
	if !program.HasErrors() {
		compiler.DependencySort(program, symbols)
		compiler.TypeCheck(program, symbols)
	}

	var ir []bytecode.Instruction
	if !program.HasErrors() {
		compiler.Fold(program)
		var bounds []int
		ir, bounds = bytecode.Generate(program, flags)
		ir, bounds = bytecode.PeepholeWithBounds(ir, bounds, flags)

		if err := os.WriteFile(base+"-IC.txt", []byte(printer.DumpIR(ir)), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		runProgram(ir, bounds, boolSlots(program))
	}

	program.AddMessage(ast.NewMessage(ast.SeverityInfo, "Completed compilation"))
	program.SortMessages()

	dump, err := printer.DumpJSON(program, ir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := os.WriteFile(base+".json", dump, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	errors.NewReporter(os.Stdout).Report(program)
}

func configFlags(cfg *pkg.Config) bytecode.Flags {
	var f bytecode.Flags
	if cfg.Optimise.DeadStatement {
		f |= bytecode.FlagDeadStatement
	}
	if cfg.Optimise.DeadCommaPart {
		f |= bytecode.FlagDeadExpressionPart
	}
	if cfg.Optimise.PeepholeOffload {
		f |= bytecode.FlagPeepholeOffload
	}
	if cfg.Optimise.PeepholeConstsink {
		f |= bytecode.FlagPeepholeConstsink
	}
	return f
}

// boolSlots builds a dense, slot-index-keyed map of which symbols the type
// checker declared Boolean, so the JIT driver knows which native-compiled
// slots need a float64->bool conversion on write-back.
func boolSlots(program *ast.Program) []bool {
	out := make([]bool, len(program.SymbolTable))
	for _, sym := range program.SymbolTable {
		if sym.Type.IsScalar(ast.TBoolean) {
			out[sym.SlotIndex] = true
		}
	}
	return out
}

// runProgram drives execution after a successful compile: the x86-64 JIT
// handles every statement in the pure-Number/Boolean fast path natively,
// and bytecode.Interp covers the rest. See internal/jit's package doc for
// why the split exists.
func runProgram(ir []bytecode.Instruction, bounds []int, boolSlot []bool) {
	rt := runtime.New()
	p := jit.New(rt, ir, bounds, boolSlot)
	defer p.Close()
	p.Run()
}
