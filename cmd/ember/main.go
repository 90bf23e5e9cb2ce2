// Command ember is the ahead-of-time compiler and bytecode virtual
// machine's command-line entry point: it turns a handful of
// --key value flags into a config.Config and diag.Logger, hands a main
// source file to internal/driver, and reports whatever the pipeline
// found.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/kr/pretty"
	"github.com/mattn/go-isatty"

	"ember/internal/config"
	"ember/internal/diag"
	"ember/internal/driver"
)

const usage = `usage: ember --main <path> [options]

  --main <path>              main source file to compile and run
  --check                    parse and type-check only, do not run
  --dump-ast                 print the parsed AST after check
  --implicit-float-int <L>   warn|error|none (default warn)
  --comma-operator <L>       warn|error|none (default none)
  --ternary-operator <L>     warn|error|none (default none)
  --assignment-expr <L>      warn|error|none (default none)
  --fold-constants <on|off>  constant folding (default on)
  --no-colorize-output       disable ANSI colors in diagnostics
  --disassemble-code         print bytecode before running
  --trace-exec <flags>       comma-separated: stack,frame,module,insn,module_init
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseArgs(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	if opts.mainPath == "" {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	cfg := config.New()
	cfg.FoldConstants = opts.foldConstants
	cfg.NoColorize = opts.noColorize
	cfg.DisassembleCode = opts.disassemble
	cfg.Trace = opts.trace
	for feature, level := range opts.levels {
		cfg.Set(feature, level)
	}

	colorize := !opts.noColorize && (isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()))
	logger := diag.NewLogger(colorize)

	code := drive(opts, cfg, logger)
	fmt.Fprint(os.Stderr, logger.RenderAll())
	return code
}

// drive runs the load -> order -> compile -> run pipeline. --check
// stops it after loading and ordering; --dump-ast and --disassemble-code
// print the parsed statements or the compiled chunks along the way and
// then let the pipeline continue.
func drive(opts *options, cfg *config.Config, logger *diag.Logger) int {
	d := driver.New(logger, cfg)
	mainIndex, err := d.Load(opts.mainPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ember: %v\n", err)
		return 1
	}
	if logger.HadError() {
		return 1
	}

	mods, mainIndex := d.Ordered(mainIndex)

	if opts.dumpAST {
		for _, mod := range mods {
			fmt.Printf("=== %s ===\n", mod.Name)
			pretty.Println(mod.Statements)
		}
	}
	if opts.checkOnly {
		if logger.HadError() {
			return 1
		}
		return 0
	}

	runtime := driver.Compile(mods, logger, cfg)
	if logger.HadError() {
		return 1
	}

	if opts.disassemble {
		for _, rm := range runtime {
			fmt.Print(rm.Disassemble())
		}
	}

	driver.Run(runtime, mainIndex, logger, cfg)
	if logger.HadError() {
		return 1
	}
	return 0
}

type options struct {
	mainPath      string
	checkOnly     bool
	dumpAST       bool
	foldConstants bool
	noColorize    bool
	disassemble   bool
	trace         config.TraceFlags
	levels        map[config.Feature]config.Level
}

// parseArgs walks os.Args by hand, the way every retrieved CLI in this
// corpus does rather than reaching for a flags package: the option set
// is small, flat, and fixed, so a manual switch over --key [value]
// pairs reads more directly than a flag.FlagSet would.
func parseArgs(args []string) (*options, error) {
	opts := &options{
		foldConstants: true,
		levels:        make(map[config.Feature]config.Level),
	}

	next := func(i int, flag string) (string, int, error) {
		if i+1 >= len(args) {
			return "", i, fmt.Errorf("%s requires a value", flag)
		}
		return args[i+1], i + 1, nil
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "--main":
			v, j, err := next(i, arg)
			if err != nil {
				return nil, err
			}
			opts.mainPath = v
			i = j
		case "--check":
			opts.checkOnly = true
		case "--dump-ast":
			opts.dumpAST = true
		case "--no-colorize-output":
			opts.noColorize = true
		case "--disassemble-code":
			opts.disassemble = true
		case "--fold-constants":
			v, j, err := next(i, arg)
			if err != nil {
				return nil, err
			}
			switch v {
			case "on":
				opts.foldConstants = true
			case "off":
				opts.foldConstants = false
			default:
				return nil, fmt.Errorf("--fold-constants: want on|off, got %q", v)
			}
			i = j
		case "--implicit-float-int", "--comma-operator", "--ternary-operator", "--assignment-expr":
			v, j, err := next(i, arg)
			if err != nil {
				return nil, err
			}
			level, err := parseLevel(arg, v)
			if err != nil {
				return nil, err
			}
			opts.levels[featureFor(arg)] = level
			i = j
		case "--trace-exec":
			v, j, err := next(i, arg)
			if err != nil {
				return nil, err
			}
			if err := applyTrace(&opts.trace, v); err != nil {
				return nil, err
			}
			i = j
		default:
			return nil, fmt.Errorf("unrecognized option %q", arg)
		}
	}
	return opts, nil
}

func featureFor(flag string) config.Feature {
	switch flag {
	case "--implicit-float-int":
		return config.ImplicitFloatInt
	case "--comma-operator":
		return config.CommaOperator
	case "--ternary-operator":
		return config.TernaryOperator
	case "--assignment-expr":
		return config.AssignmentExpr
	}
	panic("unreachable: featureFor called with " + flag)
}

func parseLevel(flag, v string) (config.Level, error) {
	switch config.Level(v) {
	case config.LevelWarn, config.LevelError, config.LevelNone:
		return config.Level(v), nil
	}
	return "", fmt.Errorf("%s: want warn|error|none, got %q", flag, v)
}

func applyTrace(t *config.TraceFlags, v string) error {
	for _, part := range strings.Split(v, ",") {
		switch part {
		case "stack":
			t.Stack = true
		case "frame":
			t.Frame = true
		case "module":
			t.Module = true
		case "insn":
			t.Insn = true
		case "module_init":
			t.ModuleInit = true
		default:
			return fmt.Errorf("--trace-exec: unrecognized flag %q", part)
		}
	}
	return nil
}
