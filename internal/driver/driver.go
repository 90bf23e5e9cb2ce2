// Package driver orchestrates the whole pipeline over a graph of
// modules: it resolves import paths to files, recursively parses and
// type-checks every module exactly once, orders the graph by import
// depth, compiles each module, and hands the result to the virtual
// machine. It is the only package that touches the filesystem on the
// language's behalf.
package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"ember/internal/ast"
	"ember/internal/bytecode"
	"ember/internal/compiler"
	"ember/internal/config"
	"ember/internal/diag"
	"ember/internal/lexer"
	"ember/internal/parser"
	"ember/internal/resolver"
	"ember/internal/vm"
)

// parsedModule is one entry in the driver's module graph: a parsed and
// (eventually) resolved module plus the bookkeeping needed to order and
// compile the whole graph once every import has been walked.
type parsedModule struct {
	mod   *ast.Module
	depth int
}

// Driver walks the import graph rooted at a main source file, type-
// checks every module it finds, and runs the result. RunID is a fresh
// uuid stamped on every Driver; nothing in the pipeline reads it, and it
// is not printed by --trace-exec or passed to the VM.
type Driver struct {
	logger *diag.Logger
	cfg    *config.Config
	root   string // directory import paths resolve against

	byPath  map[string]int // absolute path -> index into modules
	modules []*parsedModule

	RunID string
}

// New constructs a Driver whose diagnostics are collected on logger and
// whose parser/resolver behavior is governed by cfg.
func New(logger *diag.Logger, cfg *config.Config) *Driver {
	return &Driver{
		logger: logger,
		cfg:    cfg,
		byPath: make(map[string]int),
		RunID:  uuid.New().String(),
	}
}

// Load parses and type-checks mainPath plus its whole import closure,
// and returns the index of the main module once the graph is ready to
// compile. It does not compile or run anything; callers that only want
// --check/--dump-ast behavior can stop here.
func (d *Driver) Load(mainPath string) (mainIndex int, err error) {
	abs, err := filepath.Abs(mainPath)
	if err != nil {
		return 0, fmt.Errorf("resolve path %s: %w", mainPath, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", mainPath, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", mainPath)
	}
	d.root = filepath.Dir(abs)

	mainIndex, err = d.parseModule(abs, 0)
	if err != nil {
		return 0, err
	}

	for _, pm := range d.modules {
		resolver.New(pm.mod.Name, d.logger, d.cfg).Resolve(pm.mod)
	}
	return mainIndex, nil
}

// parseModule parses path if it hasn't been seen yet (registering it at
// parentDepth+1), or, if it has, simply raises its recorded depth to
// max(existing, parentDepth+1) per the "depth drives ordering" rule.
// Either way it returns path's module index.
func (d *Driver) parseModule(absPath string, parentDepth int) (int, error) {
	depth := parentDepth + 1
	if idx, ok := d.byPath[absPath]; ok {
		// Raise the module and, transitively, everything it imports, so
		// a dependency always stays deeper than its importer; the
		// len(d.modules) bound stops the walk on an import cycle.
		work := [][2]int{{idx, depth}}
		for len(work) > 0 {
			w := work[len(work)-1]
			work = work[:len(work)-1]
			pm := d.modules[w[0]]
			if w[1] <= pm.depth || w[1] > len(d.modules) {
				continue
			}
			pm.depth, pm.mod.Depth = w[1], w[1]
			for _, child := range pm.mod.Imports {
				work = append(work, [2]int{child, w[1] + 1})
			}
		}
		return idx, nil
	}

	source, err := os.ReadFile(absPath)
	if err != nil {
		return 0, fmt.Errorf("read module %s: %w", absPath, err)
	}
	name := moduleName(absPath)

	scan := lexer.New(name, string(source), d.logger)
	tokens := scan.ScanTokens()

	p := parser.New(name, tokens, d.logger, d.cfg)
	stmts, functions, classes := p.Program()

	mod := &ast.Module{
		Name:       name,
		Path:       absPath,
		Source:     string(source),
		Statements: stmts,
		Functions:  functions,
		Classes:    classes,
	}

	idx := len(d.modules)
	d.byPath[absPath] = idx
	d.modules = append(d.modules, &parsedModule{mod: mod, depth: depth})

	for i := range mod.Statements {
		imp, ok := mod.Statements[i].(ast.ImportStmt)
		if !ok {
			continue
		}
		importPath := filepath.Join(d.root, imp.Path)
		childIdx, err := d.parseModule(importPath, depth)
		if err != nil {
			return 0, fmt.Errorf("module %s: %w", name, err)
		}
		imp.ModuleIndex = childIdx
		mod.Statements[i] = imp
		mod.Imports = append(mod.Imports, childIdx)
	}
	d.modules[idx].mod.Depth = depth
	return idx, nil
}

func moduleName(absPath string) string {
	base := filepath.Base(absPath)
	return base[:len(base)-len(filepath.Ext(base))]
}

// Ordered returns the parsed modules in the order the VM must run them:
// decreasing import depth (deepest dependency first), ties broken by
// parse order, per section 5's ordering guarantee. The returned slice's
// position is each module's new index, and mainIndex is remapped to
// match.
func (d *Driver) Ordered(mainIndex int) (mods []*ast.Module, newMainIndex int) {
	order := make([]int, len(d.modules))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return d.modules[order[a]].depth > d.modules[order[b]].depth
	})

	remap := make([]int, len(d.modules))
	mods = make([]*ast.Module, len(d.modules))
	for newIdx, oldIdx := range order {
		remap[oldIdx] = newIdx
		mods[newIdx] = d.modules[oldIdx].mod
	}
	for _, mod := range mods {
		for i := range mod.Statements {
			if imp, ok := mod.Statements[i].(ast.ImportStmt); ok {
				imp.ModuleIndex = remap[imp.ModuleIndex]
				mod.Statements[i] = imp
			}
		}
		for i, oldImp := range mod.Imports {
			mod.Imports[i] = remap[oldImp]
		}
	}
	return mods, remap[mainIndex]
}

// Compile lowers every module (in the order Ordered returns them) into
// a RuntimeModule, stamping each one's own position in the list as its
// module index so cross-module function handles resolve correctly.
func Compile(mods []*ast.Module, logger *diag.Logger, cfg *config.Config) []*bytecode.RuntimeModule {
	runtime := make([]*bytecode.RuntimeModule, len(mods))
	for i, mod := range mods {
		c := compiler.New(mod.Name, logger, cfg)
		runtime[i] = c.Compile(mod, i)
	}
	return runtime
}

// Run executes the already-compiled, dependency-ordered module list.
func Run(runtime []*bytecode.RuntimeModule, mainIndex int, logger *diag.Logger, cfg *config.Config) vm.State {
	machine := vm.New(runtime, logger, cfg)
	return machine.Run(mainIndex)
}
