// Package config holds the feature-flag configuration consumed by the
// parser: named syntactic toggles at level {warn, error, none}, and the
// on/off constant-folding optimization switch.
package config

// Level is the severity a feature flag is configured at.
type Level string

const (
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelNone  Level = "none"
)

// Feature names a gated syntactic form.
type Feature string

const (
	CommaOperator    Feature = "comma-operator"
	TernaryOperator  Feature = "ternary-operator"
	AssignmentExpr   Feature = "assignment-expr"
	ImplicitFloatInt Feature = "implicit-float-int"
	CStyleFor        Feature = "c-style-for"
)

// defaultLevels mirrors each feature's documented default.
var defaultLevels = map[Feature]Level{
	CommaOperator:    LevelNone,
	TernaryOperator:  LevelNone,
	AssignmentExpr:   LevelNone,
	ImplicitFloatInt: LevelWarn,
	CStyleFor:        LevelNone,
}

// Config is populated by the driver's caller (the CLI) before parsing
// begins; the parser never reads flags, files, or the environment
// itself.
type Config struct {
	Features       map[Feature]Level
	FoldConstants  bool // default on
	NoColorize     bool
	DisassembleCode bool
	Trace          TraceFlags
}

// TraceFlags mirrors the multi-valued --trace-exec CLI option.
type TraceFlags struct {
	Stack      bool
	Frame      bool
	Module     bool
	Insn       bool
	ModuleInit bool
}

func (t TraceFlags) Any() bool {
	return t.Stack || t.Frame || t.Module || t.Insn || t.ModuleInit
}

// New returns a Config with every documented default.
func New() *Config {
	levels := make(map[Feature]Level, len(defaultLevels))
	for f, l := range defaultLevels {
		levels[f] = l
	}
	return &Config{
		Features:      levels,
		FoldConstants: true,
	}
}

// Level returns the configured level for a feature, falling back to its
// documented default if the feature was never set explicitly.
func (c *Config) Level(f Feature) Level {
	if l, ok := c.Features[f]; ok {
		return l
	}
	return defaultLevels[f]
}

// Set assigns a level to a feature flag, as the CLI does when parsing
// `--comma-operator warn` and similar options.
func (c *Config) Set(f Feature, l Level) {
	c.Features[f] = l
}
