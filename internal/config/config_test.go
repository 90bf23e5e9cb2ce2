package config

import "testing"

func TestNewDefaults(t *testing.T) {
	c := New()
	if !c.FoldConstants {
		t.Error("FoldConstants should default on")
	}
	tests := []struct {
		feature Feature
		want    Level
	}{
		{ImplicitFloatInt, LevelWarn},
		{CommaOperator, LevelNone},
		{TernaryOperator, LevelNone},
		{AssignmentExpr, LevelNone},
		{CStyleFor, LevelNone},
	}
	for _, tt := range tests {
		if got := c.Level(tt.feature); got != tt.want {
			t.Errorf("Level(%s) = %s, want %s", tt.feature, got, tt.want)
		}
	}
}

func TestSetOverridesDefault(t *testing.T) {
	c := New()
	c.Set(ImplicitFloatInt, LevelError)
	if got := c.Level(ImplicitFloatInt); got != LevelError {
		t.Errorf("Level(ImplicitFloatInt) = %s, want %s", got, LevelError)
	}
}

func TestLevelUnknownFeatureFallsBackToDefault(t *testing.T) {
	c := New()
	delete(c.Features, CommaOperator)
	if got := c.Level(CommaOperator); got != LevelNone {
		t.Errorf("Level(CommaOperator) = %s, want %s", got, LevelNone)
	}
}

func TestTraceFlagsAny(t *testing.T) {
	var t1 TraceFlags
	if t1.Any() {
		t.Error("zero-value TraceFlags.Any() should be false")
	}
	t1.Insn = true
	if !t1.Any() {
		t.Error("TraceFlags.Any() should be true once any field is set")
	}
}
