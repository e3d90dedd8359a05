package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"unknown": zapcore.InfoLevel,
	}
	for name, want := range cases {
		l, err := New(name, "console")
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !l.Core().Enabled(want) {
			t.Fatalf("%s: level %v not enabled", name, want)
		}
		if want > zapcore.DebugLevel && l.Core().Enabled(want-1) {
			t.Fatalf("%s: level below %v enabled", name, want)
		}
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("expected a logger")
	}
}
