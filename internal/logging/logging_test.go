package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestSetLevelAfterLazyInit(t *testing.T) {
	globalLogger = nil
	globalLevel = zap.AtomicLevel{}
	_ = L()

	SetLevel("debug")
	if got := globalLevel.Level(); got != zapcore.DebugLevel {
		t.Errorf("level = %v, want debug", got)
	}

	// Unknown levels are ignored.
	SetLevel("loud")
	if got := globalLevel.Level(); got != zapcore.DebugLevel {
		t.Errorf("level = %v after bad input, want debug", got)
	}
}

func TestInitSetsLevel(t *testing.T) {
	if err := Init(Config{Level: "warn", Format: "json"}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if got := globalLevel.Level(); got != zapcore.WarnLevel {
		t.Errorf("level = %v, want warn", got)
	}
	if !L().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("error level disabled")
	}
	if L().Core().Enabled(zapcore.InfoLevel) {
		t.Error("info level enabled at warn")
	}
}
