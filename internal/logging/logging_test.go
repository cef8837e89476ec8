package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	for _, json := range []bool{true, false} {
		logger, err := New("warn", json)
		if err != nil {
			t.Fatalf("New(warn, %v): %v", json, err)
		}
		if logger.Core().Enabled(zapcore.InfoLevel) {
			t.Errorf("info should be disabled at warn level (json=%v)", json)
		}
		if !logger.Core().Enabled(zapcore.ErrorLevel) {
			t.Errorf("error should be enabled at warn level (json=%v)", json)
		}
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("chatty", false); err == nil {
		t.Error("expected error for unknown level")
	}
}
