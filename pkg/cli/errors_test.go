package cli

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// ============================================================================
// Error Type Tests
// ============================================================================

func TestConfigError(t *testing.T) {
	err := NewConfigError("store.backend", "unknown backend")
	if !strings.Contains(err.Error(), "store.backend") {
		t.Errorf("Expected field in message, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "unknown backend") {
		t.Errorf("Expected message in output, got %q", err.Error())
	}

	bare := NewConfigError("", "file missing")
	if strings.Contains(bare.Error(), "in ") {
		t.Errorf("Expected no field clause without a field, got %q", bare.Error())
	}
}

func TestCommandError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewCommandError("run", cause)

	if !strings.Contains(err.Error(), "run") {
		t.Errorf("Expected command name in message, got %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("Expected CommandError to unwrap to its cause")
	}
}
