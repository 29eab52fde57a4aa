package identity

import (
	"strings"
	"testing"
)

func TestHash_Deterministic(t *testing.T) {
	a := Hash("sk-test-12345")
	b := Hash("sk-test-12345")

	if a != b {
		t.Errorf("Expected identical hashes for identical input, got %q and %q", a, b)
	}
}

func TestHash_Length(t *testing.T) {
	inputs := []string{"", "a", "sk-test-12345", strings.Repeat("x", 4096)}

	for _, input := range inputs {
		if got := Hash(input); len(got) != HashLength {
			t.Errorf("Hash(%q) length = %d, want %d", input, len(got), HashLength)
		}
	}
}

func TestHash_DistinctInputs(t *testing.T) {
	a := Hash("user-1")
	b := Hash("user-2")

	if a == b {
		t.Errorf("Expected distinct hashes for distinct inputs, both were %q", a)
	}
}

func TestHash_DoesNotLeakInput(t *testing.T) {
	raw := "sk-live-secret-key"
	if strings.Contains(Hash(raw), raw) {
		t.Error("Hash output must not contain the raw identifier")
	}
}
