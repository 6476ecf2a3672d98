package main

import "testing"

func TestRandomHex(t *testing.T) {
	t.Parallel()

	first := randomHex(16)
	second := randomHex(16)
	if len(first) != 32 {
		t.Fatalf("expected 32 hex characters, got %d", len(first))
	}
	if first == second {
		t.Fatal("expected distinct values on consecutive calls")
	}

	if got := randomHex(0); len(got) != 32 {
		t.Fatalf("expected default width for non-positive input, got %d characters", len(got))
	}
}
