package util

import (
	"strings"
	"testing"
)

func TestNewID(t *testing.T) {
	id := NewID("sub")
	if !strings.HasPrefix(id, "sub_") {
		t.Fatalf("expected sub_ prefix, got %q", id)
	}
	if len(id) != len("sub_")+32 {
		t.Fatalf("unexpected id length %d", len(id))
	}
	if NewID("sub") == id {
		t.Fatal("expected distinct ids")
	}
	if bare := NewID(""); strings.Contains(bare, "_") {
		t.Fatalf("expected bare id without prefix, got %q", bare)
	}
}
