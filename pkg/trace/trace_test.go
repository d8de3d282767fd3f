package trace

import (
	"context"
	"testing"
)

func TestEnsure_KeepsIncomingID(t *testing.T) {
	ctx, id := Ensure(context.Background(), "abc")
	if id != "abc" {
		t.Fatalf("expected abc, got %s", id)
	}
	if FromContext(ctx) != "abc" {
		t.Errorf("expected trace id in context")
	}
}

func TestEnsure_GeneratesWhenMissing(t *testing.T) {
	ctx, id := Ensure(context.Background(), "")
	if len(id) != 32 {
		t.Fatalf("expected 32 hex chars, got %q", id)
	}
	if FromContext(ctx) != id {
		t.Errorf("context trace id mismatch")
	}
}
