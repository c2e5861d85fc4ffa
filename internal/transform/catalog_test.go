package transform

import (
	"testing"

	"github.com/artifox/artifox/internal/profile"
)

func TestCatalogCoversAllOperations(t *testing.T) {
	catalog := DefaultCatalog()

	for _, kind := range []string{"transform", "colorize", "remove-background", "enhance", "restore", "generate", "touchup"} {
		op, ok := catalog.Lookup(kind)
		if !ok {
			t.Fatalf("catalog missing %q", kind)
		}
		if op.Cost <= 0 {
			t.Fatalf("%q has non-positive cost %g", kind, op.Cost)
		}
		if op.Models[profile.StatusFree].Endpoint == "" {
			t.Fatalf("%q has no free-tier model", kind)
		}
		if op.Models[profile.StatusPaid].Endpoint == "" {
			t.Fatalf("%q has no paid-tier model", kind)
		}
	}

	if _, ok := catalog.Lookup("teleport"); ok {
		t.Fatal("unexpected operation in catalog")
	}
}

func TestModelFallsBackToFreeTier(t *testing.T) {
	op, _ := DefaultCatalog().Lookup("generate")

	unknown := op.Model("enterprise")
	free := op.Model(profile.StatusFree)
	if unknown != free {
		t.Fatalf("unknown status should map to free tier, got %+v", unknown)
	}
}

func TestTouchupIsHalfCredit(t *testing.T) {
	op, _ := DefaultCatalog().Lookup("touchup")
	if op.Cost != 0.5 {
		t.Fatalf("expected cost 0.5, got %g", op.Cost)
	}
}

func TestPresetOperationsCarryDefaultPrompts(t *testing.T) {
	catalog := DefaultCatalog()
	for _, kind := range []string{"colorize", "remove-background", "enhance"} {
		op, _ := catalog.Lookup(kind)
		if op.DefaultPrompt == "" {
			t.Fatalf("%q should carry a preset prompt", kind)
		}
		if op.RequiresPrompt {
			t.Fatalf("%q should not require a caller prompt", kind)
		}
	}
}
