package cachemem

import (
	"context"
	"testing"
	"time"

	"zkcred/internal/domain"
)

func TestCache_TTLAndInvalidate(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewWithClock(func() time.Time { return now })
	ctx := context.Background()

	if err := c.Put(ctx, domain.CircuitDescriptor{CircuitID: "a", Status: domain.CircuitActive}, time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := c.Put(ctx, domain.CircuitDescriptor{CircuitID: "b"}, 0); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := c.Get(ctx, "a")
	if err != nil || !ok || got.Status != domain.CircuitActive {
		t.Fatalf("expected cached descriptor, got %v %v %v", got, ok, err)
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := c.Get(ctx, "a"); ok {
		t.Fatalf("expected entry to expire")
	}
	if _, ok, _ := c.Get(ctx, "b"); !ok {
		t.Fatalf("expected entry without ttl to remain")
	}
	if err := c.Invalidate(ctx, "b"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "b"); ok {
		t.Fatalf("expected invalidated entry to be gone")
	}
}
