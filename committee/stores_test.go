package committee

import (
	"context"
	"testing"

	"github.com/starkware-libs/starkex-data-availability-committee/storage"
)

func TestCursorStoreGetSet(t *testing.T) {
	ctx := context.Background()
	cs := NewCursorStore(storage.NewMemoryAdapter())

	if _, ok, err := cs.Get(ctx); err != nil || ok {
		t.Fatalf("Get on fresh store = (_, %v, %v), want (_, false, nil)", ok, err)
	}

	if err := cs.Set(ctx, 42); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := cs.Get(ctx)
	if err != nil || !ok {
		t.Fatalf("Get after Set = (_, %v, %v), want (_, true, nil)", ok, err)
	}
	if got != 42 {
		t.Fatalf("Get = %d, want 42", got)
	}
}

func TestCursorStoreRewind(t *testing.T) {
	ctx := context.Background()
	cs := NewCursorStore(storage.NewMemoryAdapter())

	if err := cs.Set(ctx, 10); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := cs.Set(ctx, 3); err != nil {
		t.Fatalf("Set (rewind): %v", err)
	}
	got, _, err := cs.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != 3 {
		t.Fatalf("Get after rewind = %d, want 3", got)
	}
}

func TestSubmittedStoreMarkAndCheck(t *testing.T) {
	ctx := context.Background()
	ss := NewSubmittedStore(storage.NewMemoryAdapter())

	if submitted, err := ss.IsSubmitted(ctx, 5); err != nil || submitted {
		t.Fatalf("IsSubmitted before mark = (%v, %v), want (false, nil)", submitted, err)
	}

	if err := ss.MarkSubmitted(ctx, 5); err != nil {
		t.Fatalf("MarkSubmitted: %v", err)
	}
	if submitted, err := ss.IsSubmitted(ctx, 5); err != nil || !submitted {
		t.Fatalf("IsSubmitted after mark = (%v, %v), want (true, nil)", submitted, err)
	}

	// Marking a different batch id must not affect this one.
	if submitted, err := ss.IsSubmitted(ctx, 6); err != nil || submitted {
		t.Fatalf("IsSubmitted for unrelated batch = (%v, %v), want (false, nil)", submitted, err)
	}
}
