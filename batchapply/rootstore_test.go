package batchapply

import (
	"context"
	"testing"

	"github.com/starkware-libs/starkex-data-availability-committee/crypto"
	"github.com/starkware-libs/starkex-data-availability-committee/storage"
)

func TestRootPointerStorePutGet(t *testing.T) {
	ctx := context.Background()
	rs := NewRootPointerStore(storage.NewMemoryAdapter())

	root := crypto.Keccak256Hash([]byte("root-1"))
	if err := rs.PutRoot(ctx, 1, root); err != nil {
		t.Fatalf("PutRoot: %v", err)
	}

	got, ok, err := rs.GetRoot(ctx, 1)
	if err != nil {
		t.Fatalf("GetRoot: %v", err)
	}
	if !ok || got != root {
		t.Fatalf("GetRoot = (%x, %v), want (%x, true)", got, ok, root)
	}
}

func TestRootPointerStoreMissing(t *testing.T) {
	ctx := context.Background()
	rs := NewRootPointerStore(storage.NewMemoryAdapter())

	_, ok, err := rs.GetRoot(ctx, 99)
	if err != nil {
		t.Fatalf("GetRoot: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing batch")
	}
}

func TestRootPointerStoreOverwriteDuringReorg(t *testing.T) {
	ctx := context.Background()
	rs := NewRootPointerStore(storage.NewMemoryAdapter())

	root1 := crypto.Keccak256Hash([]byte("root-a"))
	root2 := crypto.Keccak256Hash([]byte("root-b"))

	if err := rs.PutRoot(ctx, 3, root1); err != nil {
		t.Fatalf("PutRoot 1: %v", err)
	}
	if err := rs.PutRoot(ctx, 3, root2); err != nil {
		t.Fatalf("PutRoot 2: %v", err)
	}

	got, ok, err := rs.GetRoot(ctx, 3)
	if err != nil || !ok {
		t.Fatalf("GetRoot: %v, %v", err, ok)
	}
	if got != root2 {
		t.Fatalf("GetRoot = %x, want overwritten root %x", got, root2)
	}
}
