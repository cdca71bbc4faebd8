package fact

import (
	"testing"

	"github.com/starkware-libs/starkex-data-availability-committee/crypto"
)

func hashOf(s string) crypto.Hash {
	return crypto.Keccak256Hash([]byte(s))
}

func TestCacheAddGet(t *testing.T) {
	c := NewCache(2)
	h := hashOf("a")
	c.Add(h, []byte("content-a"))

	got, ok := c.Get(h)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(got) != "content-a" {
		t.Fatalf("Get = %q, want %q", got, "content-a")
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(2)
	ha, hb, hc := hashOf("a"), hashOf("b"), hashOf("c")

	c.Add(ha, []byte("a"))
	c.Add(hb, []byte("b"))
	// Touch a so b becomes the least recently used.
	c.Get(ha)
	c.Add(hc, []byte("c"))

	if _, ok := c.Get(hb); ok {
		t.Fatal("expected b to be evicted")
	}
	if _, ok := c.Get(ha); !ok {
		t.Fatal("expected a to survive eviction")
	}
	if _, ok := c.Get(hc); !ok {
		t.Fatal("expected c to be present")
	}
}

func TestCacheZeroCapacityIsNoop(t *testing.T) {
	c := NewCache(0)
	h := hashOf("a")
	c.Add(h, []byte("a"))
	if _, ok := c.Get(h); ok {
		t.Fatal("zero-capacity cache should never hit")
	}
	if c.Len() != 0 {
		t.Fatalf("Len = %d, want 0", c.Len())
	}
}
