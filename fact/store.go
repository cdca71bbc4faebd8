// Package fact implements the Merkle Fact Store: a thin, content-addressed
// layer over storage.Adapter. Facts are write-once and keyed by their own
// hash, so unlike a general trie database there is no dirty/uncommitted
// staging tier -- a fact is either persisted or it does not exist yet.
package fact

import (
	"context"
	"errors"
	"fmt"

	"github.com/starkware-libs/starkex-data-availability-committee/crypto"
	"github.com/starkware-libs/starkex-data-availability-committee/metrics"
	"github.com/starkware-libs/starkex-data-availability-committee/storage"
)

// keyPrefix namespaces fact keys within the shared Adapter so that facts
// and root pointers can carry different retention policies.
const keyPrefix = "fact:"

// ErrNodeNotFound is returned when a requested internal-node fact is absent.
var ErrNodeNotFound = errors.New("fact: node not found")

// ErrLeafNotFound is returned when a requested leaf fact is absent.
var ErrLeafNotFound = errors.New("fact: leaf not found")

// Store is the Merkle Fact Store. It is safe for concurrent use; all
// synchronization is delegated to the underlying Adapter and to Cache.
type Store struct {
	adapter storage.Adapter
	cache   *Cache
}

// New creates a Store backed by adapter, with node lookups routed through
// an LRU cache of the given capacity (0 disables caching).
func New(adapter storage.Adapter, cacheSize int) *Store {
	return &Store{adapter: adapter, cache: NewCache(cacheSize)}
}

func factKey(h crypto.Hash) []byte {
	return append([]byte(keyPrefix), h[:]...)
}

// PutFacts durably persists every content->hash pair in facts as a single
// logical write. The caller must not proceed (e.g. return a new root) until
// this has returned successfully, per the store's write-once durability
// contract.
func (s *Store) PutFacts(ctx context.Context, facts map[crypto.Hash][]byte) error {
	if len(facts) == 0 {
		return nil
	}
	kvs := make(map[string][]byte, len(facts))
	for h, content := range facts {
		kvs[string(factKey(h))] = content
	}
	if err := s.adapter.MultiSet(ctx, kvs); err != nil {
		return fmt.Errorf("fact: put facts: %w", err)
	}
	metrics.FactsWritten.Add(int64(len(facts)))
	for h, content := range facts {
		s.cache.Add(h, content)
	}
	return nil
}

// GetNode returns the left and right child hashes of the internal-node fact
// stored under hash. expectedHeight is not consulted; every fact looked up
// through the store is cached.
func (s *Store) GetNode(ctx context.Context, hash crypto.Hash, expectedHeight int) (left, right crypto.Hash, err error) {
	content, err := s.lookup(ctx, hash)
	if err != nil {
		return crypto.Hash{}, crypto.Hash{}, ErrNodeNotFound
	}
	if len(content) != 2*crypto.HashLength {
		return crypto.Hash{}, crypto.Hash{}, fmt.Errorf("fact: node fact %x has wrong length %d", hash, len(content))
	}
	left = crypto.BytesToHash(content[:crypto.HashLength])
	right = crypto.BytesToHash(content[crypto.HashLength:])
	return left, right, nil
}

// GetLeaf returns the raw leaf value stored under hash.
func (s *Store) GetLeaf(ctx context.Context, hash crypto.Hash) ([]byte, error) {
	content, err := s.lookup(ctx, hash)
	if err != nil {
		return nil, ErrLeafNotFound
	}
	return content, nil
}

func (s *Store) lookup(ctx context.Context, hash crypto.Hash) ([]byte, error) {
	if content, ok := s.cache.Get(hash); ok {
		return content, nil
	}
	content, err := s.adapter.Get(ctx, factKey(hash))
	if err != nil {
		return nil, err
	}
	s.cache.Add(hash, content)
	return content, nil
}

// EncodeNode serializes an internal node fact as the concatenation of its
// two child hashes, per spec section 3's fact encoding.
func EncodeNode(left, right crypto.Hash) []byte {
	out := make([]byte, 0, 2*crypto.HashLength)
	out = append(out, left[:]...)
	out = append(out, right[:]...)
	return out
}
