// Package merkle implements the Versioned Merkle Tree: a fixed-height
// sparse binary tree with copy-on-write updates that produces a new root
// from an old root plus a batch of index/value pairs. Only nodes on the
// path from a touched leaf to the root are ever read or recomputed;
// untouched subtrees resolve to precomputed empty-subtree constants
// without any storage I/O.
package merkle

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/starkware-libs/starkex-data-availability-committee/crypto"
	"github.com/starkware-libs/starkex-data-availability-committee/fact"
)

// ErrInvalidIndex is returned when an update's index falls outside
// [0, 2^Height).
var ErrInvalidIndex = errors.New("merkle: index out of range")

// Update is a single (index, new leaf value) pair to apply to the tree.
// If a batch contains more than one Update for the same index, the last
// one in the slice wins.
type Update struct {
	Index uint64
	Value []byte
}

// Tree is a fixed-height sparse binary Merkle tree backed by a content-
// addressed fact.Store. Height (H) and the hash of the canonical empty
// leaf value are fixed at construction time.
type Tree struct {
	height     uint
	store      *fact.Store
	emptyHash  []crypto.Hash // emptyHash[h] is the root hash of an empty subtree of height h
	fullWidth  bool          // true when height == 64 (no index range check needed)
	indexLimit uint64        // exclusive upper bound on valid indices, unused when fullWidth
}

// NewTree creates a Tree of the given height. emptyLeafHash is the hash of
// the leaf value representing "no entry written here yet" (profile-defined,
// e.g. Keccak256 of a canonical zero-value leaf encoding).
func NewTree(height uint, emptyLeafHash crypto.Hash, store *fact.Store) (*Tree, error) {
	if height == 0 || height > 64 {
		return nil, fmt.Errorf("merkle: height %d out of supported range [1, 64]", height)
	}
	empty := make([]crypto.Hash, height+1)
	empty[0] = emptyLeafHash
	for h := uint(1); h <= height; h++ {
		empty[h] = crypto.HashPair(empty[h-1], empty[h-1])
	}
	t := &Tree{height: height, store: store, emptyHash: empty}
	if height == 64 {
		t.fullWidth = true
	} else {
		t.indexLimit = uint64(1) << height
	}
	return t, nil
}

// Height returns the tree's configured height.
func (t *Tree) Height() uint { return t.height }

// EmptyRoot returns the root hash of a tree with no entries written.
func (t *Tree) EmptyRoot() crypto.Hash { return t.emptyHash[t.height] }

func (t *Tree) indexInRange(idx uint64) bool {
	return t.fullWidth || idx < t.indexLimit
}

// Apply computes the new root produced by applying updates on top of
// prevRoot, persisting every newly created fact before returning. Updates
// are deduplicated by index (last write in the slice wins) and validated
// against the tree's index range before any I/O is performed.
func (t *Tree) Apply(ctx context.Context, prevRoot crypto.Hash, updates []Update) (crypto.Hash, error) {
	if len(updates) == 0 {
		return prevRoot, nil
	}

	values := make(map[uint64][]byte, len(updates))
	for _, u := range updates {
		if !t.indexInRange(u.Index) {
			return crypto.Hash{}, fmt.Errorf("%w: index %d (height %d)", ErrInvalidIndex, u.Index, t.height)
		}
		values[u.Index] = u.Value
	}

	indices := make([]uint64, 0, len(values))
	for idx := range values {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	facts := make(map[crypto.Hash][]byte)
	var lo, hi uint64
	if t.fullWidth {
		lo, hi = 0, 0 // unused: full-width range handled via the "all 64 bits" recursion below
	} else {
		lo, hi = 0, t.indexLimit
	}

	var newRoot crypto.Hash
	var err error
	if t.fullWidth {
		newRoot, err = t.recurseFullWidth(ctx, t.height, prevRoot, indices, values, facts)
	} else {
		newRoot, err = t.recurse(ctx, t.height, lo, hi, prevRoot, indices, values, facts)
	}
	if err != nil {
		return crypto.Hash{}, err
	}

	if err := t.store.PutFacts(ctx, facts); err != nil {
		return crypto.Hash{}, fmt.Errorf("merkle: persisting batch facts: %w", err)
	}
	return newRoot, nil
}

// recurse implements the width-bounded divide-and-conquer update: at height
// h covering the index range [lo, hi), split touched indices at the
// midpoint and recurse into whichever half(es) contain updates. Halves with
// no updates keep their existing hash without any storage read.
func (t *Tree) recurse(ctx context.Context, h uint, lo, hi uint64, curHash crypto.Hash, indices []uint64, values map[uint64][]byte, facts map[crypto.Hash][]byte) (crypto.Hash, error) {
	if len(indices) == 0 {
		return curHash, nil
	}

	if h == 0 {
		value := values[indices[0]]
		leafHash := crypto.Keccak256Hash(value)
		facts[leafHash] = append([]byte(nil), value...)
		return leafHash, nil
	}

	mid := lo + (hi-lo)/2
	splitAt := sort.Search(len(indices), func(i int) bool { return indices[i] >= mid })
	leftIdx, rightIdx := indices[:splitAt], indices[splitAt:]

	leftChild, rightChild, err := t.children(ctx, h, curHash)
	if err != nil {
		return crypto.Hash{}, err
	}

	newLeft, err := t.recurse(ctx, h-1, lo, mid, leftChild, leftIdx, values, facts)
	if err != nil {
		return crypto.Hash{}, err
	}
	newRight, err := t.recurse(ctx, h-1, mid, hi, rightChild, rightIdx, values, facts)
	if err != nil {
		return crypto.Hash{}, err
	}

	newHash := crypto.HashPair(newLeft, newRight)
	facts[newHash] = fact.EncodeNode(newLeft, newRight)
	return newHash, nil
}

// recurseFullWidth is the height==64 variant of recurse, splitting the
// range [0, 2^64) by the top bit at each level instead of computing a
// midpoint in uint64 arithmetic that would overflow.
func (t *Tree) recurseFullWidth(ctx context.Context, h uint, curHash crypto.Hash, indices []uint64, values map[uint64][]byte, facts map[crypto.Hash][]byte) (crypto.Hash, error) {
	if len(indices) == 0 {
		return curHash, nil
	}
	if h == 0 {
		value := values[indices[0]]
		leafHash := crypto.Keccak256Hash(value)
		facts[leafHash] = append([]byte(nil), value...)
		return leafHash, nil
	}

	bit := uint(h - 1)
	splitAt := sort.Search(len(indices), func(i int) bool { return indices[i]&(uint64(1)<<bit) != 0 })
	leftIdx, rightIdx := indices[:splitAt], indices[splitAt:]

	leftChild, rightChild, err := t.children(ctx, h, curHash)
	if err != nil {
		return crypto.Hash{}, err
	}

	newLeft, err := t.recurseFullWidth(ctx, h-1, leftChild, leftIdx, values, facts)
	if err != nil {
		return crypto.Hash{}, err
	}
	newRight, err := t.recurseFullWidth(ctx, h-1, rightChild, rightIdx, values, facts)
	if err != nil {
		return crypto.Hash{}, err
	}

	newHash := crypto.HashPair(newLeft, newRight)
	facts[newHash] = fact.EncodeNode(newLeft, newRight)
	return newHash, nil
}

// children returns the two child hashes of the node at height h with the
// given hash, resolving to the empty-subtree constants without I/O when
// curHash is itself an empty subtree root.
func (t *Tree) children(ctx context.Context, h uint, curHash crypto.Hash) (left, right crypto.Hash, err error) {
	if curHash == t.emptyHash[h] {
		return t.emptyHash[h-1], t.emptyHash[h-1], nil
	}
	left, right, err = t.store.GetNode(ctx, curHash, int(h))
	if err != nil {
		return crypto.Hash{}, crypto.Hash{}, fmt.Errorf("merkle: resolving node at height %d: %w", h, err)
	}
	return left, right, nil
}
