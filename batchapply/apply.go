// Package batchapply implements the Batch Applier: given a batch
// descriptor, recompute the new root of every tree the active profile
// declares and compare each against the operator's claim. Grounded on
// rollup/sequencer.go's VerifyBatch recompute-and-compare pattern,
// generalized from a single flat batch-ID hash check to a full Merkle
// root recomputation across a profile's declared trees.
package batchapply

import (
	"context"
	"errors"
	"fmt"

	"github.com/starkware-libs/starkex-data-availability-committee/config"
	"github.com/starkware-libs/starkex-data-availability-committee/crypto"
	"github.com/starkware-libs/starkex-data-availability-committee/fact"
	"github.com/starkware-libs/starkex-data-availability-committee/merkle"
)

// ReferenceBatchIDGenesis is the reference_batch_id value denoting "apply
// against the empty initial state" -- no prior batch exists.
const ReferenceBatchIDGenesis = -1

var (
	// ErrInvalidBatchID is returned when batch_id is negative.
	ErrInvalidBatchID = errors.New("batchapply: batch_id must be >= 0")
	// ErrUnknownReferenceBatch is returned when reference_batch_id is not
	// ReferenceBatchIDGenesis and is absent from the root-pointer store.
	ErrUnknownReferenceBatch = errors.New("batchapply: reference_batch_id not found in root-pointer store")
	// ErrReferenceRootMismatch is returned when the reference batch's
	// stored root does not match this batch's declared prev_root for the
	// primary tree.
	ErrReferenceRootMismatch = errors.New("batchapply: reference batch's stored root does not match declared prev_root")
	// ErrDeltaTooLarge is returned when a batch's combined delta across
	// all declared trees exceeds the configured maximum.
	ErrDeltaTooLarge = errors.New("batchapply: delta exceeds max_delta_size")
	// ErrMissingTreeDelta is returned when the batch descriptor omits a
	// delta for a tree the profile declares.
	ErrMissingTreeDelta = errors.New("batchapply: batch descriptor missing delta for profile-declared tree")
	// ErrRootMismatch is the fatal per-batch error (spec §4.4 step 3): a
	// computed root does not match the operator-declared root. No facts
	// for this batch are retained as the current head, no signature is
	// produced, and the batch is rejected.
	ErrRootMismatch = errors.New("batchapply: computed root does not match operator-declared root")
)

// TreeDelta is one tree's slice of a batch descriptor: the root the tree
// is expected to start from, the delta to apply, and the root the
// operator claims results.
type TreeDelta struct {
	PrevRoot crypto.Hash
	NextRoot crypto.Hash
	Updates  []merkle.Update
}

// Batch is the immutable batch descriptor of spec §3, generalized to
// carry one TreeDelta per tree the active profile declares (primary plus
// any auxiliary trees), keyed by TreeSpec.Name.
type Batch struct {
	BatchID          int64
	ReferenceBatchID int64 // ReferenceBatchIDGenesis denotes the empty initial state
	Trees            map[string]TreeDelta
}

// RootMismatchError carries the detail of a rejected batch: which tree
// disagreed, and what was computed versus claimed.
type RootMismatchError struct {
	BatchID  int64
	Tree     string
	Computed crypto.Hash
	Declared crypto.Hash
}

func (e *RootMismatchError) Error() string {
	return fmt.Sprintf("batchapply: batch %d tree %q: computed root %x != declared root %x",
		e.BatchID, e.Tree, e.Computed, e.Declared)
}

func (e *RootMismatchError) Unwrap() error { return ErrRootMismatch }

// Applier recomputes and validates batch roots for a single active
// profile. It owns one merkle.Tree per tree the profile declares, all
// backed by the same fact.Store.
type Applier struct {
	profile      config.Profile
	trees        map[string]*merkle.Tree
	roots        *RootPointerStore
	maxDeltaSize uint
}

// NewApplier constructs an Applier for profile, with every declared tree
// built over store using emptyLeafHash as the canonical "no entry
// written here yet" leaf. roots is consulted to validate a batch's
// reference_batch_id; maxDeltaSize bounds the combined size of a batch's
// per-tree deltas.
func NewApplier(profile config.Profile, store *fact.Store, emptyLeafHash crypto.Hash, roots *RootPointerStore, maxDeltaSize uint) (*Applier, error) {
	trees := make(map[string]*merkle.Tree, len(profile.Trees()))
	for _, spec := range profile.Trees() {
		tree, err := merkle.NewTree(spec.Height, emptyLeafHash, store)
		if err != nil {
			return nil, fmt.Errorf("batchapply: building tree %q: %w", spec.Name, err)
		}
		trees[spec.Name] = tree
	}
	return &Applier{
		profile:      profile,
		trees:        trees,
		roots:        roots,
		maxDeltaSize: maxDeltaSize,
	}, nil
}

// Apply validates batch against §4.4's rules and, if it validates,
// recomputes every declared tree's new root and compares it against the
// batch's claim. On success it returns the computed roots keyed by tree
// name; the facts for those roots have already been durably persisted by
// merkle.Tree.Apply by the time Apply returns. On a root mismatch it
// returns a *RootMismatchError (wrapping ErrRootMismatch) and the caller
// must not treat any partial computation as the current head.
func (a *Applier) Apply(ctx context.Context, batch Batch) (map[string]crypto.Hash, error) {
	if batch.BatchID < 0 {
		return nil, ErrInvalidBatchID
	}
	if err := a.validateReference(ctx, batch); err != nil {
		return nil, err
	}
	if err := a.validateDeltaSize(batch); err != nil {
		return nil, err
	}

	computed := make(map[string]crypto.Hash, len(a.trees))
	for _, spec := range a.profile.Trees() {
		delta, ok := batch.Trees[spec.Name]
		if !ok {
			return nil, fmt.Errorf("%w: tree %q", ErrMissingTreeDelta, spec.Name)
		}

		tree := a.trees[spec.Name]
		newRoot, err := tree.Apply(ctx, delta.PrevRoot, delta.Updates)
		if err != nil {
			return nil, fmt.Errorf("batchapply: applying tree %q: %w", spec.Name, err)
		}
		if newRoot != delta.NextRoot {
			return nil, &RootMismatchError{
				BatchID:  batch.BatchID,
				Tree:     spec.Name,
				Computed: newRoot,
				Declared: delta.NextRoot,
			}
		}
		computed[spec.Name] = newRoot
	}
	return computed, nil
}

func (a *Applier) validateReference(ctx context.Context, batch Batch) error {
	if batch.ReferenceBatchID == ReferenceBatchIDGenesis {
		return nil
	}
	if batch.ReferenceBatchID < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBatchID, batch.ReferenceBatchID)
	}

	storedRoot, ok, err := a.roots.GetRoot(ctx, batch.ReferenceBatchID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownReferenceBatch, batch.ReferenceBatchID)
	}

	primary, ok := batch.Trees[a.profile.Primary.Name]
	if !ok {
		return fmt.Errorf("%w: tree %q", ErrMissingTreeDelta, a.profile.Primary.Name)
	}
	if storedRoot != primary.PrevRoot {
		return fmt.Errorf("%w: reference batch %d has root %x, batch declares prev_root %x",
			ErrReferenceRootMismatch, batch.ReferenceBatchID, storedRoot, primary.PrevRoot)
	}
	return nil
}

func (a *Applier) validateDeltaSize(batch Batch) error {
	var total uint
	for _, delta := range batch.Trees {
		total += uint(len(delta.Updates))
	}
	if total > a.maxDeltaSize {
		return fmt.Errorf("%w: %d updates (max %d)", ErrDeltaTooLarge, total, a.maxDeltaSize)
	}
	return nil
}
