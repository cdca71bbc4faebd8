package batchapply

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/starkware-libs/starkex-data-availability-committee/crypto"
	"github.com/starkware-libs/starkex-data-availability-committee/storage"
)

const rootKeyPrefix = "root:"

// RootPointerStore persists the mapping from committed batch_id to the
// primary tree's root hash, under the "root:<batch_id>" namespace (spec
// §6). It is the single source of truth the batch applier consults to
// validate a batch's reference_batch_id against its declared prev_root,
// and the handle the committee loop uses to commit a batch's root pointer
// (and to overwrite it during a reorg rewind).
type RootPointerStore struct {
	adapter storage.Adapter
}

// NewRootPointerStore wraps a storage.Adapter as a RootPointerStore.
func NewRootPointerStore(adapter storage.Adapter) *RootPointerStore {
	return &RootPointerStore{adapter: adapter}
}

func rootKey(batchID int64) []byte {
	return []byte(rootKeyPrefix + strconv.FormatInt(batchID, 10))
}

// GetRoot returns the root hash committed for batchID, or ok=false if no
// such batch has been committed.
func (r *RootPointerStore) GetRoot(ctx context.Context, batchID int64) (root crypto.Hash, ok bool, err error) {
	raw, err := r.adapter.Get(ctx, rootKey(batchID))
	if err != nil {
		if err == storage.ErrNotFound {
			return crypto.Hash{}, false, nil
		}
		return crypto.Hash{}, false, fmt.Errorf("batchapply: reading root pointer for batch %d: %w", batchID, err)
	}
	decoded, err := decodeRoot(raw)
	if err != nil {
		return crypto.Hash{}, false, fmt.Errorf("batchapply: decoding root pointer for batch %d: %w", batchID, err)
	}
	return decoded, true, nil
}

// PutRoot records (or overwrites, during a reorg rewind) the root hash
// committed for batchID.
func (r *RootPointerStore) PutRoot(ctx context.Context, batchID int64, root crypto.Hash) error {
	if err := r.adapter.Set(ctx, rootKey(batchID), encodeRoot(root)); err != nil {
		return fmt.Errorf("batchapply: writing root pointer for batch %d: %w", batchID, err)
	}
	return nil
}

func encodeRoot(h crypto.Hash) []byte {
	return []byte(hex.EncodeToString(h.Bytes()))
}

func decodeRoot(raw []byte) (crypto.Hash, error) {
	b, err := hex.DecodeString(string(raw))
	if err != nil {
		return crypto.Hash{}, err
	}
	return crypto.BytesToHash(b), nil
}
