package committee

import (
	"context"
	"fmt"
	"strconv"

	"github.com/starkware-libs/starkex-data-availability-committee/storage"
)

const cursorKey = "cursor:next_id"

// CursorStore persists the loop's next_id -- the smallest batch id not
// yet committed locally -- under the "cursor:next_id" key (spec §6), so
// restarts resume from where the loop left off.
type CursorStore struct {
	adapter storage.Adapter
}

// NewCursorStore wraps a storage.Adapter as a CursorStore.
func NewCursorStore(adapter storage.Adapter) *CursorStore {
	return &CursorStore{adapter: adapter}
}

// Get returns the persisted next_id, or (0, false) if the cursor has
// never been written (a fresh node starting from genesis).
func (c *CursorStore) Get(ctx context.Context) (nextID int64, ok bool, err error) {
	raw, err := c.adapter.Get(ctx, []byte(cursorKey))
	if err != nil {
		if err == storage.ErrNotFound {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("committee: reading cursor: %w", err)
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("committee: decoding cursor: %w", err)
	}
	return n, true, nil
}

// Set advances (or rewinds, during a reorg) the persisted cursor.
func (c *CursorStore) Set(ctx context.Context, nextID int64) error {
	if err := c.adapter.Set(ctx, []byte(cursorKey), []byte(strconv.FormatInt(nextID, 10))); err != nil {
		return fmt.Errorf("committee: writing cursor: %w", err)
	}
	return nil
}

const submittedKeyPrefix = "submitted:"

// SubmittedStore persists a durability marker under "submitted:<id>"
// recording that a batch's signature has been acknowledged by the
// gateway, written before the final root-pointer commit. This resolves
// spec §9's second Open Question: the gateway's acknowledgement is not
// assumed durable across gateway restarts, so the loop keeps its own
// record. On restart, a batch whose marker is present but whose root
// pointer never got written is finished (root pointer and cursor)
// without being re-signed or re-submitted.
type SubmittedStore struct {
	adapter storage.Adapter
}

// NewSubmittedStore wraps a storage.Adapter as a SubmittedStore.
func NewSubmittedStore(adapter storage.Adapter) *SubmittedStore {
	return &SubmittedStore{adapter: adapter}
}

func submittedKey(batchID int64) []byte {
	return []byte(submittedKeyPrefix + strconv.FormatInt(batchID, 10))
}

// MarkSubmitted records that batchID's signature was acknowledged.
func (s *SubmittedStore) MarkSubmitted(ctx context.Context, batchID int64) error {
	if err := s.adapter.Set(ctx, submittedKey(batchID), []byte{1}); err != nil {
		return fmt.Errorf("committee: marking batch %d submitted: %w", batchID, err)
	}
	return nil
}

// IsSubmitted reports whether batchID's signature was already
// acknowledged, e.g. before a crash that prevented the root-pointer
// commit.
func (s *SubmittedStore) IsSubmitted(ctx context.Context, batchID int64) (bool, error) {
	_, err := s.adapter.Get(ctx, submittedKey(batchID))
	if err == nil {
		return true, nil
	}
	if err == storage.ErrNotFound {
		return false, nil
	}
	return false, fmt.Errorf("committee: checking submitted marker for batch %d: %w", batchID, err)
}
