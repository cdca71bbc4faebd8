// Package committee implements the Committee Loop (spec §4.7): the
// per-node state machine that fetches batch descriptors from the
// Availability Gateway, applies them through the Batch Applier, signs the
// resulting roots with the Attestation Signer, and submits the signature
// back to the gateway, advancing a durable local cursor one batch at a
// time. Grounded on rollup/anchor_chain_tracker.go's reorg/rewind
// bookkeeping (block-regression detection, mutex-protected state) and
// das/peer_sampling_scheduler.go's poll-sleep-retry loop shape (config
// struct with constructor-applied defaults, closed-flag shutdown).
package committee

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/starkware-libs/starkex-data-availability-committee/batchapply"
	"github.com/starkware-libs/starkex-data-availability-committee/config"
	"github.com/starkware-libs/starkex-data-availability-committee/crypto"
	"github.com/starkware-libs/starkex-data-availability-committee/gateway"
	"github.com/starkware-libs/starkex-data-availability-committee/log"
	"github.com/starkware-libs/starkex-data-availability-committee/metrics"
)

// ErrFatal wraps any error that halts the loop in StateFatal. The process
// is expected to exit non-zero on ErrFatal rather than restart the loop
// in place (spec §5: a fatal halt requires operator intervention).
var ErrFatal = errors.New("committee: fatal halt")

// GatewayClient is the subset of *gateway.Client the loop depends on,
// narrowed to an interface so the loop can be tested against fakes.
type GatewayClient interface {
	GetBatchData(ctx context.Context, batchID int64) (*gateway.BatchDescriptor, error)
	ApproveNewRoots(ctx context.Context, req gateway.ApproveNewRootsRequest) (*gateway.ApproveNewRootsResponse, error)
}

// Applier is the subset of *batchapply.Applier the loop depends on.
type Applier interface {
	Apply(ctx context.Context, batch batchapply.Batch) (map[string]crypto.Hash, error)
}

// Signer is the subset of *attest.Signer the loop depends on.
type Signer interface {
	SignAttestation(batchID uint64, roots ...crypto.Hash) (crypto.Signature, error)
}

// RootStore is the subset of *batchapply.RootPointerStore the loop
// depends on for committing and rewinding root pointers.
type RootStore interface {
	GetRoot(ctx context.Context, batchID int64) (crypto.Hash, bool, error)
	PutRoot(ctx context.Context, batchID int64, root crypto.Hash) error
}

// Config configures a Loop's polling behavior and identity.
type Config struct {
	// PollingInterval is how long the loop sleeps after observing
	// ErrNotYetAvailable before re-fetching the same batch_id.
	PollingInterval time.Duration
	// SignerID identifies this committee member in approve_new_roots
	// requests (spec §6's signer_id).
	SignerID string
}

// DefaultConfig returns a 5s polling interval.
func DefaultConfig() Config {
	return Config{PollingInterval: 5 * time.Second}
}

// Loop drives the committee state machine for a single active profile. A
// Loop is not safe for concurrent Run calls.
type Loop struct {
	cfg     Config
	profile config.Profile

	gateway GatewayClient
	applier Applier
	signer  Signer
	roots   RootStore

	cursor    *CursorStore
	submitted *SubmittedStore

	log   *log.Logger
	state State

	// gatewayHealthy and batchMeter feed Telemetry's SystemMetrics
	// callbacks (gateway reachability, batch throughput) without
	// requiring Telemetry to reach into the loop's internals.
	gatewayHealthy atomic.Bool
	batchMeter     *metrics.Meter
}

// New constructs a Loop. logger may be nil, in which case the package
// default logger is used.
func New(cfg Config, profile config.Profile, gw GatewayClient, applier Applier, signer Signer, roots RootStore, cursor *CursorStore, submitted *SubmittedStore, logger *log.Logger) *Loop {
	if cfg.PollingInterval <= 0 {
		cfg.PollingInterval = DefaultConfig().PollingInterval
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Loop{
		cfg:        cfg,
		profile:    profile,
		gateway:    gw,
		applier:    applier,
		signer:     signer,
		roots:      roots,
		cursor:     cursor,
		submitted:  submitted,
		log:        logger.Module("committee"),
		state:      StateIdle,
		batchMeter: metrics.NewMeter(),
	}
}

// State returns the loop's current state.
func (l *Loop) State() State { return l.state }

// GatewayHealthy reports whether the most recent gateway request
// succeeded (including the "not yet available" response -- the gateway
// itself is reachable, it simply has nothing new). Used by Telemetry's
// SystemMetrics.GatewayReachableFunc.
func (l *Loop) GatewayHealthy() bool { return l.gatewayHealthy.Load() }

func (l *Loop) setState(s State) {
	l.state = s
	l.log.Debug("state transition", "state", s.String())
}

// Run drives the main cycle until ctx is canceled or a fatal error is hit.
// A canceled ctx ends the loop cleanly once it reaches a suspension point
// (IDLE, having just returned from COMMITTED); mid-cycle it finishes the
// current batch first (spec §5). Run returns nil on a clean shutdown, or
// an error wrapping ErrFatal on a fatal halt.
func (l *Loop) Run(ctx context.Context) error {
	nextID, ok, err := l.cursor.Get(ctx)
	if err != nil {
		return fmt.Errorf("committee: loading cursor: %w", err)
	}
	if !ok {
		nextID = 0
	}
	metrics.CursorNextID.Set(nextID)

	for {
		l.setState(StateIdle)
		if ctx.Err() != nil {
			return nil
		}

		nextID, err = l.runOneCycle(ctx, nextID)
		if err != nil {
			if errors.Is(err, errShouldPoll) {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(l.cfg.PollingInterval):
				}
				continue
			}
			l.setState(StateFatal)
			metrics.FatalHalts.Inc()
			return fmt.Errorf("%w: %v", ErrFatal, err)
		}
	}
}

// errShouldPoll is a sentinel used internally to signal "no batch yet,
// sleep and retry" without treating it as an error condition in Run.
var errShouldPoll = errors.New("committee: batch not yet available")

// runOneCycle executes spec §4.7's cycle for a single batch_id = nextID,
// returning the next_id to resume from. It returns errShouldPoll when the
// gateway has no descriptor for nextID yet.
func (l *Loop) runOneCycle(ctx context.Context, nextID int64) (int64, error) {
	l.setState(StateFetching)
	desc, err := l.gateway.GetBatchData(ctx, nextID)
	if errors.Is(err, gateway.ErrNotYetAvailable) {
		l.gatewayHealthy.Store(true)
		return nextID, errShouldPoll
	}
	if err != nil {
		l.gatewayHealthy.Store(false)
		return nextID, fmt.Errorf("fetching batch %d: %w", nextID, err)
	}
	l.gatewayHealthy.Store(true)

	expectedRef := nextID - 1 // nextID == 0 yields -1, batchapply.ReferenceBatchIDGenesis
	if desc.ReferenceBatchID != expectedRef {
		l.setState(StateReorgRewind)
		metrics.ReorgRewinds.Inc()
		rewound, err := l.reorgRewind(ctx, desc.ReferenceBatchID)
		if err != nil {
			return nextID, fmt.Errorf("reorg rewind: %w", err)
		}
		l.log.With("from", nextID, "to", rewound).Warn("reorg rewind")
		if err := l.cursor.Set(ctx, rewound); err != nil {
			return nextID, fmt.Errorf("persisting rewound cursor: %w", err)
		}
		metrics.CursorNextID.Set(rewound)
		return rewound, nil
	}

	if submitted, err := l.submitted.IsSubmitted(ctx, nextID); err != nil {
		return nextID, fmt.Errorf("checking submitted marker: %w", err)
	} else if submitted {
		// Crashed after ApproveNewRoots succeeded but before the root
		// pointer was committed. Finish the commit from the descriptor's
		// declared next root without re-applying, re-signing or
		// re-submitting.
		return l.finishCommit(ctx, desc, nextID)
	}

	l.setState(StateApplying)
	batch, err := decodeBatch(desc, l.profile)
	if err != nil {
		return nextID, fmt.Errorf("decoding batch %d: %w", nextID, err)
	}

	applyStart := time.Now()
	computed, err := l.applier.Apply(ctx, batch)
	metrics.BatchApplySeconds.Observe(float64(time.Since(applyStart).Milliseconds()))
	var mismatch *batchapply.RootMismatchError
	if errors.As(err, &mismatch) {
		return nextID, fmt.Errorf("batch %d rejected: %w", nextID, err)
	}
	if err != nil {
		return nextID, fmt.Errorf("applying batch %d: %w", nextID, err)
	}

	l.setState(StateSigning)
	roots := orderedRoots(computed, l.profile)
	sig, err := l.signer.SignAttestation(uint64(nextID), roots...)
	if err != nil {
		return nextID, fmt.Errorf("signing batch %d: %w", nextID, err)
	}

	l.setState(StateSubmitting)
	claimHash := crypto.DomainHash(uint64(nextID), roots...)
	req := gateway.ApproveNewRootsRequest{
		BatchID:   nextID,
		ClaimHash: fmt.Sprintf("%x", claimHash.Bytes()),
		Signature: fmt.Sprintf("%x", sig.Bytes()),
		SignerID:  l.cfg.SignerID,
	}
	if _, err := l.gateway.ApproveNewRoots(ctx, req); err != nil {
		if errors.Is(err, gateway.ErrStructural) {
			// The gateway permanently rejected this submission (e.g. it
			// already has a different signature on file for this batch
			// id). Discard this signature and restart the cycle so the
			// next fetch picks up whatever the gateway now expects.
			l.log.With("batch_id", nextID).Warn("approve_new_roots rejected, retrying cycle", "error", err)
			return nextID, errShouldPoll
		}
		return nextID, fmt.Errorf("submitting batch %d: %w", nextID, err)
	}

	if err := l.submitted.MarkSubmitted(ctx, nextID); err != nil {
		return nextID, fmt.Errorf("marking batch %d submitted: %w", nextID, err)
	}

	return l.finishCommit(ctx, desc, nextID)
}

// finishCommit writes the primary tree's root pointer and advances the
// cursor past nextID. It is reachable both from the normal path and from
// crash recovery (submitted marker present, root pointer not yet written).
func (l *Loop) finishCommit(ctx context.Context, desc *gateway.BatchDescriptor, nextID int64) (int64, error) {
	primaryRoot, err := decodeHash(desc.NextRoot)
	if err != nil {
		return nextID, fmt.Errorf("decoding next_root for batch %d: %w", nextID, err)
	}
	if err := l.roots.PutRoot(ctx, nextID, primaryRoot); err != nil {
		return nextID, fmt.Errorf("committing root pointer for batch %d: %w", nextID, err)
	}

	advanced := nextID + 1
	if err := l.cursor.Set(ctx, advanced); err != nil {
		return nextID, fmt.Errorf("advancing cursor past batch %d: %w", nextID, err)
	}

	l.setState(StateCommitted)
	metrics.BatchesCommitted.Inc()
	metrics.CursorNextID.Set(advanced)
	l.batchMeter.Mark(1)
	return advanced, nil
}

// reorgRewind implements spec §4.7 step 2: walk backward from declaredRef
// until we find a batch_id whose root pointer we still have (or exhaust
// the chain at genesis), and resume from the batch immediately after it.
// Root pointers at or above the resume point are superseded; the storage
// adapter has no delete operation, so they are left in place and simply
// overwritten as the loop re-applies the corrected chain going forward
// (the data model permits overwriting a root pointer during a reorg).
// Facts already written for superseded batches are never deleted.
func (l *Loop) reorgRewind(ctx context.Context, declaredRef int64) (int64, error) {
	if declaredRef < 0 {
		return 0, nil
	}
	for id := declaredRef; id >= 0; id-- {
		_, ok, err := l.roots.GetRoot(ctx, id)
		if err != nil {
			return 0, err
		}
		if ok {
			return id + 1, nil
		}
	}
	return 0, nil
}
