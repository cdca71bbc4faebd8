package main

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/starkware-libs/starkex-data-availability-committee/attest"
	"github.com/starkware-libs/starkex-data-availability-committee/batchapply"
	"github.com/starkware-libs/starkex-data-availability-committee/committee"
	"github.com/starkware-libs/starkex-data-availability-committee/config"
	"github.com/starkware-libs/starkex-data-availability-committee/crypto"
	"github.com/starkware-libs/starkex-data-availability-committee/fact"
	"github.com/starkware-libs/starkex-data-availability-committee/gateway"
	"github.com/starkware-libs/starkex-data-availability-committee/log"
	"github.com/starkware-libs/starkex-data-availability-committee/storage"
)

// factCacheSize bounds the Merkle Fact Store's in-memory LRU cache. Not
// exposed as a config knob -- it is a resource-tuning constant, not a
// correctness one.
const factCacheSize = 8192

// emptyLeafHash is the canonical "no entry written here yet" leaf value
// for every tree this node maintains.
var emptyLeafHash = crypto.Keccak256Hash(nil)

// newStorageAdapter builds the configured storage.Adapter, wrapped with
// the package's retry policy. Only the "memory" adapter ships in this
// repository; storage.RedisAdapter is a documented extension point, not
// an implementation, so any other adapter name is rejected.
func newStorageAdapter(cfg config.StorageConfig) (storage.Adapter, error) {
	switch cfg.Adapter {
	case "memory":
		return storage.NewRetryingAdapter(storage.NewMemoryAdapter(), storage.DefaultRetryConfig()), nil
	default:
		return nil, fmt.Errorf("dacnode: unsupported storage adapter %q", cfg.Adapter)
	}
}

// telemetryInterval is how often Telemetry collects and reports runtime
// and committee-loop metrics. Not exposed as a config knob -- it is a
// diagnostics cadence, not a correctness one.
const telemetryInterval = 15 * time.Second

// components bundles every wired collaborator the committee Loop needs.
type components struct {
	loop      *committee.Loop
	signer    *attest.Signer
	telemetry *committee.Telemetry
}

// wire constructs every collaborator named in SPEC_FULL.md's component
// table from a validated Config, mirroring the dependency order the
// packages were built in: storage -> fact -> merkle (inside batchapply)
// -> gateway/attest -> committee.
func wire(cfg *config.Config, logger *log.Logger) (*components, error) {
	adapter, err := newStorageAdapter(cfg.Storage)
	if err != nil {
		return nil, err
	}

	store := fact.New(adapter, factCacheSize)
	rootStore := batchapply.NewRootPointerStore(adapter)
	profile := cfg.ResolvedProfile()

	applier, err := batchapply.NewApplier(profile, store, emptyLeafHash, rootStore, cfg.MaxDeltaSize)
	if err != nil {
		return nil, fmt.Errorf("dacnode: building batch applier: %w", err)
	}

	gwCfg := gateway.DefaultConfig()
	gwCfg.Endpoint = cfg.AvailabilityGatewayEndpoint
	gwCfg.CertificatesPath = cfg.CertificatesPath
	gwClient, err := gateway.New(gwCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("dacnode: building gateway client: %w", err)
	}

	signer, err := attest.LoadSigner(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("dacnode: loading signer: %w", err)
	}

	cursorStore := committee.NewCursorStore(adapter)
	submittedStore := committee.NewSubmittedStore(adapter)

	loopCfg := committee.Config{
		PollingInterval: time.Duration(cfg.PollingIntervalSeconds) * time.Second,
		SignerID:        hex.EncodeToString(signer.PublicKey().Bytes()),
	}
	loop := committee.New(loopCfg, profile, gwClient, applier, signer, rootStore, cursorStore, submittedStore, logger)
	telemetry := committee.NewTelemetry(loop, gwClient, telemetryInterval, logger)

	return &components{loop: loop, signer: signer, telemetry: telemetry}, nil
}
