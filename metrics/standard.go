package metrics

// Pre-defined metrics for the data availability committee node. All metrics
// live in DefaultRegistry so they are globally accessible without passing a
// registry around, and can be served through a PrometheusExporter built
// over DefaultRegistry (see prometheus_exporter.go); cmd/dacnode does not
// start one.

var (
	// ---- Committee loop metrics ----

	// BatchesCommitted counts batches that reached the COMMITTED state.
	BatchesCommitted = DefaultRegistry.Counter("dac.batches_committed_total")
	// BatchApplySeconds records wall-clock time spent in the APPLYING state,
	// in milliseconds (Histogram.Mean()/1000 gives seconds).
	BatchApplySeconds = DefaultRegistry.Histogram("dac.batch_apply_seconds")
	// CursorNextID tracks the next batch_id the committee loop will fetch.
	CursorNextID = DefaultRegistry.Gauge("dac.cursor_next_id")
	// ReorgRewinds counts REORG_REWIND transitions taken by the committee loop.
	ReorgRewinds = DefaultRegistry.Counter("dac.reorg_rewinds_total")
	// FatalHalts counts transitions into the FATAL state.
	FatalHalts = DefaultRegistry.Counter("dac.fatal_halts_total")

	// ---- Merkle fact store metrics ----

	// FactsWritten counts Merkle facts persisted by PutFacts.
	FactsWritten = DefaultRegistry.Counter("dac.facts_written_total")
	// FactCacheHits counts node lookups served from the in-memory LRU cache.
	FactCacheHits = DefaultRegistry.Counter("dac.fact_cache_hits_total")
	// FactCacheMisses counts node lookups that fell through to storage.
	FactCacheMisses = DefaultRegistry.Counter("dac.fact_cache_misses_total")

	// ---- Gateway client metrics ----

	// GatewayRequests counts outbound gateway HTTP round trips, one per
	// attempt whatever its outcome.
	GatewayRequests = DefaultRegistry.Counter("dac.gateway_requests_total")
	// GatewayErrors counts gateway requests that exhausted their retry budget.
	GatewayErrors = DefaultRegistry.Counter("dac.gateway_errors_total")
	// GatewayLatencyMillis records gateway round-trip latency in milliseconds.
	GatewayLatencyMillis = DefaultRegistry.Histogram("dac.gateway_latency_ms")

	// ---- Storage adapter metrics ----

	// StorageRetries is registered for storage operations retried after a
	// transient failure; storage.RetryingAdapter does not import this
	// package and never updates it, so it stays at zero.
	StorageRetries = DefaultRegistry.Counter("dac.storage_retries_total")
)
