package committee

import (
	"context"
	"time"

	"github.com/starkware-libs/starkex-data-availability-committee/log"
	"github.com/starkware-libs/starkex-data-availability-committee/metrics"
)

// LastBatchIDClient is the subset of *gateway.Client Telemetry uses to
// compute apply lag against the gateway's own view of chain progress.
// Optional: a GatewayClient that does not implement it simply reports
// zero lag.
type LastBatchIDClient interface {
	GetLastBatchID(ctx context.Context) (int64, error)
}

// logReportBackend adapts *log.Logger to metrics.ReportBackend, emitting
// one INFO line per report cycle carrying every collected metric.
type logReportBackend struct {
	log *log.Logger
}

func (b *logReportBackend) Report(vals map[string]float64) error {
	l := b.log
	for name, v := range vals {
		l = l.With(name, v)
	}
	l.Info("telemetry report")
	return nil
}

// Telemetry periodically samples the committee loop's runtime and
// progress metrics (goroutines, heap, CPU, cursor position, gateway
// reachability, apply lag, batch throughput) and pushes them through a
// metrics.MetricsReporter. Grounded on das/peer_sampling_scheduler.go's
// poll-interval background goroutine shape, the same pattern the loop
// itself uses for polling the gateway.
type Telemetry struct {
	loop *Loop

	sys       *metrics.SystemMetrics
	collector *metrics.MetricsCollector
	reporter  *metrics.MetricsReporter
	cpu       *metrics.CPUTracker

	lastBatchID LastBatchIDClient
	interval    time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewTelemetry builds a Telemetry reporting loop's metrics every
// interval (15s if interval <= 0). gw is type-asserted for
// GetLastBatchID support to compute apply lag.
func NewTelemetry(loop *Loop, gw GatewayClient, interval time.Duration, logger *log.Logger) *Telemetry {
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.Module("telemetry")
	if interval <= 0 {
		interval = 15 * time.Second
	}

	t := &Telemetry{
		loop:      loop,
		sys:       metrics.NewSystemMetrics(),
		collector: metrics.NewMetricsCollector(metrics.CollectorConfig{EnableHistograms: true}),
		reporter:  metrics.NewMetricsReporter(interval),
		cpu:       metrics.NewCPUTracker(),
		interval:  interval,
	}
	if c, ok := gw.(LastBatchIDClient); ok {
		t.lastBatchID = c
	}

	t.sys.SetCursorFunc(func() uint64 {
		id, ok, err := loop.cursor.Get(context.Background())
		if err != nil || !ok {
			return 0
		}
		return uint64(id)
	})
	t.sys.SetGatewayReachableFunc(loop.GatewayHealthy)
	t.sys.SetApplyLagFunc(t.applyLag)

	t.reporter.RegisterBackend("log", &logReportBackend{log: logger})
	return t
}

// applyLag returns how many batches behind the gateway's last_batch_id
// the loop's cursor currently is. Returns 0 when the gateway doesn't
// support get_last_batch_id or the request fails -- lag is a health
// signal, not a correctness input, so a transient failure degrades to
// "unknown" rather than halting anything.
func (t *Telemetry) applyLag() uint64 {
	if t.lastBatchID == nil {
		return 0
	}
	latest, err := t.lastBatchID.GetLastBatchID(context.Background())
	if err != nil {
		return 0
	}
	id, ok, err := t.loop.cursor.Get(context.Background())
	if err != nil || !ok {
		id = 0
	}
	if latest < id {
		return 0
	}
	return uint64(latest - id)
}

// Start begins the periodic collect-and-report cycle in a background
// goroutine.
func (t *Telemetry) Start() {
	t.stopCh = make(chan struct{})
	t.doneCh = make(chan struct{})
	t.reporter.Start()
	go t.run()
}

// Stop halts collection and the underlying reporter, blocking until
// both exit. Safe to call on an unstarted Telemetry.
func (t *Telemetry) Stop() {
	if t.stopCh == nil {
		return
	}
	close(t.stopCh)
	<-t.doneCh
	t.reporter.Stop()
}

func (t *Telemetry) run() {
	defer close(t.doneCh)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.collectOnce()
		}
	}
}

// collectOnce takes one runtime/committee-loop snapshot, stores it in
// the collector (so HistogramPercentile/Summary stay available for
// future diagnostics endpoints), and forwards the summary to the
// reporter's registered backends.
func (t *Telemetry) collectOnce() {
	t.sys.Collect()
	t.cpu.RecordCPU()

	mem := t.sys.MemoryUsage()
	t.collector.Record("dac.runtime.heap_alloc_bytes", float64(mem.HeapAlloc), nil)
	t.collector.Record("dac.runtime.goroutines", float64(t.sys.GoRoutineCount()), nil)
	t.collector.Record("dac.runtime.cpu_percent", t.cpu.Usage(), nil)
	t.collector.Record("dac.runtime.uptime_seconds", t.sys.UptimeSeconds(), nil)
	t.collector.Record("dac.committee.cursor_next_id", float64(t.sys.Cursor()), nil)
	t.collector.Record("dac.committee.apply_lag_batches", float64(t.sys.ApplyLag()), nil)
	t.collector.Record("dac.committee.batches_per_second", t.loop.batchMeter.Rate1(), nil)

	reachable := 0.0
	if t.sys.GatewayReachable() {
		reachable = 1.0
	}
	t.collector.Record("dac.gateway.reachable", reachable, nil)

	for name, v := range t.collector.Summary() {
		t.reporter.RecordMetric(name, v)
	}
}
