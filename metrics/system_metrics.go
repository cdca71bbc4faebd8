// system_metrics.go provides collection and export of runtime system metrics
// including goroutine count, memory usage, GC statistics, disk usage, and
// configurable committee-loop metrics (cursor position, gateway reachability,
// apply lag).
package metrics

import (
	"encoding/json"
	"runtime"
	"sync"
	"time"
)

// MemStats holds key memory statistics from the Go runtime.
type MemStats struct {
	// HeapAlloc is the number of bytes of allocated heap objects.
	HeapAlloc uint64 `json:"heapAlloc"`

	// TotalAlloc is the cumulative bytes allocated for heap objects.
	TotalAlloc uint64 `json:"totalAlloc"`

	// Sys is the total bytes of memory obtained from the OS.
	Sys uint64 `json:"sys"`

	// NumGC is the number of completed GC cycles.
	NumGC uint64 `json:"numGC"`
}

// DiskStats holds disk usage information, used to watch the volume backing
// the storage adapter's KV store.
type DiskStats struct {
	// Total is the total capacity of the disk in bytes.
	Total uint64 `json:"total"`

	// Used is the number of bytes in use on the disk.
	Used uint64 `json:"used"`

	// Free is the number of bytes available on the disk.
	Free uint64 `json:"free"`
}

// CursorFunc is a callback that returns the committee loop's current
// cursor (next_id).
type CursorFunc func() uint64

// GatewayReachableFunc is a callback that reports whether the last gateway
// request succeeded.
type GatewayReachableFunc func() bool

// ApplyLagFunc is a callback that returns how many batches behind the
// gateway's latest_batch_id the committee loop's cursor currently is.
type ApplyLagFunc func() uint64

// DiskUsageFunc is a callback that returns disk usage for a given path.
type DiskUsageFunc func(path string) DiskStats

// SystemMetrics tracks key system-level and committee-loop-level metrics for
// the data availability committee node.
type SystemMetrics struct {
	mu        sync.RWMutex
	startTime time.Time

	// Cached snapshot from the last Collect() call.
	memStats    MemStats
	goroutines  int
	lastCollect time.Time

	// Configurable callbacks for committee-loop-level metrics.
	cursorFn           CursorFunc
	gatewayReachableFn GatewayReachableFunc
	applyLagFn         ApplyLagFunc
	diskUsageFn        DiskUsageFunc
}

// NewSystemMetrics creates a new SystemMetrics instance. Callbacks default
// to no-op functions returning zero values; use Set*Func methods to override.
func NewSystemMetrics() *SystemMetrics {
	return &SystemMetrics{
		startTime:          time.Now(),
		cursorFn:           func() uint64 { return 0 },
		gatewayReachableFn: func() bool { return false },
		applyLagFn:         func() uint64 { return 0 },
		diskUsageFn:        func(path string) DiskStats { return DiskStats{} },
	}
}

// SetCursorFunc sets the callback for retrieving the committee loop's cursor.
func (sm *SystemMetrics) SetCursorFunc(fn CursorFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if fn != nil {
		sm.cursorFn = fn
	}
}

// SetGatewayReachableFunc sets the callback for gateway health.
func (sm *SystemMetrics) SetGatewayReachableFunc(fn GatewayReachableFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if fn != nil {
		sm.gatewayReachableFn = fn
	}
}

// SetApplyLagFunc sets the callback for the committee loop's apply lag.
func (sm *SystemMetrics) SetApplyLagFunc(fn ApplyLagFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if fn != nil {
		sm.applyLagFn = fn
	}
}

// SetDiskUsageFunc sets the callback for retrieving disk usage.
func (sm *SystemMetrics) SetDiskUsageFunc(fn DiskUsageFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if fn != nil {
		sm.diskUsageFn = fn
	}
}

// Collect takes a snapshot of the current system metrics from the Go runtime.
// Call this periodically (e.g. every few seconds) to update cached values.
func (sm *SystemMetrics) Collect() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.memStats = MemStats{
		HeapAlloc:  ms.HeapAlloc,
		TotalAlloc: ms.TotalAlloc,
		Sys:        ms.Sys,
		NumGC:      uint64(ms.NumGC),
	}
	sm.goroutines = runtime.NumGoroutine()
	sm.lastCollect = time.Now()
}

// GoRoutineCount returns the number of goroutines at the last Collect() call.
// If Collect() has not been called, reads the current goroutine count directly.
func (sm *SystemMetrics) GoRoutineCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if sm.goroutines == 0 {
		return runtime.NumGoroutine()
	}
	return sm.goroutines
}

// MemoryUsage returns the memory statistics from the last Collect() call.
// If Collect() has not been called, performs a live read.
func (sm *SystemMetrics) MemoryUsage() MemStats {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if sm.lastCollect.IsZero() {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		return MemStats{
			HeapAlloc:  ms.HeapAlloc,
			TotalAlloc: ms.TotalAlloc,
			Sys:        ms.Sys,
			NumGC:      uint64(ms.NumGC),
		}
	}
	return sm.memStats
}

// DiskUsage returns disk usage statistics for the given path by invoking
// the configured disk usage callback.
func (sm *SystemMetrics) DiskUsage(path string) DiskStats {
	sm.mu.RLock()
	fn := sm.diskUsageFn
	sm.mu.RUnlock()
	return fn(path)
}

// UptimeSeconds returns the number of seconds since the SystemMetrics
// instance was created.
func (sm *SystemMetrics) UptimeSeconds() float64 {
	return time.Since(sm.startTime).Seconds()
}

// Cursor returns the committee loop's current cursor by invoking the callback.
func (sm *SystemMetrics) Cursor() uint64 {
	sm.mu.RLock()
	fn := sm.cursorFn
	sm.mu.RUnlock()
	return fn()
}

// GatewayReachable returns whether the last gateway request succeeded.
func (sm *SystemMetrics) GatewayReachable() bool {
	sm.mu.RLock()
	fn := sm.gatewayReachableFn
	sm.mu.RUnlock()
	return fn()
}

// ApplyLag returns how many batches behind the gateway's latest batch the
// committee loop currently is.
func (sm *SystemMetrics) ApplyLag() uint64 {
	sm.mu.RLock()
	fn := sm.applyLagFn
	sm.mu.RUnlock()
	return fn()
}

// metricsSnapshot is the internal type used for JSON serialization of all
// system metrics.
type metricsSnapshot struct {
	Goroutines       int      `json:"goroutines"`
	Memory           MemStats `json:"memory"`
	UptimeSec        float64  `json:"uptimeSeconds"`
	Cursor           uint64   `json:"cursor"`
	GatewayReachable bool     `json:"gatewayReachable"`
	ApplyLag         uint64   `json:"applyLag"`
	CollectedAt      string   `json:"collectedAt"`
}

// ExportJSON serializes all current metrics as a JSON object. It performs
// a fresh Collect() before exporting to ensure up-to-date values.
func (sm *SystemMetrics) ExportJSON() ([]byte, error) {
	sm.Collect()

	sm.mu.RLock()
	memSnap := sm.memStats
	goroutineSnap := sm.goroutines
	sm.mu.RUnlock()

	snapshot := metricsSnapshot{
		Goroutines:       goroutineSnap,
		Memory:           memSnap,
		UptimeSec:        sm.UptimeSeconds(),
		Cursor:           sm.Cursor(),
		GatewayReachable: sm.GatewayReachable(),
		ApplyLag:         sm.ApplyLag(),
		CollectedAt:      time.Now().UTC().Format(time.RFC3339),
	}

	return json.Marshal(snapshot)
}

// LastCollectTime returns the time of the last Collect() call, or zero
// if Collect() has never been called.
func (sm *SystemMetrics) LastCollectTime() time.Time {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.lastCollect
}

// GoVersion returns the Go runtime version string.
func GoVersion() string {
	return runtime.Version()
}

// NumCPU returns the number of logical CPUs available.
func NumCPU() int {
	return runtime.NumCPU()
}

// GOARCH returns the target architecture.
func GOARCH() string {
	return runtime.GOARCH
}

// GOOS returns the target operating system.
func GOOS() string {
	return runtime.GOOS
}
