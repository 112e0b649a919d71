// Package monitor measures how well the system is keeping up: task latency
// against a threshold, time since the user last interacted, and host load.
package monitor

import (
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gammazero/deque"
	lru "github.com/hashicorp/golang-lru"
	log "github.com/sirupsen/logrus"

	"github.com/rayos/conductor/common/stats"
	"github.com/rayos/conductor/domain"
)

const (
	// One hour of samples at 1Hz.
	maxMetricsHistory = 3600
	maxLabelAverages  = 1000

	cpuSaturatedPercent   = 90.0
	memoryPressurePercent = 90.0
	queueOverflowPending  = 5000
	gpuStarvedPercent     = 10.0
	imbalanceHigh         = 0.9
	imbalanceLow          = 0.1
)

type Config struct {
	LatencyThreshold time.Duration
	DreamThreshold   time.Duration
	EnableGPU        bool
	Sampler          HostSampler
	Stats            stats.StatsReceiver
}

type averageDuration struct {
	count    int64
	duration time.Duration
}

func (ad *averageDuration) update(d time.Duration) {
	ad.count++
	ad.duration = ad.duration + time.Duration(int64(d-ad.duration)/ad.count)
}

// EntropyMonitor tracks latency violations, user idleness and host load, and
// diagnoses bottlenecks from load snapshots.
type EntropyMonitor struct {
	watchdog   *LatencyWatchdog
	stagnation *StagnationTimer
	sampler    HostSampler
	enableGPU  bool
	stat       stats.StatsReceiver

	mu        sync.Mutex
	durations *lru.Cache
	overall   averageDuration
	history   *deque.Deque[domain.SystemMetrics]
}

func NewEntropyMonitor(cfg Config) *EntropyMonitor {
	if cfg.Stats == nil {
		cfg.Stats = stats.NilStatsReceiver()
	}
	if cfg.Sampler == nil {
		cfg.Sampler = NewHostSampler()
	}
	durations, err := lru.New(maxLabelAverages)
	if err != nil {
		// Only fails for a non-positive size.
		panic(err)
	}
	log.WithFields(log.Fields{
		"latencyThreshold": cfg.LatencyThreshold,
		"dreamThreshold":   cfg.DreamThreshold,
		"enableGPU":        cfg.EnableGPU,
	}).Info("Creating entropy monitor")
	return &EntropyMonitor{
		watchdog:   NewLatencyWatchdog(cfg.LatencyThreshold, cfg.Stats),
		stagnation: NewStagnationTimer(cfg.DreamThreshold),
		sampler:    cfg.Sampler,
		enableGPU:  cfg.EnableGPU,
		stat:       cfg.Stats,
		durations:  durations,
		history:    deque.New[domain.SystemMetrics](),
	}
}

// RecordTask checks d against the latency threshold and folds it into the
// running average for label.
func (m *EntropyMonitor) RecordTask(label string, d time.Duration) {
	m.watchdog.Record(label, d)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.overall.update(d)
	if iface, ok := m.durations.Get(label); ok {
		if ad, ok := iface.(*averageDuration); ok {
			ad.update(d)
			return
		}
	}
	m.durations.Add(label, &averageDuration{count: 1, duration: d})
}

// AverageDuration is the running average for label, if it is still cached.
func (m *EntropyMonitor) AverageDuration(label string) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	iface, ok := m.durations.Get(label)
	if !ok {
		return 0, false
	}
	ad, ok := iface.(*averageDuration)
	if !ok {
		return 0, false
	}
	return ad.duration, true
}

// UserActivity resets the stagnation timer.
func (m *EntropyMonitor) UserActivity() {
	m.stagnation.Poke()
}

func (m *EntropyMonitor) DreamState() DreamState {
	return m.stagnation.DreamState()
}

func (m *EntropyMonitor) IdleDuration() time.Duration {
	return m.stagnation.IdleDuration()
}

// CollectMetrics samples the host. Sampling errors are logged and leave the
// host fields zero. TotalTasks is left for the caller to fill in.
func (m *EntropyMonitor) CollectMetrics(active, pending uint64) domain.SystemMetrics {
	sample, err := m.sampler.Sample()
	if err != nil {
		log.Errorf("Failed to sample host usage: %v", err)
	}

	m.mu.Lock()
	avg := m.overall.duration
	m.mu.Unlock()

	metrics := domain.SystemMetrics{
		ActiveTasks:   active,
		PendingTasks:  pending,
		AvgLatencyMs:  float64(avg) / float64(time.Millisecond),
		CPUUsage:      sample.CPUPercent,
		MemoryMB:      float64(sample.MemoryUsed) / 1024 / 1024,
		MemoryPercent: sample.MemoryPercent,
		GPUUsage:      sample.GPUPercent,
		IdleDuration:  m.stagnation.IdleDuration(),
	}
	m.stat.GaugeFloat(stats.MonitorCPUPercentGauge).Update(metrics.CPUUsage)
	m.stat.Gauge(stats.MonitorMemoryMBGauge).Update(int64(metrics.MemoryMB))
	m.stat.Gauge(stats.MonitorIdleSecondsGauge).Update(int64(metrics.IdleDuration / time.Second))
	log.WithFields(log.Fields{
		"cpu":     metrics.CPUUsage,
		"memory":  humanize.Bytes(sample.MemoryUsed),
		"active":  active,
		"pending": pending,
	}).Debug("Collected system metrics")
	return metrics
}

// RecordMetrics appends to the bounded metrics history.
func (m *EntropyMonitor) RecordMetrics(metrics domain.SystemMetrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history.PushBack(metrics)
	if m.history.Len() > maxMetricsHistory {
		m.history.PopFront()
	}
}

// MetricsHistory returns a copy of the recorded metrics, oldest first.
func (m *EntropyMonitor) MetricsHistory() []domain.SystemMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.SystemMetrics, m.history.Len())
	for i := range out {
		out[i] = m.history.At(i)
	}
	return out
}

// DetectBottleneck reports the first limit load exceeds, checking CPU,
// memory, queue depth and GPU starvation in that order. A skewed spread of
// worker load is logged but not reported.
func (m *EntropyMonitor) DetectBottleneck(load domain.SystemLoad) *domain.Bottleneck {
	metrics := load.Metrics
	var b domain.Bottleneck
	switch {
	case metrics.CPUUsage > cpuSaturatedPercent:
		b = domain.CPUSaturated
	case metrics.MemoryPercent > memoryPressurePercent:
		b = domain.MemoryPressure
	case metrics.PendingTasks > queueOverflowPending:
		b = domain.TaskQueueOverflow
	case m.enableGPU && metrics.GPUUsage != nil && *metrics.GPUUsage < gpuStarvedPercent && metrics.PendingTasks > 0:
		b = domain.GPUStarved
	}
	if b != "" {
		return &b
	}

	if len(load.Workers) > 1 {
		max, min := 0.0, 1.0
		for _, w := range load.Workers {
			if w.LoadFactor > max {
				max = w.LoadFactor
			}
			if w.LoadFactor < min {
				min = w.LoadFactor
			}
		}
		if max > imbalanceHigh && min < imbalanceLow {
			log.WithFields(log.Fields{"max": max, "min": min}).Warn("Imbalanced worker load")
		}
	}
	return nil
}

// Efficiency is active tasks per CPU percent in the latest recorded sample,
// or 1 until two samples exist.
func (m *EntropyMonitor) Efficiency() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.history.Len() < 2 {
		return 1
	}
	latest := m.history.Back()
	if latest.CPUUsage <= 0 {
		return 0
	}
	return float64(latest.ActiveTasks) / latest.CPUUsage
}

func (m *EntropyMonitor) Violations(n int) []LatencyViolation {
	return m.watchdog.RecentViolations(n)
}

func (m *EntropyMonitor) ViolationRate() float64 {
	return m.watchdog.ViolationRate()
}
