package monitor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rayos/conductor/common/stats"
	"github.com/rayos/conductor/domain"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeSampler struct {
	sample HostSample
	err    error
}

func (f *fakeSampler) Sample() (HostSample, error) { return f.sample, f.err }

func TestWatchdogRecordsOnlyViolations(t *testing.T) {
	stat := stats.DefaultStatsReceiver()
	w := NewLatencyWatchdog(16*time.Millisecond, stat)

	w.Record("fast", 10*time.Millisecond)
	w.Record("exact", 16*time.Millisecond)
	assert.Empty(t, w.RecentViolations(10))

	w.Record("slow", 50*time.Millisecond)
	w.Record("slower", 80*time.Millisecond)
	v := w.RecentViolations(10)
	require.Len(t, v, 2)
	assert.Equal(t, "slower", v[0].Label)
	assert.Equal(t, "slow", v[1].Label)
	assert.Equal(t, 16*time.Millisecond, v[0].Threshold)
	assert.Len(t, w.RecentViolations(1), 1)
	assert.Equal(t, int64(2), stat.Counter(stats.MonitorLatencyViolationCounter).Count())
}

func TestWatchdogHistoryIsBounded(t *testing.T) {
	w := NewLatencyWatchdog(time.Millisecond, nil)
	for i := 0; i < maxViolationHistory+10; i++ {
		w.Record("slow", time.Second)
	}
	assert.Len(t, w.RecentViolations(maxViolationHistory*2), maxViolationHistory)
}

func TestWatchdogViolationRate(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	w := NewLatencyWatchdog(time.Millisecond, nil)
	w.now = clock.Now

	assert.Equal(t, 0.0, w.ViolationRate())
	w.Record("a", time.Second)
	clock.Advance(30 * time.Second)
	w.Record("b", time.Second)
	w.Record("c", time.Second)
	assert.Equal(t, 3.0, w.ViolationRate())

	clock.Advance(45 * time.Second)
	assert.Equal(t, 2.0, w.ViolationRate())
	clock.Advance(time.Minute)
	assert.Equal(t, 0.0, w.ViolationRate())
}

func TestStagnationTimer(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s := NewStagnationTimer(100 * time.Second)
	s.now = clock.Now
	s.Poke()

	assert.Equal(t, Awake, s.DreamState())
	clock.Advance(74 * time.Second)
	assert.Equal(t, Awake, s.DreamState())
	clock.Advance(time.Second)
	assert.Equal(t, Drowsy, s.DreamState())
	clock.Advance(25 * time.Second)
	assert.Equal(t, Dreaming, s.DreamState())
	assert.Equal(t, 100*time.Second, s.IdleDuration())

	s.Poke()
	assert.Equal(t, Awake, s.DreamState())
	assert.Equal(t, time.Duration(0), s.IdleDuration())
	assert.Equal(t, "awake", s.DreamState().String())
}

func newTestMonitor(sampler HostSampler, gpu bool) *EntropyMonitor {
	return NewEntropyMonitor(Config{
		LatencyThreshold: 16 * time.Millisecond,
		DreamThreshold:   5 * time.Minute,
		EnableGPU:        gpu,
		Sampler:          sampler,
	})
}

func TestEntropyMonitorRecordTask(t *testing.T) {
	m := newTestMonitor(&fakeSampler{}, false)
	m.RecordTask("task1", 5*time.Millisecond)
	m.RecordTask("task2", 25*time.Millisecond)
	m.RecordTask("task1", 15*time.Millisecond)

	assert.Len(t, m.Violations(10), 1)
	assert.Equal(t, 1.0, m.ViolationRate())

	avg, ok := m.AverageDuration("task1")
	require.True(t, ok)
	assert.Equal(t, 10*time.Millisecond, avg)
	_, ok = m.AverageDuration("unknown")
	assert.False(t, ok)
}

func TestEntropyMonitorCollectMetrics(t *testing.T) {
	gpu := 42.0
	sampler := &fakeSampler{sample: HostSample{
		CPUPercent:    37.5,
		MemoryUsed:    512 * 1024 * 1024,
		MemoryPercent: 25,
		GPUPercent:    &gpu,
	}}
	stat := stats.DefaultStatsReceiver()
	m := NewEntropyMonitor(Config{LatencyThreshold: time.Second, DreamThreshold: time.Minute, Sampler: sampler, Stats: stat})
	m.RecordTask("a", 10*time.Millisecond)
	m.RecordTask("b", 30*time.Millisecond)

	metrics := m.CollectMetrics(3, 7)
	assert.Equal(t, uint64(3), metrics.ActiveTasks)
	assert.Equal(t, uint64(7), metrics.PendingTasks)
	assert.Equal(t, 37.5, metrics.CPUUsage)
	assert.Equal(t, 512.0, metrics.MemoryMB)
	assert.Equal(t, 25.0, metrics.MemoryPercent)
	assert.Equal(t, 20.0, metrics.AvgLatencyMs)
	require.NotNil(t, metrics.GPUUsage)
	assert.Equal(t, 42.0, *metrics.GPUUsage)
	assert.Equal(t, 37.5, stat.GaugeFloat(stats.MonitorCPUPercentGauge).Value())
	assert.Equal(t, int64(512), stat.Gauge(stats.MonitorMemoryMBGauge).Value())

	sampler.err = errors.New("no proc")
	sampler.sample = HostSample{}
	metrics = m.CollectMetrics(0, 0)
	assert.Equal(t, 0.0, metrics.CPUUsage)
	assert.Nil(t, metrics.GPUUsage)
}

func TestEntropyMonitorHistoryAndEfficiency(t *testing.T) {
	m := newTestMonitor(&fakeSampler{}, false)
	assert.Equal(t, 1.0, m.Efficiency())

	m.RecordMetrics(domain.SystemMetrics{ActiveTasks: 1, CPUUsage: 10})
	assert.Equal(t, 1.0, m.Efficiency())
	m.RecordMetrics(domain.SystemMetrics{ActiveTasks: 4, CPUUsage: 50})
	assert.InDelta(t, 0.08, m.Efficiency(), 1e-9)
	m.RecordMetrics(domain.SystemMetrics{ActiveTasks: 4})
	assert.Equal(t, 0.0, m.Efficiency())

	for i := 0; i < maxMetricsHistory+3; i++ {
		m.RecordMetrics(domain.SystemMetrics{TotalTasks: uint64(i)})
	}
	history := m.MetricsHistory()
	require.Len(t, history, maxMetricsHistory)
	assert.Equal(t, uint64(3), history[0].TotalTasks)
}

func TestDetectBottleneck(t *testing.T) {
	low, high := 5.0, 50.0
	cases := []struct {
		name    string
		gpu     bool
		metrics domain.SystemMetrics
		want    *domain.Bottleneck
	}{
		{"idle", false, domain.SystemMetrics{}, nil},
		{"cpu", false, domain.SystemMetrics{CPUUsage: 95, MemoryPercent: 95}, bottleneck(domain.CPUSaturated)},
		{"memory", false, domain.SystemMetrics{CPUUsage: 90, MemoryPercent: 91}, bottleneck(domain.MemoryPressure)},
		{"queue", false, domain.SystemMetrics{PendingTasks: 5001}, bottleneck(domain.TaskQueueOverflow)},
		{"queue at limit", false, domain.SystemMetrics{PendingTasks: 5000}, nil},
		{"gpu starved", true, domain.SystemMetrics{PendingTasks: 1, GPUUsage: &low}, bottleneck(domain.GPUStarved)},
		{"gpu disabled", false, domain.SystemMetrics{PendingTasks: 1, GPUUsage: &low}, nil},
		{"gpu busy", true, domain.SystemMetrics{PendingTasks: 1, GPUUsage: &high}, nil},
		{"gpu unknown", true, domain.SystemMetrics{PendingTasks: 1}, nil},
	}
	for _, c := range cases {
		m := newTestMonitor(&fakeSampler{}, c.gpu)
		got := m.DetectBottleneck(domain.SystemLoad{Metrics: c.metrics})
		assert.Equal(t, c.want, got, c.name)
	}
}

func TestDetectBottleneckImbalanceIsNotReported(t *testing.T) {
	m := newTestMonitor(&fakeSampler{}, false)
	load := domain.SystemLoad{Workers: []domain.WorkerStatus{{LoadFactor: 1}, {LoadFactor: 0}}}
	assert.Nil(t, m.DetectBottleneck(load))
}

func bottleneck(b domain.Bottleneck) *domain.Bottleneck { return &b }
