package monitor

import (
	"sync"
	"time"

	"github.com/gammazero/deque"
	log "github.com/sirupsen/logrus"

	"github.com/rayos/conductor/common/stats"
)

const (
	maxViolationHistory = 1000
	violationWindow     = time.Minute
)

// LatencyViolation is a task that ran longer than the watchdog threshold.
type LatencyViolation struct {
	Timestamp time.Time     `json:"timestamp"`
	Label     string        `json:"label"`
	Duration  time.Duration `json:"duration"`
	Threshold time.Duration `json:"threshold"`
}

// LatencyWatchdog keeps the most recent tasks that exceeded a latency threshold.
type LatencyWatchdog struct {
	threshold time.Duration
	now       func() time.Time
	stat      stats.StatsReceiver

	mu         sync.RWMutex
	violations *deque.Deque[LatencyViolation]
}

func NewLatencyWatchdog(threshold time.Duration, stat stats.StatsReceiver) *LatencyWatchdog {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return &LatencyWatchdog{
		threshold:  threshold,
		now:        time.Now,
		stat:       stat,
		violations: deque.New[LatencyViolation](),
	}
}

func (w *LatencyWatchdog) Threshold() time.Duration {
	return w.threshold
}

// Record notes a violation if d exceeds the threshold.
func (w *LatencyWatchdog) Record(label string, d time.Duration) {
	if d <= w.threshold {
		return
	}
	v := LatencyViolation{Timestamp: w.now(), Label: label, Duration: d, Threshold: w.threshold}
	log.WithFields(log.Fields{
		"label":     label,
		"duration":  d,
		"threshold": w.threshold,
	}).Warn("Latency violation")
	w.stat.Counter(stats.MonitorLatencyViolationCounter).Inc(1)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.violations.PushBack(v)
	if w.violations.Len() > maxViolationHistory {
		w.violations.PopFront()
	}
}

// RecentViolations returns at most n violations, newest first.
func (w *LatencyWatchdog) RecentViolations(n int) []LatencyViolation {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if n > w.violations.Len() {
		n = w.violations.Len()
	}
	out := make([]LatencyViolation, 0, n)
	for i := w.violations.Len() - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, w.violations.At(i))
	}
	return out
}

// ViolationRate is the number of violations recorded in the last minute.
func (w *LatencyWatchdog) ViolationRate() float64 {
	cutoff := w.now().Add(-violationWindow)
	w.mu.RLock()
	defer w.mu.RUnlock()
	count := 0
	for i := w.violations.Len() - 1; i >= 0; i-- {
		if !w.violations.At(i).Timestamp.After(cutoff) {
			break
		}
		count++
	}
	return float64(count)
}
