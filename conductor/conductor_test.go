package conductor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rayos/conductor/common/stats"
	"github.com/rayos/conductor/config"
	"github.com/rayos/conductor/domain"
	"github.com/rayos/conductor/monitor"
)

type staticSampler struct{}

func (staticSampler) Sample() (monitor.HostSample, error) {
	return monitor.HostSample{CPUPercent: 12, MemoryUsed: 1 << 30, MemoryPercent: 40}, nil
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Defaults()
	cfg.Workers = 2
	cfg.MaxQueueSize = 100
	cfg.DreamCheckInterval = config.Duration(10 * time.Millisecond)
	cfg.MetricsInterval = config.Duration(10 * time.Millisecond)
	cfg.ShutdownPollInterval = config.Duration(5 * time.Millisecond)
	cfg.IdleBackoffMax = config.Duration(2 * time.Millisecond)
	cfg.SearchRoot = t.TempDir()
	return &cfg
}

func eventually(t *testing.T, what string, cond func() bool) {
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func runConductor(t *testing.T, c *Conductor) (context.CancelFunc, chan error) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	return cancel, done
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	cfg := testConfig(t)
	cfg.MaxQueueSize = 0
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestRunExecutesSubmittedTasks(t *testing.T) {
	stat := stats.DefaultStatsReceiver()
	c, err := New(testConfig(t), WithHostSampler(staticSampler{}), WithStatsReceiver(stat), WithSeed(1))
	require.NoError(t, err)
	cancel, done := runConductor(t, c)
	defer cancel()

	id, err := c.Submit(domain.NewTask(domain.Normal, domain.Maintenance{Type: domain.CacheFlush}))
	require.NoError(t, err)
	eventually(t, "maintenance task", func() bool {
		st, ok := c.Status(id)
		return ok && st.State == domain.Completed
	})
	st, _ := c.Status(id)
	assert.Equal(t, "Maintenance cache_flush complete", st.Result)

	eventually(t, "metrics samples", func() bool { return len(c.monitor.MetricsHistory()) > 0 })
	assert.Equal(t, 12.0, c.monitor.MetricsHistory()[0].CPUUsage)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestDreamModeSubmitsSystemOptimization(t *testing.T) {
	cfg := testConfig(t)
	cfg.DreamThreshold = config.Duration(time.Millisecond)
	cfg.EnableOuroboros = true
	stat := stats.DefaultStatsReceiver()
	c, err := New(cfg, WithHostSampler(staticSampler{}), WithStatsReceiver(stat), WithSeed(2))
	require.NoError(t, err)
	cancel, done := runConductor(t, c)
	defer cancel()

	eventually(t, "dream cycle", func() bool { return c.OptimizerStats().TotalMutations >= dreamTasks })
	assert.Equal(t, monitor.Dreaming, c.DreamState())
	assert.True(t, c.Stats().TotalTasks >= dreamTasks)
	assert.True(t, stat.Scope("conductor").Counter(stats.ConductorDreamCycleCounter).Count() >= 1)

	c.Shutdown()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}
}

func TestUserActivityKeepsConductorAwake(t *testing.T) {
	cfg := testConfig(t)
	cfg.DreamThreshold = config.Duration(time.Hour)
	c, err := New(cfg, WithHostSampler(staticSampler{}))
	require.NoError(t, err)
	defer c.pool.Close()

	c.UserActivity()
	assert.Equal(t, monitor.Awake, c.DreamState())
	c.checkDream()
	assert.Equal(t, uint64(0), c.Stats().TotalTasks)
	assert.Empty(t, c.Violations(10))
}
