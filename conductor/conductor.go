// Package conductor wires the entropy monitor, task handlers and
// orchestrator into one runtime, and runs the dream and metrics loops
// beside the workers.
package conductor

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rayos/conductor/common/stats"
	"github.com/rayos/conductor/config"
	"github.com/rayos/conductor/domain"
	"github.com/rayos/conductor/handlers"
	"github.com/rayos/conductor/monitor"
	"github.com/rayos/conductor/orchestrator"
)

// Number of system optimization tasks submitted per dream check.
const dreamTasks = 3

type Option func(*options)

type options struct {
	stat    stats.StatsReceiver
	sampler monitor.HostSampler
	seed    uint64
	hasSeed bool
}

func WithStatsReceiver(stat stats.StatsReceiver) Option {
	return func(o *options) { o.stat = stat }
}

// WithHostSampler replaces the gopsutil host sampler.
func WithHostSampler(s monitor.HostSampler) Option {
	return func(o *options) { o.sampler = s }
}

// WithSeed seeds victim selection and the optimizer.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed, o.hasSeed = seed, true }
}

type Conductor struct {
	cfg  config.Config
	stat stats.StatsReceiver

	monitor   *monitor.EntropyMonitor
	optimizer *handlers.Gate
	pool      *handlers.BlockingPool
	orch      *orchestrator.Orchestrator
}

func New(cfg *config.Config, opts ...Option) (*Conductor, error) {
	if cfg == nil {
		return nil, errors.New("conductor needs a config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	o := options{stat: stats.NilStatsReceiver()}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.hasSeed {
		o.seed = uint64(time.Now().UnixNano())
	}

	log.WithFields(log.Fields{
		"workers":         cfg.WorkerCount(),
		"maxQueueSize":    cfg.MaxQueueSize,
		"dreamThreshold":  cfg.DreamThreshold,
		"enableOuroboros": cfg.EnableOuroboros,
	}).Info("Creating conductor")

	mon := monitor.NewEntropyMonitor(monitor.Config{
		LatencyThreshold: cfg.LatencyThreshold.Std(),
		DreamThreshold:   cfg.DreamThreshold.Std(),
		EnableGPU:        cfg.EnableGPU,
		Sampler:          o.sampler,
		Stats:            o.stat.Scope("monitor"),
	})
	handlerStat := o.stat.Scope("handlers")
	gate := handlers.NewGate(cfg.EnableOuroboros, o.seed, handlerStat)
	pool := handlers.NewBlockingPool(cfg.BlockingPoolSize, handlerStat)
	dispatcher := handlers.NewDispatcher(handlers.Config{
		SearchRoot: cfg.SearchRoot,
		Optimizer:  gate,
		Pool:       pool,
		Stats:      handlerStat,
	})

	orch, err := orchestrator.New(orchestrator.Config{
		Workers:              cfg.WorkerCount(),
		MaxQueueSize:         cfg.MaxQueueSize,
		ShutdownPollInterval: cfg.ShutdownPollInterval.Std(),
		IdleBackoffMax:       cfg.IdleBackoffMax.Std(),
		TaskTimeout:          cfg.TaskTimeout.Std(),
	}, dispatcher, mon,
		orchestrator.WithStatsReceiver(o.stat.Scope("orchestrator")),
		orchestrator.WithSeed(o.seed))
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &Conductor{
		cfg:       *cfg,
		stat:      o.stat.Scope("conductor"),
		monitor:   mon,
		optimizer: gate,
		pool:      pool,
		orch:      orch,
	}, nil
}

// Run starts the workers and the dream and metrics loops, and blocks until
// ctx is done or Shutdown is called. It returns the orchestrator's error.
func (c *Conductor) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer cancel()
		return c.orch.Start(gctx)
	})
	g.Go(func() error {
		c.loop(gctx, c.cfg.DreamCheckInterval.Std(), c.checkDream)
		return nil
	})
	g.Go(func() error {
		c.loop(gctx, c.cfg.MetricsInterval.Std(), c.sampleMetrics)
		return nil
	})
	err := g.Wait()
	c.pool.Close()
	log.Info("Conductor stopped")
	return err
}

// Shutdown stops the orchestrator; Run returns once in-flight tasks finish.
func (c *Conductor) Shutdown() {
	c.orch.Shutdown()
}

func (c *Conductor) loop(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func (c *Conductor) checkDream() {
	if c.monitor.DreamState() != monitor.Dreaming {
		return
	}
	c.stat.Counter(stats.ConductorDreamCycleCounter).Inc(1)
	log.WithFields(log.Fields{"idle": c.monitor.IdleDuration()}).Info("Entering dream mode, submitting system optimization")
	for i := 0; i < dreamTasks; i++ {
		task := domain.NewTask(domain.Dream, domain.Optimize{Target: domain.SystemOptimization()})
		if _, err := c.orch.Submit(task); err != nil {
			c.stat.Counter(stats.ConductorDreamSubmitErrCounter).Inc(1)
			log.Errorf("Failed to submit optimization task: %v", err)
		}
	}
}

func (c *Conductor) sampleMetrics() {
	load := c.orch.SystemLoad()
	c.monitor.RecordMetrics(load.Metrics)
	if load.Bottleneck != nil {
		log.WithFields(log.Fields{"bottleneck": *load.Bottleneck}).Warn("Bottleneck detected")
	}
}

func (c *Conductor) Submit(task *domain.Task) (domain.TaskID, error) {
	return c.orch.Submit(task)
}

func (c *Conductor) SubmitBatch(tasks []*domain.Task) ([]domain.TaskID, error) {
	return c.orch.SubmitBatch(tasks)
}

func (c *Conductor) Status(id domain.TaskID) (domain.Status, bool) {
	return c.orch.Status(id)
}

func (c *Conductor) Stats() domain.OrchestratorStatistics {
	return c.orch.Stats()
}

func (c *Conductor) SystemLoad() domain.SystemLoad {
	return c.orch.SystemLoad()
}

func (c *Conductor) OptimizerStats() handlers.OptimizerStats {
	return c.optimizer.Stats()
}

// UserActivity resets the idle timer that drives dream mode.
func (c *Conductor) UserActivity() {
	c.monitor.UserActivity()
}

func (c *Conductor) DreamState() monitor.DreamState {
	return c.monitor.DreamState()
}

func (c *Conductor) Violations(n int) []monitor.LatencyViolation {
	return c.monitor.Violations(n)
}

// Collector exposes orchestrator counters to Prometheus.
func (c *Conductor) Collector() prometheus.Collector {
	return c.orch.Collector()
}
