// Package orchestrator runs submitted tasks on a fixed pool of workers.
//
// Submissions go into a global injector. Each worker drains its own local
// FIFO first, then takes a batch from the injector, then steals half of a
// random peer's local queue. Task state is published through a
// registry.Store so it can be polled while the task runs.
package orchestrator

//go:generate mockgen -source=orchestrator.go -package=orchestrator -destination=orchestrator_mock.go

import (
	"context"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rayos/conductor/common/log/hooks"
	"github.com/rayos/conductor/common/stats"
	"github.com/rayos/conductor/domain"
	"github.com/rayos/conductor/queue"
	"github.com/rayos/conductor/registry"
)

const (
	DefaultMaxQueueSize         = 10000
	DefaultShutdownPollInterval = 100 * time.Millisecond
	DefaultIdleBackoffMax       = time.Millisecond
)

// Used to get proper logging from tests...
func init() {
	if loglevel := os.Getenv("CONDUCTOR_LOGLEVEL"); loglevel != "" {
		level, err := log.ParseLevel(loglevel)
		if err != nil {
			log.Error(err)
			return
		}
		log.SetLevel(level)
		log.AddHook(hooks.NewContextHook())
	}
}

// Handler executes one task payload. A non-nil error marks the task Failed
// with the error text; an empty result means the task produced none.
type Handler interface {
	Execute(ctx context.Context, payload domain.Payload) (string, error)
}

// Monitor receives task latencies and classifies system load.
type Monitor interface {
	RecordTask(label string, d time.Duration)
	CollectMetrics(active, pending uint64) domain.SystemMetrics
	DetectBottleneck(load domain.SystemLoad) *domain.Bottleneck
}

// Config is fixed for the lifetime of an Orchestrator.
type Config struct {
	// Number of workers, 0 means runtime.NumCPU().
	Workers int
	// Submissions are rejected once the approximate number of unfinished
	// tasks reaches this value.
	MaxQueueSize uint64
	// How often Start checks the shutdown flag.
	ShutdownPollInterval time.Duration
	// Idle workers back off exponentially from 1ms up to this value.
	IdleBackoffMax time.Duration
	// When > 0 a worker stops waiting for a handler after this long and
	// marks the task Failed. The handler itself is not stopped.
	TaskTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxQueueSize:         DefaultMaxQueueSize,
		ShutdownPollInterval: DefaultShutdownPollInterval,
		IdleBackoffMax:       DefaultIdleBackoffMax,
	}
}

type Option func(*Orchestrator)

// WithStore replaces the default in-memory task registry.
func WithStore(store registry.Store) Option {
	return func(o *Orchestrator) { o.store = store }
}

// WithStatsReceiver records orchestrator stats under stat.
func WithStatsReceiver(stat stats.StatsReceiver) Option {
	return func(o *Orchestrator) { o.stat = stat }
}

// WithSeed makes victim selection reproducible: worker i is seeded with (seed, i).
func WithSeed(seed uint64) Option {
	return func(o *Orchestrator) { o.seed = seed }
}

type Orchestrator struct {
	cfg     Config
	handler Handler
	monitor Monitor
	store   registry.Store
	stat    stats.StatsReceiver
	seed    uint64

	injector *queue.Injector[*domain.Task]
	workers  []*workerContext
	// Built once in Start, read-only afterwards.
	stealers []*queue.Stealer[*domain.Task]
	// Parent of every handler context. Never cancelled by shutdown.
	runCtx context.Context

	started  atomic.Bool
	shutdown atomic.Bool

	total     atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	stolen    atomic.Uint64
	running   atomic.Int64
}

// New builds an orchestrator with one worker context per worker slot.
// Workers do not run until Start.
func New(cfg Config, handler Handler, monitor Monitor, opts ...Option) (*Orchestrator, error) {
	if handler == nil {
		return nil, errors.New("orchestrator needs a handler")
	}
	if monitor == nil {
		return nil, errors.New("orchestrator needs a monitor")
	}
	if cfg.Workers < 0 {
		return nil, errors.Errorf("invalid worker count %d", cfg.Workers)
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.MaxQueueSize == 0 {
		cfg.MaxQueueSize = DefaultMaxQueueSize
	}
	if cfg.ShutdownPollInterval <= 0 {
		cfg.ShutdownPollInterval = DefaultShutdownPollInterval
	}
	if cfg.IdleBackoffMax <= 0 {
		cfg.IdleBackoffMax = DefaultIdleBackoffMax
	}

	o := &Orchestrator{
		cfg:      cfg,
		handler:  handler,
		monitor:  monitor,
		seed:     uint64(time.Now().UnixNano()),
		injector: queue.NewInjector[*domain.Task](),
		runCtx:   context.Background(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.store == nil {
		o.store = registry.NewStore()
	}
	if o.stat == nil {
		o.stat = stats.NilStatsReceiver()
	}
	o.workers = make([]*workerContext, cfg.Workers)
	for i := range o.workers {
		o.workers[i] = newWorkerContext(domain.WorkerID(i), domain.WorkerType{Kind: domain.CPUThread}, o.seed)
	}
	log.WithFields(log.Fields{
		"workers":      cfg.Workers,
		"maxQueueSize": cfg.MaxQueueSize,
		"taskTimeout":  cfg.TaskTimeout,
	}).Info("Created orchestrator")
	return o, nil
}

// Submit registers a Pending copy of task and queues it for execution.
// When the approximate number of unfinished tasks has reached MaxQueueSize
// it returns a *CapacityError and records nothing.
func (o *Orchestrator) Submit(task *domain.Task) (domain.TaskID, error) {
	if task == nil || task.Payload == nil {
		return domain.NilTaskID, errors.New("submit: task and payload are required")
	}
	pending := o.pending()
	o.stat.Gauge(stats.OrchPendingGauge).Update(int64(pending))
	if pending >= o.cfg.MaxQueueSize {
		o.stat.Counter(stats.OrchCapacityRejectedCounter).Inc(1)
		return domain.NilTaskID, &CapacityError{Pending: pending, Max: o.cfg.MaxQueueSize}
	}

	t := task.Clone()
	t.Status = domain.PendingStatus()
	if err := o.store.Insert(t); err != nil {
		return domain.NilTaskID, errors.Wrapf(err, "submit %s", t.ID)
	}
	// Registry first, so a task is visible before any worker can run it.
	o.injector.Push(t)
	o.total.Add(1)
	o.stat.Counter(stats.OrchSubmittedCounter).Inc(1)
	log.WithFields(log.Fields{
		"task":     t.ID,
		"priority": t.Priority,
		"payload":  t.Payload.Label(),
	}).Debug("Submitted task")
	return t.ID, nil
}

// SubmitBatch submits tasks in order and stops at the first error. The ids
// accepted before the error are returned with it and stay queued: a batch
// can be partially submitted.
func (o *Orchestrator) SubmitBatch(tasks []*domain.Task) ([]domain.TaskID, error) {
	ids := make([]domain.TaskID, 0, len(tasks))
	for _, t := range tasks {
		id, err := o.Submit(t)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Status returns the current status of a task; false if it was never submitted.
func (o *Orchestrator) Status(id domain.TaskID) (domain.Status, bool) {
	return o.store.Status(id)
}

// Start runs the workers and blocks until Shutdown is called or ctx is done,
// then waits for every worker to finish its current task. A worker that
// panics outside a handler shuts the orchestrator down and its
// *WorkerPanicError is returned.
func (o *Orchestrator) Start(ctx context.Context) error {
	if !o.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	o.runCtx = context.WithoutCancel(ctx)

	stealers := make([]*queue.Stealer[*domain.Task], len(o.workers))
	for i, w := range o.workers {
		stealers[i] = w.local.Stealer()
	}
	o.stealers = stealers

	var g errgroup.Group
	for _, w := range o.workers {
		w := w
		g.Go(func() error { return o.runWorker(w) })
	}
	log.WithFields(log.Fields{"workers": len(o.workers)}).Info("Orchestrator started")

	ticker := time.NewTicker(o.cfg.ShutdownPollInterval)
	defer ticker.Stop()
	for !o.shutdown.Load() {
		select {
		case <-ctx.Done():
			o.Shutdown()
		case <-ticker.C:
		}
	}

	err := g.Wait()
	log.WithFields(log.Fields{"stats": o.Stats()}).Info("Orchestrator stopped")
	return err
}

// Shutdown asks the workers to stop after their current task. It does not block.
func (o *Orchestrator) Shutdown() {
	if o.shutdown.CompareAndSwap(false, true) {
		log.Info("Orchestrator shutdown requested")
	}
}

// Stats returns the counters. Each is read independently.
func (o *Orchestrator) Stats() domain.OrchestratorStatistics {
	return domain.OrchestratorStatistics{
		TotalTasks:     o.total.Load(),
		CompletedTasks: o.completed.Load(),
		FailedTasks:    o.failed.Load(),
		StolenTasks:    o.stolen.Load(),
		PendingTasks:   o.pending(),
		WorkerCount:    len(o.workers),
	}
}

// SystemLoad samples the monitor and every worker.
func (o *Orchestrator) SystemLoad() domain.SystemLoad {
	metrics := o.monitor.CollectMetrics(o.pending(), uint64(o.injector.Len()))
	metrics.TotalTasks = o.total.Load()
	workers := make([]domain.WorkerStatus, len(o.workers))
	for i, w := range o.workers {
		workers[i] = w.status()
	}
	load := domain.SystemLoad{
		Timestamp: time.Now(),
		Metrics:   metrics,
		Workers:   workers,
	}
	load.Bottleneck = o.monitor.DetectBottleneck(load)
	return load
}

// pending is total - completed - failed, saturating at zero: a worker can
// finish a task before its submitter has incremented total.
func (o *Orchestrator) pending() uint64 {
	done := o.completed.Load() + o.failed.Load()
	total := o.total.Load()
	if done >= total {
		return 0
	}
	return total - done
}
