package orchestrator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/rayos/conductor/common/stats"
	"github.com/rayos/conductor/domain"
	"github.com/rayos/conductor/queue"
)

const initialIdleBackoff = time.Millisecond

type workerContext struct {
	id     domain.WorkerID
	kind   domain.WorkerType
	local  *queue.Worker[*domain.Task]
	permit *semaphore.Weighted
	// Only touched by the worker's own goroutine.
	rng *rand.Rand

	completed atomic.Uint64
	busy      atomic.Int64 // nanoseconds spent in handlers
	current   atomic.Pointer[domain.TaskID]
}

func newWorkerContext(id domain.WorkerID, kind domain.WorkerType, seed uint64) *workerContext {
	return &workerContext{
		id:     id,
		kind:   kind,
		local:  queue.NewWorker[*domain.Task](),
		permit: semaphore.NewWeighted(1),
		rng:    rand.New(rand.NewPCG(seed, uint64(id))),
	}
}

func (w *workerContext) status() domain.WorkerStatus {
	st := domain.WorkerStatus{
		ID:             w.id,
		Type:           w.kind,
		TasksCompleted: w.completed.Load(),
		TotalWorkTime:  time.Duration(w.busy.Load()),
	}
	if cur := w.current.Load(); cur != nil {
		id := *cur
		st.CurrentTask = &id
		st.LoadFactor = 1
	}
	return st
}

func newIdleBackoff(max time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialIdleBackoff
	if max < b.InitialInterval {
		b.InitialInterval = max
	}
	b.MaxInterval = max
	b.RandomizationFactor = 0
	// Never give up: NextBackOff must not return backoff.Stop.
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (o *Orchestrator) runWorker(w *workerContext) (err error) {
	logFields := log.Fields{"worker": w.id}
	defer func() {
		if r := recover(); r != nil {
			err = &WorkerPanicError{Worker: w.id, Value: r, Stack: debug.Stack()}
			log.WithFields(logFields).Errorf("Worker panicked, shutting down: %v\n%s", r, debug.Stack())
			o.failCurrent(w, r)
			o.Shutdown()
		}
		o.stat.Gauge(stats.OrchRunningWorkersGauge).Update(o.running.Add(-1))
	}()
	o.stat.Gauge(stats.OrchRunningWorkersGauge).Update(o.running.Add(1))
	log.WithFields(logFields).Debug("Worker started")

	idle := newIdleBackoff(o.cfg.IdleBackoffMax)
	for !o.shutdown.Load() {
		if err := w.permit.Acquire(context.Background(), 1); err != nil {
			return errors.Wrapf(err, "%s permit", w.id)
		}
		task, ok := o.findTask(w)
		if !ok {
			w.permit.Release(1)
			time.Sleep(idle.NextBackOff())
			continue
		}
		idle.Reset()
		o.execute(w, task)
		w.permit.Release(1)
	}
	log.WithFields(logFields).Debug("Worker stopped")
	return nil
}

// findTask looks in the worker's own queue, then the injector, then every
// peer once starting at a random one. Retry is retried on the same source.
func (o *Orchestrator) findTask(w *workerContext) (*domain.Task, bool) {
	if t, ok := w.local.Pop(); ok {
		return t, true
	}

	for {
		t, res := o.injector.StealBatchAndPop(w.local)
		if res == queue.Success {
			return t, true
		}
		if res == queue.Empty {
			break
		}
		runtime.Gosched()
	}

	n := len(o.stealers)
	if n < 2 {
		return nil, false
	}
	start := w.rng.IntN(n)
	for i := 0; i < n; i++ {
		victim := (start + i) % n
		if victim == int(w.id) {
			continue
		}
		for {
			t, res := o.stealers[victim].StealBatchAndPop(w.local)
			if res == queue.Success {
				o.stolen.Add(1)
				o.stat.Counter(stats.OrchStolenCounter).Inc(1)
				log.WithFields(log.Fields{"worker": w.id, "victim": victim, "task": t.ID}).Trace("Stole task")
				return t, true
			}
			if res == queue.Empty {
				break
			}
			o.stat.Counter(stats.OrchStealRetryCounter).Inc(1)
			runtime.Gosched()
		}
	}
	return nil, false
}

func (o *Orchestrator) execute(w *workerContext, task *domain.Task) {
	logFields := log.Fields{"worker": w.id, "task": task.ID, "payload": task.Payload.Label()}
	// Left set if execute panics, so runWorker can fail the task.
	w.current.Store(&task.ID)

	startedAt := time.Now()
	if err := o.store.Transition(task.ID, domain.RunningStatus(w.id, startedAt)); err != nil {
		// The registry no longer agrees this task is runnable; count it so pending drains.
		log.WithFields(logFields).Errorf("Couldn't mark task running, dropping it: %v", err)
		o.failed.Add(1)
		w.completed.Add(1)
		w.current.Store(nil)
		return
	}
	o.stat.Latency(stats.OrchQueueLatency_ms).Record(startedAt.Sub(task.CreatedAt))

	result, err := o.runHandler(task)
	elapsed := time.Since(startedAt)
	w.busy.Add(int64(elapsed))
	o.monitor.RecordTask(task.Payload.Label(), elapsed)
	o.stat.Latency(stats.OrchTaskLatency_ms).Record(elapsed)

	next := domain.CompletedStatus(elapsed, result)
	if err != nil {
		next = domain.FailedStatus(err.Error())
	}
	if terr := o.store.Transition(task.ID, next); terr != nil {
		log.WithFields(logFields).Errorf("Couldn't record task result: %v", terr)
	}

	if err != nil {
		o.failed.Add(1)
		o.stat.Counter(stats.OrchFailedCounter).Inc(1)
		log.WithFields(logFields).Warnf("Task failed after %s: %v", elapsed, err)
	} else {
		o.completed.Add(1)
		o.stat.Counter(stats.OrchCompletedCounter).Inc(1)
		log.WithFields(logFields).Debugf("Task completed in %s", elapsed)
	}
	w.completed.Add(1)
	w.current.Store(nil)
}

// failCurrent marks the task a panicking worker was running as Failed. A task
// whose result was already recorded is left alone.
func (o *Orchestrator) failCurrent(w *workerContext, r interface{}) {
	cur := w.current.Swap(nil)
	if cur == nil {
		return
	}
	if err := o.store.Transition(*cur, domain.FailedStatus(fmt.Sprintf("worker panic: %v", r))); err != nil {
		log.WithFields(log.Fields{"worker": w.id, "task": *cur}).Warnf("Couldn't fail task after worker panic: %v", err)
		return
	}
	o.failed.Add(1)
	o.stat.Counter(stats.OrchFailedCounter).Inc(1)
	w.completed.Add(1)
}

type handlerResult struct {
	result string
	err    error
}

// runHandler gives up on the handler after TaskTimeout, if set. The
// abandoned handler keeps running with a cancelled context.
func (o *Orchestrator) runHandler(task *domain.Task) (string, error) {
	if o.cfg.TaskTimeout <= 0 {
		return o.invoke(o.runCtx, task)
	}
	ctx, cancel := context.WithTimeout(o.runCtx, o.cfg.TaskTimeout)
	defer cancel()
	done := make(chan handlerResult, 1)
	go func() {
		result, err := o.invoke(ctx, task)
		done <- handlerResult{result, err}
	}()
	select {
	case r := <-done:
		return r.result, r.err
	case <-ctx.Done():
		o.stat.Counter(stats.OrchTaskTimeoutCounter).Inc(1)
		return "", errors.Errorf("task timed out after %s", o.cfg.TaskTimeout)
	}
}

func (o *Orchestrator) invoke(ctx context.Context, task *domain.Task) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.stat.Counter(stats.OrchHandlerPanicCounter).Inc(1)
			log.WithFields(log.Fields{"task": task.ID}).Errorf("Handler panicked: %v\n%s", r, debug.Stack())
			result, err = "", errors.Errorf("handler panic: %v", r)
		}
	}()
	return o.handler.Execute(ctx, task.Payload)
}
