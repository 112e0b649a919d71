package handlers

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/rayos/conductor/common/stats"
)

var ErrPoolClosed = errors.New("blocking pool is closed")

// BlockingPool runs blocking filesystem work on a fixed set of goroutines so
// that a burst of search or index tasks cannot start unbounded goroutines.
type BlockingPool struct {
	jobs chan func()
	stat stats.StatsReceiver

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewBlockingPool(size int, stat stats.StatsReceiver) *BlockingPool {
	if size <= 0 {
		size = 1
	}
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	p := &BlockingPool{jobs: make(chan func()), stat: stat}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *BlockingPool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		job()
	}
}

// Do runs fn on the pool and waits for it. If ctx is done first Do returns
// ctx.Err(); a job already running is left to finish on its own.
func (p *BlockingPool) Do(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	job := func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("blocking job panicked: %v\n%s", r, debug.Stack())
				done <- errors.Errorf("blocking job panicked: %v", r)
			}
		}()
		done <- fn()
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	select {
	case p.jobs <- job:
		p.mu.RUnlock()
	case <-ctx.Done():
		p.mu.RUnlock()
		return ctx.Err()
	}
	p.stat.Counter(stats.HandlerBlockingJobCounter).Inc(1)

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close waits for queued jobs to finish; later calls to Do fail with ErrPoolClosed.
func (p *BlockingPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

// runBlocking is Do for functions that produce a value.
func runBlocking[T any](ctx context.Context, p *BlockingPool, fn func() (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func() error {
		v, err := fn()
		out = v
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
