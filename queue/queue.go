package queue

import (
	"sync"

	"github.com/gammazero/deque"
)

// MaxBatch bounds how many items a single steal moves.
const MaxBatch = 32

// StealResult is the outcome of a steal attempt.
type StealResult int

const (
	// Empty means the source had nothing to give.
	Empty StealResult = iota
	// Success means a value was returned.
	Success
	// Retry means the source was busy; trying again may succeed.
	Retry
)

func (r StealResult) String() string {
	switch r {
	case Empty:
		return "empty"
	case Success:
		return "success"
	case Retry:
		return "retry"
	}
	return "unknown"
}

// batchSize returns how many of n queued items a thief takes: half, rounded up,
// capped at MaxBatch.
func batchSize(n int) int {
	size := (n + 1) / 2
	if size > MaxBatch {
		size = MaxBatch
	}
	return size
}

// Injector is the shared entry queue.
type Injector[T any] struct {
	mu sync.Mutex
	q  *deque.Deque[T]
}

func NewInjector[T any]() *Injector[T] {
	return &Injector[T]{q: deque.New[T]()}
}

// Push appends v. Safe from any goroutine.
func (i *Injector[T]) Push(v T) {
	i.mu.Lock()
	i.q.PushBack(v)
	i.mu.Unlock()
}

func (i *Injector[T]) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.q.Len()
}

// StealBatchAndPop moves a batch from the front of the injector into dest and
// returns the first item of the batch.
func (i *Injector[T]) StealBatchAndPop(dest *Worker[T]) (T, StealResult) {
	var zero T
	if !i.mu.TryLock() {
		return zero, Retry
	}
	n := batchSize(i.q.Len())
	if n == 0 {
		i.mu.Unlock()
		return zero, Empty
	}
	batch := make([]T, n)
	for k := range batch {
		batch[k] = i.q.PopFront()
	}
	i.mu.Unlock()

	dest.pushAll(batch[1:])
	return batch[0], Success
}

// Worker is a single-owner FIFO.
type Worker[T any] struct {
	mu sync.Mutex
	q  *deque.Deque[T]
}

func NewWorker[T any]() *Worker[T] {
	return &Worker[T]{q: deque.New[T]()}
}

// Push appends v. Owner only.
func (w *Worker[T]) Push(v T) {
	w.mu.Lock()
	w.q.PushBack(v)
	w.mu.Unlock()
}

// Pop removes the oldest item. Owner only.
func (w *Worker[T]) Pop() (T, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.q.Len() == 0 {
		var zero T
		return zero, false
	}
	return w.q.PopFront(), true
}

func (w *Worker[T]) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.q.Len()
}

// Stealer returns a handle other goroutines can steal through.
func (w *Worker[T]) Stealer() *Stealer[T] {
	return &Stealer[T]{w: w}
}

func (w *Worker[T]) pushAll(vs []T) {
	if len(vs) == 0 {
		return
	}
	w.mu.Lock()
	for _, v := range vs {
		w.q.PushBack(v)
	}
	w.mu.Unlock()
}

// Stealer removes work from the tail of another goroutine's Worker.
type Stealer[T any] struct {
	w *Worker[T]
}

func (s *Stealer[T]) Len() int {
	return s.w.Len()
}

// StealBatchAndPop takes a batch off the victim's tail, keeping the batch's
// FIFO order, returns its oldest item and queues the rest on dest. Stealing
// into the victim's own queue is reported as Empty.
func (s *Stealer[T]) StealBatchAndPop(dest *Worker[T]) (T, StealResult) {
	var zero T
	if s.w == dest {
		return zero, Empty
	}
	if !s.w.mu.TryLock() {
		return zero, Retry
	}
	n := batchSize(s.w.q.Len())
	if n == 0 {
		s.w.mu.Unlock()
		return zero, Empty
	}
	batch := make([]T, n)
	for k := n - 1; k >= 0; k-- {
		batch[k] = s.w.q.PopBack()
	}
	s.w.mu.Unlock()

	dest.pushAll(batch[1:])
	return batch[0], Success
}
