package orchestrator

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/rayos/conductor/domain"
)

// QueueFullMsg is the user-facing text of a capacity rejection.
const QueueFullMsg = "Task queue is full. Please try later."

var ErrAlreadyStarted = errors.New("orchestrator already started")

// CapacityError rejects a submission because the approximate number of
// unfinished tasks reached the configured maximum. Nothing was recorded.
type CapacityError struct {
	Pending uint64
	Max     uint64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s (pending=%d, max=%d)", QueueFullMsg, e.Pending, e.Max)
}

// IsCapacityError reports whether err, or its cause, is a *CapacityError.
func IsCapacityError(err error) bool {
	_, ok := errors.Cause(err).(*CapacityError)
	return ok
}

// WorkerPanicError is returned from Start when a worker goroutine panicked
// outside a handler. Handler panics only fail their task.
type WorkerPanicError struct {
	Worker domain.WorkerID
	Value  interface{}
	Stack  []byte
}

func (e *WorkerPanicError) Error() string {
	return fmt.Sprintf("%s panicked: %v", e.Worker, e.Value)
}
