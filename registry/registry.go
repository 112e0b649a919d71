// Package registry holds the externally observable state of every submitted
// task.
package registry

import (
	"fmt"
	"hash/fnv"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/pkg/errors"

	"github.com/rayos/conductor/domain"
)

var (
	ErrUnknownTask   = errors.New("unknown task")
	ErrDuplicateTask = errors.New("task already registered")
)

// InvalidTransitionError is returned when a status change would break the
// task lifecycle, e.g. leaving a terminal state.
type InvalidTransitionError struct {
	ID   domain.TaskID
	From domain.State
	To   domain.State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("task %s: invalid transition %s -> %s", e.ID, e.From, e.To)
}

// Store is the task registry. Implementations must allow concurrent access
// from every worker and from external pollers. There is no deletion.
type Store interface {
	// Insert registers a copy of t. Inserting an id twice is an error.
	Insert(t *domain.Task) error
	// Get returns a copy of the registered task.
	Get(id domain.TaskID) (*domain.Task, bool)
	// Status returns the task's current status.
	Status(id domain.TaskID) (domain.Status, bool)
	// Transition moves the task to next if domain.CanTransition allows it.
	Transition(id domain.TaskID, next domain.Status) error
	Len() int
}

type entry struct {
	mu   sync.Mutex
	task domain.Task
}

type memStore struct {
	tasks cmap.ConcurrentMap[domain.TaskID, *entry]
}

// NewStore returns an in-memory Store. The map is sharded by task id and each
// record has its own lock, so updates to different tasks do not contend.
func NewStore() Store {
	return &memStore{
		tasks: cmap.NewWithCustomShardingFunction[domain.TaskID, *entry](shardOf),
	}
}

func shardOf(id domain.TaskID) uint32 {
	h := fnv.New32a()
	h.Write(id[:])
	return h.Sum32()
}

func (s *memStore) Insert(t *domain.Task) error {
	if !s.tasks.SetIfAbsent(t.ID, &entry{task: *t}) {
		return errors.Wrapf(ErrDuplicateTask, "task %s", t.ID)
	}
	return nil
}

func (s *memStore) Get(id domain.TaskID) (*domain.Task, bool) {
	e, ok := s.tasks.Get(id)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.task
	return &t, true
}

func (s *memStore) Status(id domain.TaskID) (domain.Status, bool) {
	e, ok := s.tasks.Get(id)
	if !ok {
		return domain.Status{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.task.Status, true
}

func (s *memStore) Transition(id domain.TaskID, next domain.Status) error {
	e, ok := s.tasks.Get(id)
	if !ok {
		return errors.Wrapf(ErrUnknownTask, "task %s", id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !domain.CanTransition(e.task.Status.State, next.State) {
		return &InvalidTransitionError{ID: id, From: e.task.Status.State, To: next.State}
	}
	e.task.Status = next
	return nil
}

func (s *memStore) Len() int {
	return s.tasks.Count()
}
