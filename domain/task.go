package domain

import (
	"fmt"
	"time"
)

// Task is a unit of work. It is created by a producer, handed to the
// orchestrator on submission and from then on only mutated by the worker
// running it.
type Task struct {
	ID        TaskID
	Priority  Priority
	Payload   Payload
	Status    Status
	CreatedAt time.Time
}

// NewTask returns a Pending task with a fresh id.
func NewTask(priority Priority, payload Payload) *Task {
	return &Task{
		ID:        NewTaskID(),
		Priority:  priority,
		Payload:   payload,
		Status:    PendingStatus(),
		CreatedAt: time.Now(),
	}
}

// Clone copies the task. Payloads are immutable values so they are shared.
func (t *Task) Clone() *Task {
	c := *t
	return &c
}

func (t *Task) String() string {
	return fmt.Sprintf("task %s [%s] %s: %s", t.ID, t.Priority, t.Payload.Label(), t.Status)
}
