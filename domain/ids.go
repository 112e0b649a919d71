// Package domain provides the task, status and load definitions shared by
// the orchestrator, its handlers and its monitor.
package domain

import (
	"fmt"

	uuid "github.com/nu7hatch/gouuid"
	"github.com/pkg/errors"
)

// TaskID identifies a task for its whole life. It is a random (v4) UUID.
type TaskID [16]byte

// NilTaskID is the zero id, never handed out by NewTaskID.
var NilTaskID TaskID

// NewTaskID returns a fresh random id.
func NewTaskID() TaskID {
	u, err := uuid.NewV4()
	if err != nil {
		// crypto/rand only fails when the OS entropy source is unavailable.
		panic(errors.Wrap(err, "generating task id"))
	}
	return TaskID(*u)
}

// ParseTaskID parses the canonical dashed hex form produced by String.
func ParseTaskID(s string) (TaskID, error) {
	u, err := uuid.ParseHex(s)
	if err != nil {
		return NilTaskID, errors.Wrapf(err, "invalid task id %q", s)
	}
	return TaskID(*u), nil
}

func (id TaskID) String() string {
	u := uuid.UUID(id)
	return u.String()
}

func (id TaskID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *TaskID) UnmarshalText(b []byte) error {
	parsed, err := ParseTaskID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// WorkerID is the 0-based index of a worker slot.
type WorkerID int

func (w WorkerID) String() string {
	return fmt.Sprintf("worker-%d", int(w))
}

// WorkerKind is the class of compute resource behind a worker.
type WorkerKind int

const (
	CPUThread WorkerKind = iota
	APUCompute
	DGPU
)

// WorkerType describes a worker's resource. Index is only meaningful for DGPU.
// It is informational; the scheduler treats every worker the same.
type WorkerType struct {
	Kind  WorkerKind `json:"kind"`
	Index int        `json:"index,omitempty"`
}

func (w WorkerType) String() string {
	switch w.Kind {
	case CPUThread:
		return "cpu"
	case APUCompute:
		return "apu"
	case DGPU:
		return fmt.Sprintf("dgpu%d", w.Index)
	}
	return "unknown"
}

func (k WorkerKind) MarshalText() ([]byte, error) {
	switch k {
	case CPUThread:
		return []byte("cpu"), nil
	case APUCompute:
		return []byte("apu"), nil
	case DGPU:
		return []byte("dgpu"), nil
	}
	return nil, errors.Errorf("unknown worker kind %d", int(k))
}

func (k *WorkerKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "cpu":
		*k = CPUThread
	case "apu":
		*k = APUCompute
	case "dgpu":
		*k = DGPU
	default:
		return errors.Errorf("unknown worker kind %q", string(b))
	}
	return nil
}
