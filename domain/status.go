package domain

import (
	"fmt"
	"time"
)

// State is the lifecycle position of a task.
//
//	Pending -> Running -> Completed
//	                   -> Failed
//
// Completed and Failed are terminal. Every task passes through Running, even
// one whose handler returns immediately.
type State int

const (
	Pending State = iota
	Running
	Completed
	Failed
)

var stateNames = [...]string{"pending", "running", "completed", "failed"}

func (s State) String() string {
	if s < Pending || s > Failed {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) IsTerminal() bool {
	return s == Completed || s == Failed
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown task state %q", string(b))
}

// CanTransition reports whether a task may move from one state to the next.
func CanTransition(from, to State) bool {
	switch from {
	case Pending:
		return to == Running
	case Running:
		return to == Completed || to == Failed
	}
	return false
}

// Status is the externally observable state of a task plus the data that
// belongs to that state. Fields not relevant to State are zero.
type Status struct {
	State State `json:"state"`

	// Running
	WorkerID  WorkerID  `json:"worker_id,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`

	// Completed
	Duration time.Duration `json:"duration,omitempty"`
	Result   string        `json:"result,omitempty"`

	// Failed
	Error string `json:"error,omitempty"`
}

func PendingStatus() Status {
	return Status{State: Pending}
}

func RunningStatus(worker WorkerID, startedAt time.Time) Status {
	return Status{State: Running, WorkerID: worker, StartedAt: startedAt}
}

func CompletedStatus(duration time.Duration, result string) Status {
	return Status{State: Completed, Duration: duration, Result: result}
}

func FailedStatus(err string) Status {
	return Status{State: Failed, Error: err}
}

func (s Status) IsTerminal() bool {
	return s.State.IsTerminal()
}

func (s Status) String() string {
	switch s.State {
	case Running:
		return fmt.Sprintf("running on %s since %s", s.WorkerID, s.StartedAt.Format(time.RFC3339Nano))
	case Completed:
		if s.Result == "" {
			return fmt.Sprintf("completed in %s", s.Duration)
		}
		return fmt.Sprintf("completed in %s: %s", s.Duration, s.Result)
	case Failed:
		return fmt.Sprintf("failed: %s", s.Error)
	}
	return s.State.String()
}
