package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/rayos/conductor/domain"
)

func newTask() *domain.Task {
	return domain.NewTask(domain.Normal, domain.Compute{Name: "t", EstimatedDuration: time.Millisecond})
}

func TestInsertStoresACopy(t *testing.T) {
	s := NewStore()
	task := newTask()
	if err := s.Insert(task); err != nil {
		t.Fatal(err)
	}
	task.Status = domain.FailedStatus("mutated after insert")

	st, ok := s.Status(task.ID)
	if !ok || st.State != domain.Pending {
		t.Fatalf("Expected a pending copy, got %v (ok=%t)", st, ok)
	}
	if err := s.Insert(task); errors.Cause(err) != ErrDuplicateTask {
		t.Fatalf("Expected duplicate error, got %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("Expected 1 task, got %d", s.Len())
	}
}

func TestUnknownTask(t *testing.T) {
	s := NewStore()
	id := domain.NewTaskID()
	if _, ok := s.Status(id); ok {
		t.Fatal("Expected unknown id to be missing")
	}
	if _, ok := s.Get(id); ok {
		t.Fatal("Expected unknown id to be missing")
	}
	err := s.Transition(id, domain.RunningStatus(0, time.Now()))
	if errors.Cause(err) != ErrUnknownTask {
		t.Fatalf("Expected ErrUnknownTask, got %v", err)
	}
}

func TestTransitionsFollowLifecycle(t *testing.T) {
	s := NewStore()
	task := newTask()
	s.Insert(task)

	if err := s.Transition(task.ID, domain.CompletedStatus(time.Second, "")); err == nil {
		t.Fatal("Expected Pending -> Completed to be rejected")
	}
	if err := s.Transition(task.ID, domain.RunningStatus(3, time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := s.Transition(task.ID, domain.CompletedStatus(time.Second, "OK")); err != nil {
		t.Fatal(err)
	}
	err := s.Transition(task.ID, domain.FailedStatus("late"))
	if _, ok := err.(*InvalidTransitionError); !ok {
		t.Fatalf("Expected InvalidTransitionError leaving a terminal state, got %v", err)
	}

	got, _ := s.Get(task.ID)
	if got.Status.State != domain.Completed || got.Status.Result != "OK" {
		t.Fatalf("Unexpected final status %v", got.Status)
	}
}

// Concurrent racers on one task: exactly one wins each step.
func TestConcurrentTransitionsHaveOneWinner(t *testing.T) {
	s := NewStore()
	task := newTask()
	s.Insert(task)

	const racers = 16
	var wg sync.WaitGroup
	wins := make(chan int, racers*2)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if s.Transition(task.ID, domain.RunningStatus(domain.WorkerID(i), time.Now())) == nil {
				wins <- i
			}
			var next domain.Status
			if i%2 == 0 {
				next = domain.CompletedStatus(time.Millisecond, "")
			} else {
				next = domain.FailedStatus("boom")
			}
			if s.Transition(task.ID, next) == nil {
				wins <- -1
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	running, terminal := 0, 0
	for w := range wins {
		if w >= 0 {
			running++
		} else {
			terminal++
		}
	}
	if running != 1 || terminal != 1 {
		t.Fatalf("Expected one running and one terminal transition, got %d and %d", running, terminal)
	}
}

func TestManyTasksConcurrently(t *testing.T) {
	s := NewStore()
	const n = 1000
	ids := make([]domain.TaskID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		task := newTask()
		ids[i] = task.ID
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Insert(task); err != nil {
				t.Error(err)
				return
			}
			s.Transition(task.ID, domain.RunningStatus(0, time.Now()))
			s.Transition(task.ID, domain.CompletedStatus(0, ""))
		}()
	}
	wg.Wait()
	if s.Len() != n {
		t.Fatalf("Expected %d tasks, got %d", n, s.Len())
	}
	for _, id := range ids {
		if st, _ := s.Status(id); st.State != domain.Completed {
			t.Fatalf("Task %s ended %s", id, st.State)
		}
	}
}
