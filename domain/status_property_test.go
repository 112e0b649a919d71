package domain

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// walk applies every proposed state that CanTransition allows and returns the
// states the task actually went through.
func walk(proposed []int) []State {
	seen := []State{Pending}
	cur := Pending
	for _, p := range proposed {
		next := State(p)
		if CanTransition(cur, next) {
			seen = append(seen, next)
			cur = next
		}
	}
	return seen
}

func Test_StateMachine_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("observed states are a prefix of pending, running, terminal", prop.ForAll(
		func(proposed []int) bool {
			seen := walk(proposed)
			if len(seen) > 3 {
				return false
			}
			if seen[0] != Pending {
				return false
			}
			if len(seen) > 1 && seen[1] != Running {
				return false
			}
			if len(seen) > 2 && !seen[2].IsTerminal() {
				return false
			}
			return true
		},
		gen.SliceOf(gen.IntRange(int(Pending), int(Failed))),
	))

	properties.Property("terminal states accept no transition", prop.ForAll(
		func(terminal, next int) bool {
			return !CanTransition(State(terminal), State(next))
		},
		gen.IntRange(int(Completed), int(Failed)),
		gen.IntRange(int(Pending), int(Failed)),
	))

	properties.Property("no state transitions to itself or back to pending", prop.ForAll(
		func(from int) bool {
			return !CanTransition(State(from), State(from)) && !CanTransition(State(from), Pending)
		},
		gen.IntRange(int(Pending), int(Failed)),
	))

	properties.TestingRun(t)
}

func TestPendingCannotSkipRunning(t *testing.T) {
	if CanTransition(Pending, Completed) || CanTransition(Pending, Failed) {
		t.Fatal("Pending must pass through Running before a terminal state")
	}
	if !CanTransition(Pending, Running) {
		t.Fatal("Pending -> Running should be allowed")
	}
}
