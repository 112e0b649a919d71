package domain

import (
	"strings"

	"github.com/pkg/errors"
)

// Priority is recorded with each task. Lower values are more urgent.
//
// The orchestrator stores it but does not reorder execution by it: every
// queue is FIFO regardless of priority.
type Priority int

const (
	// User-facing, must run now
	Critical Priority = iota
	// Important background work
	High
	// Regular tasks
	Normal
	// Deferred optimizations
	Low
	// Self-optimization while the user is away
	Dream
)

var priorityNames = [...]string{"critical", "high", "normal", "low", "dream"}

func (p Priority) String() string {
	if p < Critical || p > Dream {
		return "unknown"
	}
	return priorityNames[p]
}

// ParsePriority accepts the lower-case names returned by String.
// The empty string maps to Normal.
func ParsePriority(s string) (Priority, error) {
	if s == "" {
		return Normal, nil
	}
	for i, name := range priorityNames {
		if strings.EqualFold(s, name) {
			return Priority(i), nil
		}
	}
	return Normal, errors.Errorf("unknown priority %q, expected one of %v", s, priorityNames)
}

func (p Priority) MarshalText() ([]byte, error) {
	if p < Critical || p > Dream {
		return nil, errors.Errorf("unknown priority %d", int(p))
	}
	return []byte(p.String()), nil
}

func (p *Priority) UnmarshalText(b []byte) error {
	parsed, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
