package monitor

import (
	"sync"
	"time"
)

// DreamState describes how long the user has been away.
type DreamState int

const (
	Awake DreamState = iota
	Drowsy
	Dreaming
)

func (s DreamState) String() string {
	switch s {
	case Awake:
		return "awake"
	case Drowsy:
		return "drowsy"
	case Dreaming:
		return "dreaming"
	}
	return "unknown"
}

func (s DreamState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StagnationTimer tracks the time since the last user interaction.
type StagnationTimer struct {
	threshold time.Duration
	now       func() time.Time

	mu   sync.RWMutex
	last time.Time
}

func NewStagnationTimer(threshold time.Duration) *StagnationTimer {
	return &StagnationTimer{threshold: threshold, now: time.Now, last: time.Now()}
}

// Poke records a user interaction.
func (s *StagnationTimer) Poke() {
	now := s.now()
	s.mu.Lock()
	s.last = now
	s.mu.Unlock()
}

func (s *StagnationTimer) IdleDuration() time.Duration {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()
	if idle := s.now().Sub(last); idle > 0 {
		return idle
	}
	return 0
}

// DreamState is Dreaming once idle for the threshold and Drowsy from three
// quarters of it.
func (s *StagnationTimer) DreamState() DreamState {
	idle := s.IdleDuration()
	switch {
	case idle >= s.threshold:
		return Dreaming
	case idle >= s.threshold*3/4:
		return Drowsy
	}
	return Awake
}
