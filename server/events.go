package server

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/mbocsi/cyberos/proto"
)

// LocalEvents is the device's own table of public events. Components declare
// the events they want to expose at startup.
type LocalEvents struct {
	mu     sync.RWMutex
	events map[string]*Signal
}

func NewLocalEvents() *LocalEvents {
	return &LocalEvents{
		events: make(map[string]*Signal),
	}
}

// Declare returns the signal for name, creating it on first use.
func (e *LocalEvents) Declare(name string) *Signal {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s, ok := e.events[name]; ok {
		return s
	}
	s := NewSignal(name)
	e.events[name] = s
	slog.Debug("Declared public event", "event", name)
	return s
}

func (e *LocalEvents) Get(name string) (*Signal, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.events[name]
	return s, ok
}

// Publish sets the named signal. known is false for undeclared events; set is
// false when a previous occurrence is still pending.
func (e *LocalEvents) Publish(env proto.Envelope) (known bool, set bool) {
	s, ok := e.Get(env.Name)
	if !ok {
		return false, false
	}
	return true, s.Set(env)
}

func (e *LocalEvents) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.events))
	for name := range e.events {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
