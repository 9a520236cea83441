package server

import (
	"context"

	"github.com/mbocsi/cyberos/proto"
)

// Signal is a set-once flag that remembers the envelope that set it. A second
// Set before the consumer takes the first one is dropped (events coalesce).
type Signal struct {
	name string
	ch   chan proto.Envelope
}

func NewSignal(name string) *Signal {
	return &Signal{name: name, ch: make(chan proto.Envelope, 1)}
}

func (s *Signal) Name() string {
	return s.name
}

// Set reports whether the envelope was recorded.
func (s *Signal) Set(env proto.Envelope) bool {
	select {
	case s.ch <- env:
		return true
	default:
		return false
	}
}

func (s *Signal) IsSet() bool {
	return len(s.ch) > 0
}

func (s *Signal) Clear() {
	select {
	case <-s.ch:
	default:
	}
}

// Wait blocks until the signal is set, then consumes it.
func (s *Signal) Wait(ctx context.Context) (proto.Envelope, error) {
	select {
	case env := <-s.ch:
		return env, nil
	case <-ctx.Done():
		return proto.Envelope{}, ctx.Err()
	}
}

// C exposes the signal for select loops. Receiving from it consumes the signal.
func (s *Signal) C() <-chan proto.Envelope {
	return s.ch
}
