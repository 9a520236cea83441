package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mbocsi/cyberos/proto"
)

const DefaultQueueSize = 16

// Radio abstracts the peer-to-peer radio driver. The receive callback may be
// invoked from any goroutine and must not block.
type Radio interface {
	Open() error
	Transmit(dst proto.MAC, data []byte) error
	SetReceiveCallback(fn func(src proto.MAC, data []byte, rssi int))
	Address() proto.MAC
	Close() error
}

type RadioConfig struct {
	Channel   uint8
	QueueSize int
	Medium    string
}

// RadioTransport queues frames from the radio callback until the listener
// consumes them. Frames arriving on a full queue are dropped.
type RadioTransport struct {
	config RadioConfig
	radio  Radio
	queue  chan Frame
	closed chan struct{}
	once   sync.Once

	dropped atomic.Uint64
	onDrop  func()

	mu          sync.RWMutex
	name        string
	description string
	running     bool
}

func NewRadioTransport(config RadioConfig, radio Radio) *RadioTransport {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if config.Medium == "" {
		config.Medium = "radio"
	}
	return &RadioTransport{
		config: config,
		radio:  radio,
		queue:  make(chan Frame, config.QueueSize),
		closed: make(chan struct{}),
	}
}

func (t *RadioTransport) Start() error {
	slog.Info("Starting radio transport", "medium", t.config.Medium, "channel", t.config.Channel, "address", t.radio.Address())

	t.radio.SetReceiveCallback(t.onReceive)
	if err := t.radio.Open(); err != nil {
		return fmt.Errorf("failed to open radio: %w", err)
	}

	t.mu.Lock()
	t.running = true
	t.mu.Unlock()
	return nil
}

func (t *RadioTransport) onReceive(src proto.MAC, data []byte, rssi int) {
	frame := Frame{Addr: src, Data: append([]byte(nil), data...), RSSI: rssi}
	select {
	case <-t.closed:
		return
	default:
	}
	select {
	case t.queue <- frame:
	default:
		t.dropped.Add(1)
		if t.onDrop != nil {
			t.onDrop()
		}
		slog.Warn("Radio receive queue full, dropping frame", "from", src.String(), "size", len(data))
	}
}

// OnDrop registers a hook called for every frame lost to a full queue.
func (t *RadioTransport) OnDrop(fn func()) {
	t.onDrop = fn
}

func (t *RadioTransport) Receive(ctx context.Context) (Frame, error) {
	select {
	case f := <-t.queue:
		return f, nil
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case <-t.closed:
		return Frame{}, ErrTransportClosed
	}
}

func (t *RadioTransport) Send(addr proto.MAC, data []byte) error {
	t.mu.RLock()
	running := t.running
	t.mu.RUnlock()
	if !running {
		return ErrTransportClosed
	}
	if err := t.radio.Transmit(addr, data); err != nil {
		return err
	}
	slog.Debug("Radio frame sent", "to", addr.String(), "size", len(data))
	return nil
}

func (t *RadioTransport) Shutdown() error {
	var err error
	t.once.Do(func() {
		slog.Info("Shutting down radio transport", "medium", t.config.Medium)
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
		close(t.closed)
		err = t.radio.Close()
	})
	return err
}

func (t *RadioTransport) Meta() TransportMetadata {
	t.mu.RLock()
	defer t.mu.RUnlock()
	addr := t.radio.Address()
	return TransportMetadata{
		ID:          fmt.Sprintf("%s-%s", t.config.Medium, addr.String()),
		Name:        t.name,
		Protocol:    t.config.Medium,
		Address:     addr.String(),
		Description: t.description,
		Connected:   t.running,
		QueueLen:    len(t.queue),
		QueueCap:    cap(t.queue),
		Dropped:     t.dropped.Load(),
	}
}

func (t *RadioTransport) SetName(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.name = name
}

func (t *RadioTransport) SetDescription(description string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.description = description
}
