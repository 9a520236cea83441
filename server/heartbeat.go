package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mbocsi/cyberos/proto"
)

// Heartbeat answers pings from paired peers and records when their pongs arrive.
type Heartbeat struct {
	listener *Listener
	peers    *PeerRegistry
	ping     *Signal
	pong     *Signal
	interval time.Duration

	mu       sync.RWMutex
	lastPong map[string]time.Time
	waiters  map[string][]chan time.Time
}

// NewHeartbeat declares the ping and pong events. A zero interval disables
// periodic pings; Ping still works on demand.
func NewHeartbeat(l *Listener, events *LocalEvents, peers *PeerRegistry, interval time.Duration) *Heartbeat {
	return &Heartbeat{
		listener: l,
		peers:    peers,
		ping:     events.Declare(proto.EventPing),
		pong:     events.Declare(proto.EventPong),
		interval: interval,
		lastPong: make(map[string]time.Time),
		waiters:  make(map[string][]chan time.Time),
	}
}

func (h *Heartbeat) Ping(ctx context.Context, peer string) error {
	return h.listener.Notify(ctx, peer, proto.EventPing, nil)
}

// RoundTrip pings peer and waits for its pong.
func (h *Heartbeat) RoundTrip(ctx context.Context, peer string) (time.Duration, error) {
	ch := make(chan time.Time, 1)
	h.mu.Lock()
	h.waiters[peer] = append(h.waiters[peer], ch)
	h.mu.Unlock()
	defer h.dropWaiter(peer, ch)

	start := time.Now()
	if err := h.Ping(ctx, peer); err != nil {
		return 0, err
	}
	select {
	case at := <-ch:
		return at.Sub(start), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (h *Heartbeat) dropWaiter(peer string, ch chan time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	waiters := h.waiters[peer]
	for i, w := range waiters {
		if w == ch {
			h.waiters[peer] = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(h.waiters[peer]) == 0 {
		delete(h.waiters, peer)
	}
}

func (h *Heartbeat) LastPong(peer string) (time.Time, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	t, ok := h.lastPong[peer]
	return t, ok
}

func (h *Heartbeat) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if h.interval > 0 {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-h.ping.C():
			if !h.peers.IsPaired(env.Sender) {
				slog.Debug("Ignoring ping from unpaired sender", "sender", env.Sender)
				continue
			}
			if err := h.listener.Notify(ctx, env.Sender, proto.EventPong, nil); err != nil {
				slog.Warn("Failed to answer ping", "peer", env.Sender, "error", err)
			}
		case env := <-h.pong.C():
			if !h.peers.IsPaired(env.Sender) {
				continue
			}
			now := time.Now()
			h.mu.Lock()
			h.lastPong[env.Sender] = now
			waiters := h.waiters[env.Sender]
			delete(h.waiters, env.Sender)
			h.mu.Unlock()
			for _, w := range waiters {
				select {
				case w <- now:
				default:
				}
			}
			h.peers.Touch(env.Sender, now)
			slog.Debug("Pong received", "peer", env.Sender)
		case <-tick:
			for _, p := range h.peers.PairedPeers() {
				if err := h.Ping(ctx, p.ID); err != nil {
					slog.Debug("Ping failed", "peer", p.ID, "error", err)
				}
			}
		}
	}
}
