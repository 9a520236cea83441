package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mbocsi/cyberos/proto"
)

var (
	ErrUnknownPeer = errors.New("unknown peer")
	ErrTransport   = errors.New("transport failure")
)

type Classification uint8

const (
	ClassMalformed Classification = iota
	ClassPublic
	ClassPrivatePaired
	ClassPrivateUnpaired
	ClassPrivateUnknown
	ClassRelay
)

func (c Classification) String() string {
	switch c {
	case ClassPublic:
		return "public"
	case ClassPrivatePaired:
		return "private_paired"
	case ClassPrivateUnpaired:
		return "private_unpaired"
	case ClassPrivateUnknown:
		return "private_unknown"
	case ClassRelay:
		return "relay"
	default:
		return "malformed"
	}
}

// Listener owns the receive loop: it decodes frames, classifies them and
// hands them to the local event table or to a peer's subscription.
type Listener struct {
	self      string
	transport Transport
	peers     *PeerRegistry
	events    *LocalEvents
	metrics   *Metrics

	mu      sync.RWMutex
	current proto.Envelope
}

func NewListener(self string, t Transport, peers *PeerRegistry, events *LocalEvents, metrics *Metrics) *Listener {
	return &Listener{
		self:      self,
		transport: t,
		peers:     peers,
		events:    events,
		metrics:   metrics,
	}
}

func (l *Listener) ID() string {
	return l.self
}

// Run reads frames until ctx is done or the transport closes. It must run on
// exactly one goroutine.
func (l *Listener) Run(ctx context.Context) error {
	slog.Info("Listening for frames", "device", l.self)
	for {
		frame, err := l.transport.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrTransportClosed) {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}
		l.Dispatch(ctx, frame)
	}
}

// Current returns a copy of the envelope under dispatch.
func (l *Listener) Current() proto.Envelope {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current.Clone()
}

func (l *Listener) setCurrent(env proto.Envelope) {
	l.mu.Lock()
	l.current = env
	l.mu.Unlock()
}

// Dispatch classifies one frame and delivers it.
func (l *Listener) Dispatch(ctx context.Context, frame Frame) Classification {
	l.metrics.frameReceived()

	env, err := proto.Decode(frame.Data)
	if err != nil {
		slog.Warn("Dropping malformed frame", "from", frame.Addr.String(), "error", err)
		l.metrics.frameDropped("malformed")
		return ClassMalformed
	}
	l.setCurrent(env)

	switch {
	case env.IsPublic():
		l.deliverPublic(env)
		return ClassPublic
	case env.Receiver != l.self:
		slog.Debug("Ignoring frame for another device", "sender", env.Sender, "receiver", env.Receiver, "event", env.Name)
		l.metrics.frameDropped("relay")
		return ClassRelay
	case l.peers.IsPaired(env.Sender):
		l.peers.Touch(env.Sender, time.Now())
		l.deliverPrivate(ctx, env)
		return ClassPrivatePaired
	case l.peers.Known(env.Sender):
		l.deliverReserved(env, ClassPrivateUnpaired)
		return ClassPrivateUnpaired
	default:
		l.deliverReserved(env, ClassPrivateUnknown)
		return ClassPrivateUnknown
	}
}

func (l *Listener) deliverPublic(env proto.Envelope) {
	known, set := l.events.Publish(env)
	if !known {
		slog.Debug("No local public event", "sender", env.Sender, "event", env.Name)
		l.metrics.frameDropped("unknown_event")
		return
	}
	if !set {
		slog.Debug("Public event already pending, coalesced", "sender", env.Sender, "event", env.Name)
		l.metrics.frameDropped("coalesced")
		return
	}
	l.metrics.delivered(ClassPublic)
}

func (l *Listener) deliverPrivate(ctx context.Context, env proto.Envelope) {
	h, ok := l.peers.Lookup(env.Sender, env.Name)
	if !ok {
		slog.Debug("No subscription for private event", "sender", env.Sender, "event", env.Name)
		l.metrics.frameDropped("unsubscribed")
		return
	}

	switch h.Kind() {
	case HandlerFlag:
		if !h.Flag().Set(env) {
			slog.Debug("Private event already pending, coalesced", "sender", env.Sender, "event", env.Name)
			l.metrics.frameDropped("coalesced")
			return
		}
	case HandlerCallback:
		if err := h.Callback()(ctx, env); err != nil {
			slog.Error("Event callback failed", "sender", env.Sender, "event", env.Name, "error", err)
		}
	}
	l.metrics.delivered(ClassPrivatePaired)
}

// deliverReserved admits only the pairing offer from senders that are not paired.
func (l *Listener) deliverReserved(env proto.Envelope, class Classification) {
	if env.Name != proto.EventPairingOffer {
		slog.Debug("Dropping private event from unpaired sender", "sender", env.Sender, "event", env.Name)
		l.metrics.frameDropped("unpaired")
		return
	}
	known, set := l.events.Publish(env)
	if !known || !set {
		l.metrics.frameDropped("coalesced")
		return
	}
	l.metrics.delivered(class)
}

// Send transmits a private event. An empty peer sends to every paired peer
// and joins the per-peer errors.
func (l *Listener) Send(ctx context.Context, event string, args [][]byte, peer string) error {
	if peer != "" {
		info, ok := l.peers.Get(peer)
		if !ok || !info.Paired {
			return fmt.Errorf("%w: %s", ErrUnknownPeer, peer)
		}
		return l.sendTo(info, proto.Envelope{Sender: l.self, Receiver: peer, Name: event, Args: args})
	}

	var errs []error
	for _, info := range l.peers.PairedPeers() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		env := proto.Envelope{Sender: l.self, Receiver: info.ID, Name: event, Args: args}
		if err := l.sendTo(info, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Notify sends a public event to one paired peer's address.
func (l *Listener) Notify(ctx context.Context, peer, event string, args [][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, ok := l.peers.Get(peer)
	if !ok || !info.Paired {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, peer)
	}
	return l.sendTo(info, proto.Envelope{Sender: l.self, Name: event, Args: args})
}

// Broadcast sends a public event to every station in range.
func (l *Listener) Broadcast(ctx context.Context, event string, args [][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := proto.Encode(proto.Envelope{Sender: l.self, Name: event, Args: args})
	if err != nil {
		return err
	}
	err = l.transport.Send(proto.BroadcastMAC, data)
	l.metrics.sent(err)
	if err != nil {
		return fmt.Errorf("%w: broadcast %s: %w", ErrTransport, event, err)
	}
	return nil
}

func (l *Listener) sendTo(info PeerInfo, env proto.Envelope) error {
	data, err := proto.Encode(env)
	if err != nil {
		return err
	}
	err = l.transport.Send(info.MAC, data)
	l.metrics.sent(err)
	if err != nil {
		slog.Warn("Send failed", "peer", info.ID, "event", env.Name, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrTransport, info.ID, err)
	}
	slog.Debug("Sent event", "peer", info.ID, "event", env.Name, "public", env.IsPublic())
	return nil
}
