package server

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mbocsi/cyberos/hw"
	"github.com/mbocsi/cyberos/proto"
)

var ErrPairingBusy = errors.New("pairing already in progress")

type PairingState int32

const (
	PairingIdle PairingState = iota
	PairingOffering
	PairingPaired
	PairingTimedOut
)

func (s PairingState) String() string {
	switch s {
	case PairingIdle:
		return "idle"
	case PairingOffering:
		return "offering"
	case PairingPaired:
		return "paired"
	case PairingTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

type PairingConfig struct {
	Window   time.Duration
	Interval time.Duration
}

func DefaultPairingConfig() PairingConfig {
	return PairingConfig{Window: 3 * time.Second, Interval: time.Second}
}

// Pairing runs the offer exchange. A session broadcasts offers until either an
// offer from another offering device is accepted or the window closes.
type Pairing struct {
	cfg      PairingConfig
	listener *Listener
	peers    *PeerRegistry
	network  Network
	feedback hw.Feedback
	persist  Persister
	metrics  *Metrics

	state    atomic.Int32
	offers   *Signal
	paired   *Signal
	complete chan struct{}
}

func NewPairing(cfg PairingConfig, l *Listener, events *LocalEvents, peers *PeerRegistry, network Network, feedback hw.Feedback, persist Persister, metrics *Metrics) *Pairing {
	if cfg.Window <= 0 || cfg.Interval <= 0 {
		cfg = DefaultPairingConfig()
	}
	return &Pairing{
		cfg:      cfg,
		listener: l,
		peers:    peers,
		network:  network,
		feedback: feedback,
		persist:  persist,
		metrics:  metrics,
		offers:   events.Declare(proto.EventPairingOffer),
		paired:   NewSignal("paired"),
		complete: make(chan struct{}, 1),
	}
}

func (p *Pairing) State() PairingState {
	return PairingState(p.state.Load())
}

func (p *Pairing) setState(s PairingState) {
	p.state.Store(int32(s))
	p.metrics.pairingState(s)
}

func (p *Pairing) transition(from, to PairingState) bool {
	if !p.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	p.metrics.pairingState(to)
	return true
}

// OnPaired fires with the accepted offer each time a session succeeds.
func (p *Pairing) OnPaired() *Signal {
	return p.paired
}

// Run consumes inbound offers until ctx is done.
func (p *Pairing) Run(ctx context.Context) error {
	for {
		env, err := p.offers.Wait(ctx)
		if err != nil {
			return nil
		}
		p.handleOffer(ctx, env)
	}
}

// Trigger starts a session in the background. It fails if one is running.
func (p *Pairing) Trigger(ctx context.Context) error {
	if p.State() != PairingIdle {
		return ErrPairingBusy
	}
	select {
	case <-p.complete:
	default:
	}
	if !p.transition(PairingIdle, PairingOffering) {
		return ErrPairingBusy
	}
	go p.session(ctx)
	return nil
}

func (p *Pairing) session(ctx context.Context) {
	slog.Info("Pairing started", "window", p.cfg.Window, "interval", p.cfg.Interval)
	restore := p.enter(ctx)
	defer func() {
		restore()
		p.setState(PairingIdle)
	}()

	offer := p.ownOffer()
	timer := time.NewTimer(p.cfg.Window)
	defer timer.Stop()
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.broadcastOffer(ctx, offer)
	for {
		select {
		case <-ctx.Done():
			p.transition(PairingOffering, PairingIdle)
			return
		case <-p.complete:
			return
		case <-timer.C:
			if p.transition(PairingOffering, PairingTimedOut) {
				slog.Info("Pairing timed out")
				p.metrics.pairing("timeout")
				p.notify(hw.FeedbackTimeout)
			}
			return
		case <-ticker.C:
			if p.State() != PairingOffering {
				return
			}
			p.broadcastOffer(ctx, offer)
		}
	}
}

func (p *Pairing) ownOffer() proto.PairingOffer {
	if p.network == nil {
		return proto.PairingOffer{}
	}
	return proto.PairingOffer{MAC: p.network.StationMAC(), Channel: p.network.Channel()}
}

func (p *Pairing) broadcastOffer(ctx context.Context, offer proto.PairingOffer) {
	p.notify(hw.FeedbackPairing)
	if err := p.listener.Broadcast(ctx, proto.EventPairingOffer, offer.Args()); err != nil {
		slog.Warn("Failed to broadcast pairing offer", "error", err)
	}
}

func (p *Pairing) handleOffer(ctx context.Context, env proto.Envelope) {
	if env.Sender == p.listener.ID() {
		return
	}
	if p.State() != PairingOffering {
		slog.Debug("Ignoring pairing offer while not offering", "sender", env.Sender, "state", p.State().String())
		return
	}
	offer, err := proto.ParsePairingOffer(env.Args)
	if err != nil {
		slog.Warn("Ignoring malformed pairing offer", "sender", env.Sender, "error", err)
		return
	}
	if p.peers.IsPaired(env.Sender) {
		slog.Debug("Already paired with sender", "sender", env.Sender)
		return
	}
	if !p.transition(PairingOffering, PairingPaired) {
		return
	}

	p.peers.SetPaired(env.Sender, offer.MAC, offer.Channel)
	p.metrics.pairedPeers(len(p.peers.PairedPeers()))
	if p.persist != nil {
		p.persist.RequestSavePeers()
	}
	slog.Info("Paired with peer", "peer", env.Sender, "mac", offer.MAC.String(), "channel", offer.Channel)

	if err := p.listener.Send(ctx, proto.EventPairingOffer, p.ownOffer().Args(), env.Sender); err != nil {
		slog.Warn("Failed to send pairing reply", "peer", env.Sender, "error", err)
	}

	p.metrics.pairing("paired")
	p.notify(hw.FeedbackPaired)
	p.paired.Clear()
	p.paired.Set(env)

	select {
	case p.complete <- struct{}{}:
	default:
	}
}

// enter saves the current connectivity and brings up the broadcast interface.
// The returned func restores what was changed.
func (p *Pairing) enter(ctx context.Context) func() {
	if p.network == nil {
		return func() {}
	}

	reconnect := false
	if p.network.StationConnected() {
		if err := p.network.Disconnect(ctx); err != nil {
			slog.Warn("Failed to leave station network for pairing", "error", err)
		} else {
			reconnect = true
		}
	}
	disable := false
	if !p.network.BroadcastActive() {
		if err := p.network.SetBroadcast(ctx, true); err != nil {
			slog.Warn("Failed to enable broadcast interface for pairing", "error", err)
		} else {
			disable = true
		}
	}

	return func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if disable {
			if err := p.network.SetBroadcast(rctx, false); err != nil {
				slog.Warn("Failed to disable broadcast interface", "error", err)
			}
		}
		if reconnect {
			if err := p.network.Connect(rctx); err != nil {
				slog.Warn("Failed to reconnect station network", "error", err)
			}
		}
	}
}

func (p *Pairing) notify(kind hw.FeedbackKind) {
	if p.feedback != nil {
		p.feedback.Notify(kind)
	}
}
