package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mbocsi/cyberos/hw"
	"github.com/mbocsi/cyberos/proto"
)

// Surface is an optional outer server (web API, MCP) run next to the radio runtime.
type Surface interface {
	Start() error
	Shutdown(ctx context.Context) error
}

type CoordinatorOptions struct {
	Transport         Transport         // Required
	Network           Network           // Optional; pairing skips connectivity changes if nil
	Feedback          hw.Feedback       // Optional
	Persist           Persister         // Optional
	Gestures          <-chan hw.Gesture // Optional button input
	Pairing           PairingConfig
	HeartbeatInterval time.Duration
	Metrics           *Metrics      // Optional
	Registry          *PeerRegistry // Optional (defaults to new Registry if nil)
	Events            *LocalEvents  // Optional (defaults to new table if nil)
}

// Coordinator wires the receive loop, pairing and heartbeat around one
// transport and supervises them.
type Coordinator struct {
	Registry  *PeerRegistry
	Events    *LocalEvents
	Listener  *Listener
	Pairing   *Pairing
	Heartbeat *Heartbeat

	transport Transport
	network   Network
	feedback  hw.Feedback
	gestures  <-chan hw.Gesture
	metrics   *Metrics
	surfaces  []Surface
}

func NewCoordinator(self string, opts CoordinatorOptions) *Coordinator {
	if opts.Registry == nil {
		opts.Registry = NewPeerRegistry()
	}
	if opts.Events == nil {
		opts.Events = NewLocalEvents()
	}

	l := NewListener(self, opts.Transport, opts.Registry, opts.Events, opts.Metrics)
	c := &Coordinator{
		Registry:  opts.Registry,
		Events:    opts.Events,
		Listener:  l,
		Pairing:   NewPairing(opts.Pairing, l, opts.Events, opts.Registry, opts.Network, opts.Feedback, opts.Persist, opts.Metrics),
		Heartbeat: NewHeartbeat(l, opts.Events, opts.Registry, opts.HeartbeatInterval),
		transport: opts.Transport,
		network:   opts.Network,
		feedback:  opts.Feedback,
		gestures:  opts.Gestures,
		metrics:   opts.Metrics,
	}
	if rt, ok := opts.Transport.(*RadioTransport); ok {
		rt.OnDrop(func() { opts.Metrics.frameDropped("queue_full") })
	}
	return c
}

func (c *Coordinator) AddSurface(s Surface) {
	c.surfaces = append(c.surfaces, s)
}

// Start blocks until ctx is done or a component fails.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := c.transport.Start(); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}
	c.metrics.pairedPeers(len(c.Registry.PairedPeers()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.Listener.Run(gctx) })
	g.Go(func() error { return c.Pairing.Run(gctx) })
	g.Go(func() error { return c.Heartbeat.Run(gctx) })
	if c.gestures != nil {
		g.Go(func() error { return c.gestureLoop(gctx) })
	}
	for _, s := range c.surfaces {
		g.Go(func() error {
			if err := s.Start(); err != nil {
				return fmt.Errorf("surface: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down radio and surfaces")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
		defer cancel()
		var errs []error
		for _, s := range c.surfaces {
			if err := s.Shutdown(sctx); err != nil {
				slog.Error("There was an error when shutting down surface", "error", err.Error())
				errs = append(errs, err)
			}
		}
		if err := c.transport.Shutdown(); err != nil {
			slog.Error("There was an error when shutting down transport", "error", err.Error())
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	slog.Info("Device ready", "device", c.Listener.ID(), "transport", c.transport.Meta().ID)
	c.notify(hw.FeedbackReady)

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *Coordinator) gestureLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case g := <-c.gestures:
			slog.Debug("Gesture", "gesture", g.String())
			switch g {
			case hw.GesturePair:
				if err := c.Pairing.Trigger(ctx); err != nil {
					slog.Info("Pairing gesture ignored", "error", err)
				}
			case hw.GestureHold:
				if err := c.ToggleBroadcast(ctx); err != nil {
					slog.Warn("Failed to toggle broadcast interface", "error", err)
				}
			}
		}
	}
}

// ToggleBroadcast flips the local access point.
func (c *Coordinator) ToggleBroadcast(ctx context.Context) error {
	if c.network == nil {
		return errors.New("no network configured")
	}
	on := !c.network.BroadcastActive()
	if err := c.network.SetBroadcast(ctx, on); err != nil {
		return err
	}
	if on {
		c.notify(hw.FeedbackAccessPointOn)
	} else {
		c.notify(hw.FeedbackAccessPointOff)
	}
	slog.Info("Broadcast interface toggled", "active", on)
	return nil
}

// Forget unpairs a peer and persists the change.
func (c *Coordinator) Forget(peer string) bool {
	if !c.Registry.Forget(peer) {
		return false
	}
	c.metrics.pairedPeers(len(c.Registry.PairedPeers()))
	if p := c.Pairing.persist; p != nil {
		p.RequestSavePeers()
	}
	return true
}

// Subscribe binds a handler for a private event from peer.
func (c *Coordinator) Subscribe(peer, event string, h Handler) error {
	if event == proto.EventPairingOffer {
		return fmt.Errorf("%w: %s is reserved", ErrInvalidHandler, event)
	}
	return c.Registry.Subscribe(peer, event, h)
}

func (c *Coordinator) Transport() Transport {
	return c.transport
}

func (c *Coordinator) notify(kind hw.FeedbackKind) {
	if c.feedback != nil {
		c.feedback.Notify(kind)
	}
}
