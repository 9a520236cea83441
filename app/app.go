// Package app assembles one simulated device from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/mbocsi/cyberos/airhub"
	"github.com/mbocsi/cyberos/config"
	"github.com/mbocsi/cyberos/hw"
	"github.com/mbocsi/cyberos/mcp"
	"github.com/mbocsi/cyberos/network"
	"github.com/mbocsi/cyberos/proto"
	"github.com/mbocsi/cyberos/server"
	"github.com/mbocsi/cyberos/services"
	"github.com/mbocsi/cyberos/settings"
	"github.com/mbocsi/cyberos/web"
)

const Version = "0.3.0"

type Options struct {
	// Air is used by the "local" medium; nil creates a private one.
	Air *server.Air
	// ButtonInput, when set, drives the button from text commands.
	ButtonInput io.Reader
}

type App struct {
	Config      config.Config
	Store       *settings.Store
	Link        *network.Link
	Button      *hw.Button
	Coordinator *server.Coordinator
	Services    *services.ServiceContainer
	Metrics     *prometheus.Registry

	Air *server.Air

	buttonInput io.Reader
	ctx         context.Context
	cancel      context.CancelFunc
}

// New loads persisted state and wires every component. The returned app owns
// the settings file until Close.
func New(cfg config.Config, opts Options) (*App, error) {
	store, err := settings.Open(cfg.Storage)
	if err != nil {
		return nil, err
	}
	prefs, err := store.LoadPreferences()
	if err != nil {
		slog.Warn("Using default preferences", "error", err)
	}

	if cfg.Device.ColorCode == "" {
		cfg.Device.ColorCode = prefs.APColorCode
	}
	if cfg.Device.ColorCode == "" {
		cfg.Device.ColorCode = proto.GenerateColorCode()
		code := cfg.Device.ColorCode
		store.UpdatePreferences(func(p *settings.Preferences) { p.APColorCode = code })
		slog.Info("Generated color code", "color_code", code)
	}
	name := cfg.Device.Name()

	channel := prefs.STAChannel
	if channel == 0 {
		channel = cfg.Radio.Channel
	}
	link := network.NewLink(network.Config{
		StationSSID:   prefs.STASSID,
		StationMAC:    cfg.Device.StationMAC,
		Channel:       channel,
		StationBoot:   prefs.STABoot,
		BroadcastBoot: prefs.APBoot,
	})

	a := &App{
		Config:      cfg,
		Store:       store,
		Link:        link,
		Button:      hw.NewButton(cfg.Button),
		Metrics:     prometheus.NewRegistry(),
		buttonInput: opts.ButtonInput,
	}
	a.Metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	radio, err := a.openRadio(opts.Air)
	if err != nil {
		store.Close()
		return nil, err
	}
	transport := server.NewRadioTransport(server.RadioConfig{
		Channel:   channel,
		QueueSize: cfg.Radio.QueueSize,
		Medium:    cfg.Radio.Medium,
	}, radio)
	transport.SetName(name)

	registry := server.NewPeerRegistry()
	if err := restorePeers(store, registry); err != nil {
		slog.Warn("Could not restore paired peers", "error", err)
	}
	store.BindPeers(func() []settings.PeerRecord { return peerRecords(registry) })

	events := server.NewLocalEvents()
	link.NotifyChannelChange(events.Declare(proto.EventChannelChange))

	a.Coordinator = server.NewCoordinator(name, server.CoordinatorOptions{
		Transport:         transport,
		Network:           link,
		Feedback:          hw.LogFeedback{Logger: slog.Default().With("device", name)},
		Persist:           store,
		Gestures:          a.Button.Gestures(),
		Pairing:           cfg.Pairing,
		HeartbeatInterval: cfg.Heartbeat,
		Metrics:           server.NewMetrics("cyberos", a.Metrics),
		Registry:          registry,
		Events:            events,
	})

	a.ctx, a.cancel = context.WithCancel(context.Background())
	a.Services = services.NewServiceContainer(a.ctx, a.Coordinator)

	if cfg.WebAddr != "" {
		a.Coordinator.AddSurface(web.NewWebClient(cfg.WebAddr, a.Services, a.Metrics))
	}
	if cfg.MCP {
		a.Coordinator.AddSurface(mcp.NewMCPClient(a.Services, mcp.NewMCPServer(name, Version)))
	}
	return a, nil
}

func (a *App) openRadio(air *server.Air) (server.Radio, error) {
	mac := a.Config.Device.StationMAC
	switch a.Config.Radio.Medium {
	case "local":
		if air == nil {
			air = server.NewAir()
		}
		a.Air = air
		return air.Attach(mac), nil
	case "hub":
		url := a.Config.Radio.HubURL
		if url == "" {
			found, err := airhub.Discover(5 * time.Second)
			if err != nil {
				return nil, fmt.Errorf("discover air hub: %w", err)
			}
			url = found
		}
		slog.Info("Using air hub", "url", url)
		return airhub.NewWSRadio(url, mac), nil
	default:
		return nil, fmt.Errorf("%w: unknown radio medium %q", config.ErrInvalid, a.Config.Radio.Medium)
	}
}

// Run blocks until ctx is done or a component fails, then flushes settings.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-a.ctx.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := a.Link.Boot(ctx); err != nil {
		if errors.Is(err, network.ErrNoStationConfig) {
			slog.Warn("Station uplink not configured, running offline", "device", a.Coordinator.Listener.ID())
		} else {
			slog.Error("Network boot failed", "error", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Coordinator.Start(gctx) })
	g.Go(func() error { return a.Store.Run(gctx) })
	g.Go(func() error { return a.forwardChannelChanges(gctx) })
	if a.buttonInput != nil {
		g.Go(func() error { return driveButton(gctx, a.buttonInput, a.Button) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop asks a running app to return from Run.
func (a *App) Stop() {
	a.cancel()
}

func (a *App) Close() error {
	a.cancel()
	return a.Store.Close()
}

// Name is the device's identity on the air.
func (a *App) Name() string {
	return a.Coordinator.Listener.ID()
}

// DefaultLogOutput keeps stdout free for the MCP stdio transport.
func DefaultLogOutput(cfg config.Config) io.Writer {
	if cfg.MCP {
		return os.Stderr
	}
	return os.Stdout
}
