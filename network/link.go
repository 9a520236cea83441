// Package network models the device's two interfaces: the station uplink and
// the local broadcast interface (access point).
package network

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mbocsi/cyberos/proto"
	"github.com/mbocsi/cyberos/server"
)

var ErrNoStationConfig = errors.New("network: no station ssid configured")

type Config struct {
	StationSSID   string
	StationMAC    proto.MAC
	Channel       uint8
	StationBoot   bool
	BroadcastBoot bool
	// Simulated time for an interface to come up.
	Settle time.Duration
}

// Link is an in-memory implementation of server.Network. Connect and
// SetBroadcast return after the settle delay, once the interface is up.
type Link struct {
	cfg Config

	mu        sync.RWMutex
	station   bool
	broadcast bool
	channel   uint8
	chChange  *server.Signal
}

func NewLink(cfg Config) *Link {
	if cfg.Channel == 0 {
		cfg.Channel = 1
	}
	return &Link{
		cfg:     cfg,
		channel: cfg.Channel,
	}
}

// Boot brings up whichever interfaces the preferences enable.
func (l *Link) Boot(ctx context.Context) error {
	var errs []error
	if l.cfg.StationBoot {
		errs = append(errs, l.Connect(ctx))
	}
	if l.cfg.BroadcastBoot {
		errs = append(errs, l.SetBroadcast(ctx, true))
	}
	return errors.Join(errs...)
}

// NotifyChannelChange sets sig whenever the radio channel changes.
func (l *Link) NotifyChannelChange(sig *server.Signal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.chChange = sig
}

func (l *Link) settle(ctx context.Context) error {
	if l.cfg.Settle <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(l.cfg.Settle):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Link) StationConnected() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.station
}

func (l *Link) Connect(ctx context.Context) error {
	if l.cfg.StationSSID == "" {
		return ErrNoStationConfig
	}
	if err := l.settle(ctx); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.station {
		return nil
	}
	l.station = true
	slog.Info("Station connected", "ssid", l.cfg.StationSSID, "channel", l.channel)
	return nil
}

func (l *Link) Disconnect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.station {
		return nil
	}
	l.station = false
	slog.Info("Station disconnected", "ssid", l.cfg.StationSSID)
	return nil
}

func (l *Link) BroadcastActive() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.broadcast
}

func (l *Link) SetBroadcast(ctx context.Context, on bool) error {
	if on {
		if err := l.settle(ctx); err != nil {
			return err
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.broadcast == on {
		return nil
	}
	l.broadcast = on
	slog.Info("Broadcast interface changed", "active", on, "channel", l.channel)
	return nil
}

func (l *Link) Channel() uint8 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.channel
}

// SetChannel moves both interfaces to ch and raises the channel-change event.
func (l *Link) SetChannel(ch uint8) {
	l.mu.Lock()
	if ch == l.channel {
		l.mu.Unlock()
		return
	}
	l.channel = ch
	sig := l.chChange
	l.mu.Unlock()

	slog.Info("Radio channel changed", "channel", ch)
	if sig != nil {
		sig.Set(proto.Envelope{Name: proto.EventChannelChange, Args: [][]byte{{ch}}})
	}
}

func (l *Link) StationMAC() proto.MAC {
	return l.cfg.StationMAC
}
