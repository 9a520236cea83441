package app

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/mbocsi/cyberos/hw"
	"github.com/mbocsi/cyberos/proto"
	"github.com/mbocsi/cyberos/settings"
)

// forwardChannelChanges consumes the local ch-change event. A change of our
// own radio is remembered when channel updates are enabled and passed on to
// every paired peer.
func (a *App) forwardChannelChanges(ctx context.Context) error {
	sig := a.Coordinator.Events.Declare(proto.EventChannelChange)
	for {
		env, err := sig.Wait(ctx)
		if err != nil {
			return nil
		}
		if len(env.Args) == 0 || len(env.Args[0]) != 1 {
			slog.Warn("Ignoring channel change without channel", "args", len(env.Args))
			continue
		}
		ch := env.Args[0][0]
		if env.Sender != "" {
			slog.Info("Peer announced a channel change", "sender", env.Sender, "channel", ch)
			continue
		}

		if a.Store.Preferences().ChannelUpdate {
			a.Store.UpdatePreferences(func(p *settings.Preferences) {
				p.STAChannel = ch
				p.APChannel = ch
			})
		}
		if len(a.Coordinator.Registry.PairedPeers()) == 0 {
			continue
		}
		if err := a.Coordinator.Listener.Send(ctx, proto.EventChannelChange, [][]byte{{ch}}, ""); err != nil {
			slog.Warn("Channel change not delivered to every peer", "channel", ch, "error", err)
		}
	}
}

// driveButton reads one command per line: "down", "up", "click", or
// "hold <duration>". It stands in for the GPIO edge interrupt.
func driveButton(ctx context.Context, r io.Reader, b *hw.Button) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			runButtonCommand(ctx, strings.Fields(strings.ToLower(line)), b)
		}
	}
}

func runButtonCommand(ctx context.Context, fields []string, b *hw.Button) {
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case "down", "d":
		b.Press()
	case "up", "u":
		b.Release()
	case "click", "c":
		b.Press()
		b.Release()
	case "hold", "h":
		d := 3500 * time.Millisecond
		if len(fields) > 1 {
			if parsed, err := time.ParseDuration(fields[1]); err == nil {
				d = parsed
			}
		}
		b.Press()
		select {
		case <-time.After(d):
		case <-ctx.Done():
		}
		b.Release()
	default:
		slog.Warn("Unknown button command", "command", fields[0])
	}
}
