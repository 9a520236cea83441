// Cyberware runs one simulated device: radio, pairing, heartbeat, settings,
// and the optional web API and MCP tool server.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"

	"github.com/mbocsi/cyberos/app"
	"github.com/mbocsi/cyberos/config"
	"github.com/mbocsi/cyberos/logging"
)

func main() {
	configPath := flag.String("config", "cyberos.toml", "Path to the device TOML config")
	hubURL := flag.String("hub", "", "Air hub websocket URL (overrides radio.hub_url)")
	local := flag.Bool("local", false, "Use an in-process radio medium instead of a hub")
	button := flag.Bool("button", false, "Read button commands (down, up, click, hold <d>) from stdin")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
	if *hubURL != "" {
		cfg.Radio.HubURL = *hubURL
	}
	if *local {
		cfg.Radio.Medium = "local"
	}
	if *debugMode {
		cfg.LogLevel = "debug"
	}

	if err := logging.Setup(app.DefaultLogOutput(cfg), cfg.LogLevel, cfg.LogFormat); err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
	if *button && cfg.MCP {
		slog.Error("Button input and the MCP server both need stdin")
		os.Exit(1)
	}

	opts := app.Options{}
	if *button {
		opts.ButtonInput = os.Stdin
	}
	device, err := app.New(cfg, opts)
	if err != nil {
		slog.Error("Failed to start device", "error", err)
		os.Exit(1)
	}
	defer device.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting device", "device", device.Name(), "version", app.Version, "medium", cfg.Radio.Medium)
	if err := device.Run(ctx); err != nil {
		slog.Error("Device stopped", "error", err)
		os.Exit(1)
	}
}
