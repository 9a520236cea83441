// Airhub relays radio frames between simulated devices over websockets and
// advertises itself over mDNS.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"

	"github.com/mbocsi/cyberos/airhub"
	"github.com/mbocsi/cyberos/logging"
)

func main() {
	port := flag.Int("port", 8765, "Listen port")
	maxStations := flag.Int("max", 32, "Maximum connected stations")
	advertise := flag.Bool("mdns", true, "Advertise the hub over mDNS")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "console", "Log format: console or json")
	flag.Parse()

	if err := logging.Setup(os.Stdout, *logLevel, *logFormat); err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := airhub.NewHub(fmt.Sprintf(":%d", *port))
	hub.SetMaxStations(*maxStations)

	if *advertise {
		mdnsServer, err := airhub.Advertise(*port)
		if err != nil {
			slog.Warn("mDNS advertisement unavailable", "error", err)
		} else {
			defer mdnsServer.Shutdown()
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- hub.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("Air hub failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hub.Shutdown(sctx); err != nil {
			slog.Error("Air hub shutdown failed", "error", err)
		}
	}
}
