package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mbocsi/cyberos/services"
)

// DefaultPingTimeout bounds a ping round trip when the request names none.
const DefaultPingTimeout = 2 * time.Second

// WebClient serves the JSON management API for the local device
type WebClient struct {
	services *services.ServiceContainer
	gatherer prometheus.Gatherer
	server   *http.Server
	addr     string
}

// NewWebClient creates the API server. A nil gatherer leaves /metrics unrouted.
func NewWebClient(addr string, serviceContainer *services.ServiceContainer, gatherer prometheus.Gatherer) *WebClient {
	w := &WebClient{
		services: serviceContainer,
		gatherer: gatherer,
		addr:     addr,
	}
	w.server = &http.Server{
		Addr:              addr,
		Handler:           w.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return w
}

func (w *WebClient) Addr() string {
	return w.addr
}

// Start blocks serving HTTP until Shutdown is called. After Shutdown it
// returns at once.
func (w *WebClient) Start() error {
	slog.Info("Starting web API", "addr", w.addr)
	err := w.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (w *WebClient) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down web API", "addr", w.addr)
	return w.server.Shutdown(ctx)
}

// Routes returns the HTTP routes for the API
func (w *WebClient) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/api/peers", w.HandlePeers)
	r.Get("/api/peers/{id}", w.HandlePeerDetail)
	r.Delete("/api/peers/{id}", w.HandlePeerForget)
	r.Get("/api/peers/{id}/subscriptions", w.HandlePeerSubscriptions)
	r.Post("/api/peers/{id}/ping", w.HandlePeerPing)
	r.Get("/api/events", w.HandleLocalEvents)
	r.Post("/api/events", w.HandleSendEvent)
	r.Get("/api/pairing", w.HandlePairingStatus)
	r.Post("/api/pairing", w.HandleStartPairing)
	r.Get("/api/transport", w.HandleTransport)
	if w.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(w.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}
