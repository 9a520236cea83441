package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mbocsi/cyberos/services"
)

func (w *WebClient) HandlePeers(wr http.ResponseWriter, r *http.Request) {
	peers, err := w.services.Peer.ListPeers()
	if err != nil {
		w.handleError(wr, err)
		return
	}
	writeJSON(wr, http.StatusOK, map[string]interface{}{
		"peers": peers,
		"count": len(peers),
	})
}

func (w *WebClient) HandlePeerDetail(wr http.ResponseWriter, r *http.Request) {
	peer, err := w.services.Peer.GetPeer(chi.URLParam(r, "id"))
	if err != nil {
		w.handleError(wr, err)
		return
	}
	writeJSON(wr, http.StatusOK, peer)
}

// HandlePeerForget unpairs a peer and drops its record
func (w *WebClient) HandlePeerForget(wr http.ResponseWriter, r *http.Request) {
	if err := w.services.Peer.ForgetPeer(chi.URLParam(r, "id")); err != nil {
		w.handleError(wr, err)
		return
	}
	wr.WriteHeader(http.StatusNoContent)
}

func (w *WebClient) HandlePeerSubscriptions(wr http.ResponseWriter, r *http.Request) {
	subs, err := w.services.Peer.GetPeerSubscriptions(chi.URLParam(r, "id"))
	if err != nil {
		w.handleError(wr, err)
		return
	}
	writeJSON(wr, http.StatusOK, map[string]interface{}{"subscriptions": subs})
}

// HandlePeerPing measures one ping/pong round trip. ?timeout=500ms overrides the default.
func (w *WebClient) HandlePeerPing(wr http.ResponseWriter, r *http.Request) {
	timeout := DefaultPingTimeout
	if raw := r.URL.Query().Get("timeout"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			w.handleError(wr, services.ServiceError{Code: services.ErrCodeInvalidInput, Message: "invalid timeout", Cause: err})
			return
		}
		timeout = d
	}

	rtt, err := w.services.Messaging.Ping(chi.URLParam(r, "id"), timeout)
	if err != nil {
		w.handleError(wr, err)
		return
	}
	writeJSON(wr, http.StatusOK, map[string]interface{}{
		"rtt_ms": float64(rtt) / float64(time.Millisecond),
	})
}

func (w *WebClient) HandleLocalEvents(wr http.ResponseWriter, r *http.Request) {
	writeJSON(wr, http.StatusOK, map[string]interface{}{"events": w.services.Messaging.ListLocalEvents()})
}

// HandleSendEvent sends an event to one peer, or to all paired peers when peer is empty
func (w *WebClient) HandleSendEvent(wr http.ResponseWriter, r *http.Request) {
	var req services.EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.handleError(wr, services.ServiceError{Code: services.ErrCodeInvalidInput, Message: "invalid request body", Cause: err})
		return
	}

	if err := w.services.Messaging.SendEvent(req); err != nil {
		w.handleError(wr, err)
		return
	}
	writeJSON(wr, http.StatusAccepted, map[string]string{"status": "sent", "event": req.Event})
}

func (w *WebClient) HandlePairingStatus(wr http.ResponseWriter, r *http.Request) {
	writeJSON(wr, http.StatusOK, w.services.Pairing.Status())
}

func (w *WebClient) HandleStartPairing(wr http.ResponseWriter, r *http.Request) {
	if err := w.services.Pairing.StartPairing(); err != nil {
		w.handleError(wr, err)
		return
	}
	writeJSON(wr, http.StatusAccepted, w.services.Pairing.Status())
}

func (w *WebClient) HandleTransport(wr http.ResponseWriter, r *http.Request) {
	writeJSON(wr, http.StatusOK, w.services.Transport.GetTransport())
}

func writeJSON(wr http.ResponseWriter, status int, v interface{}) {
	wr.Header().Set("Content-Type", "application/json")
	wr.WriteHeader(status)
	if err := json.NewEncoder(wr).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// handleError handles service errors with proper HTTP status codes
func (w *WebClient) handleError(wr http.ResponseWriter, err error) {
	var serviceErr services.ServiceError
	if !errors.As(err, &serviceErr) {
		slog.Error("Service error", "error", err)
		writeJSON(wr, http.StatusInternalServerError, map[string]string{
			"code":    services.ErrCodeInternal,
			"message": "Internal server error",
		})
		return
	}

	status := http.StatusInternalServerError
	switch serviceErr.Code {
	case services.ErrCodeNotFound:
		status = http.StatusNotFound
	case services.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	case services.ErrCodeTimeout:
		status = http.StatusGatewayTimeout
	case services.ErrCodeBusy:
		status = http.StatusConflict
	case services.ErrCodeTransport:
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		slog.Error("Service error", "error", err)
	} else {
		slog.Debug("Request rejected", "code", serviceErr.Code, "error", err)
	}

	writeJSON(wr, status, map[string]string{
		"code":    serviceErr.Code,
		"message": serviceErr.Error(),
	})
}
