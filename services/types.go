package services

import (
	"time"
)

// PeerInfo represents a peer for the service layer
type PeerInfo struct {
	ID            string     `json:"id"`
	MAC           string     `json:"mac,omitempty"`
	Channel       uint8      `json:"channel,omitempty"`
	Paired        bool       `json:"paired"`
	Subscriptions []string   `json:"subscriptions"`
	PairedAt      *time.Time `json:"paired_at,omitempty"`
	LastSeen      *time.Time `json:"last_seen,omitempty"`
}

// EventRequest is an event to send; args are sent as UTF-8 bytes
type EventRequest struct {
	Peer  string   `json:"peer,omitempty"`
	Event string   `json:"event"`
	Args  []string `json:"args,omitempty"`
}

type PairingStatus struct {
	Device      string `json:"device"`
	State       string `json:"state"`
	PairedPeers int    `json:"paired_peers"`
}

// TransportInfo represents radio transport information
type TransportInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Address  string `json:"address"`
	Status   string `json:"status"`
	QueueLen int    `json:"queue_len"`
	QueueCap int    `json:"queue_cap"`
	Dropped  uint64 `json:"dropped"`
}

// ServiceError represents structured service layer errors
type ServiceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"cause,omitempty"`
}

func (e ServiceError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e ServiceError) Unwrap() error {
	return e.Cause
}

// Common error codes
const (
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeTimeout      = "TIMEOUT"
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeBusy         = "BUSY"
	ErrCodeTransport    = "TRANSPORT_FAILURE"
)
