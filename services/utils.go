package services

import (
	"context"
	"errors"

	"github.com/mbocsi/cyberos/proto"
	"github.com/mbocsi/cyberos/server"
)

// convertPeerInfo converts a registry snapshot to PeerInfo
func convertPeerInfo(p server.PeerInfo) PeerInfo {
	info := PeerInfo{
		ID:            p.ID,
		Paired:        p.Paired,
		Subscriptions: p.Events,
	}
	if p.Paired {
		info.MAC = p.MAC.String()
		info.Channel = p.Channel
	}
	if !p.PairedAt.IsZero() {
		t := p.PairedAt
		info.PairedAt = &t
	}
	if !p.LastSeen.IsZero() {
		t := p.LastSeen
		info.LastSeen = &t
	}
	return info
}

// convertTransportMeta converts transport metadata to TransportInfo
func convertTransportMeta(meta server.TransportMetadata) TransportInfo {
	status := "disconnected"
	if meta.Connected {
		status = "connected"
	}
	return TransportInfo{
		ID:       meta.ID,
		Name:     meta.Name,
		Type:     meta.Protocol,
		Address:  meta.Address,
		Status:   status,
		QueueLen: meta.QueueLen,
		QueueCap: meta.QueueCap,
		Dropped:  meta.Dropped,
	}
}

// validateEvent validates an event name for sending
func validateEvent(event string) error {
	if event == "" {
		return ServiceError{
			Code:    ErrCodeInvalidInput,
			Message: "Event name cannot be empty",
		}
	}
	if event == proto.EventPairingOffer {
		return ServiceError{
			Code:    ErrCodeInvalidInput,
			Message: "Event name is reserved: " + event,
		}
	}
	if len(event) > proto.MaxFieldLen {
		return ServiceError{
			Code:    ErrCodeInvalidInput,
			Message: "Event name too long",
		}
	}
	return nil
}

func encodeArgs(args []string) [][]byte {
	if len(args) == 0 {
		return nil
	}
	out := make([][]byte, len(args))
	for i, a := range args {
		out[i] = []byte(a)
	}
	return out
}

// toServiceError maps runtime errors onto service error codes
func toServiceError(err error, message string) error {
	if err == nil {
		return nil
	}
	code := ErrCodeInternal
	switch {
	case errors.Is(err, server.ErrUnknownPeer):
		code = ErrCodeNotFound
	case errors.Is(err, server.ErrTransport):
		code = ErrCodeTransport
	case errors.Is(err, server.ErrPairingBusy):
		code = ErrCodeBusy
	case errors.Is(err, server.ErrInvalidHandler), errors.Is(err, proto.ErrFieldTooLong):
		code = ErrCodeInvalidInput
	case errors.Is(err, context.DeadlineExceeded):
		code = ErrCodeTimeout
	}
	return ServiceError{Code: code, Message: message, Cause: err}
}
