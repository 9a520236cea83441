package services

import (
	"context"
	"fmt"
	"time"

	"github.com/mbocsi/cyberos/server"
)

const defaultPingTimeout = 2 * time.Second

// MessagingServiceImpl implements MessagingService
type MessagingServiceImpl struct {
	coordinator *server.Coordinator
	sendTimeout time.Duration
}

// NewMessagingService creates a new messaging service
func NewMessagingService(coordinator *server.Coordinator) MessagingService {
	return &MessagingServiceImpl{
		coordinator: coordinator,
		sendTimeout: 5 * time.Second,
	}
}

// SendEvent sends a private event to one peer or every paired peer
func (ms *MessagingServiceImpl) SendEvent(req EventRequest) error {
	if err := validateEvent(req.Event); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), ms.sendTimeout)
	defer cancel()

	err := ms.coordinator.Listener.Send(ctx, req.Event, encodeArgs(req.Args), req.Peer)
	if err != nil {
		target := req.Peer
		if target == "" {
			target = "paired peers"
		}
		return toServiceError(err, fmt.Sprintf("Failed to send %s to %s", req.Event, target))
	}
	return nil
}

// Ping sends a ping and waits for the pong
func (ms *MessagingServiceImpl) Ping(peer string, timeout time.Duration) (time.Duration, error) {
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	rtt, err := ms.coordinator.Heartbeat.RoundTrip(ctx, peer)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ServiceError{
				Code:    ErrCodeTimeout,
				Message: fmt.Sprintf("Ping timeout after %v", timeout),
			}
		}
		return 0, toServiceError(err, "Failed to ping "+peer)
	}
	return rtt, nil
}

// ListLocalEvents returns the public events this device declares
func (ms *MessagingServiceImpl) ListLocalEvents() []string {
	return ms.coordinator.Events.Names()
}
