package services

import (
	"context"

	"github.com/mbocsi/cyberos/server"
)

// NewServiceContainer builds every service over one coordinator
func NewServiceContainer(ctx context.Context, coordinator *server.Coordinator) *ServiceContainer {
	return &ServiceContainer{
		Peer:      NewPeerService(coordinator),
		Messaging: NewMessagingService(coordinator),
		Pairing:   NewPairingService(ctx, coordinator),
		Transport: NewTransportService(coordinator.Transport()),
	}
}
