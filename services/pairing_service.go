package services

import (
	"context"

	"github.com/mbocsi/cyberos/server"
)

// PairingServiceImpl implements PairingService
type PairingServiceImpl struct {
	coordinator *server.Coordinator
	ctx         context.Context
}

// NewPairingService creates a new pairing service. Sessions it starts are
// bound to ctx rather than to a single request.
func NewPairingService(ctx context.Context, coordinator *server.Coordinator) PairingService {
	return &PairingServiceImpl{coordinator: coordinator, ctx: ctx}
}

func (ps *PairingServiceImpl) StartPairing() error {
	if err := ps.coordinator.Pairing.Trigger(ps.ctx); err != nil {
		return toServiceError(err, "Cannot start pairing")
	}
	return nil
}

func (ps *PairingServiceImpl) Status() PairingStatus {
	return PairingStatus{
		Device:      ps.coordinator.Listener.ID(),
		State:       ps.coordinator.Pairing.State().String(),
		PairedPeers: len(ps.coordinator.Registry.PairedPeers()),
	}
}
