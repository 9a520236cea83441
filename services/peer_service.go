package services

import (
	"github.com/mbocsi/cyberos/server"
)

// PeerServiceImpl implements PeerService
type PeerServiceImpl struct {
	coordinator *server.Coordinator
}

// NewPeerService creates a new peer service
func NewPeerService(coordinator *server.Coordinator) PeerService {
	return &PeerServiceImpl{coordinator: coordinator}
}

// ListPeers returns every known peer, paired or not
func (ps *PeerServiceImpl) ListPeers() ([]PeerInfo, error) {
	peers := ps.coordinator.Registry.List()
	result := make([]PeerInfo, 0, len(peers))
	for _, p := range peers {
		result = append(result, convertPeerInfo(p))
	}
	return result, nil
}

// GetPeer returns a specific peer by ID
func (ps *PeerServiceImpl) GetPeer(id string) (*PeerInfo, error) {
	p, exists := ps.coordinator.Registry.Get(id)
	if !exists {
		return nil, ServiceError{
			Code:    ErrCodeNotFound,
			Message: "Peer not found: " + id,
		}
	}
	info := convertPeerInfo(p)
	return &info, nil
}

// ForgetPeer unpairs a peer and drops its subscriptions
func (ps *PeerServiceImpl) ForgetPeer(id string) error {
	if !ps.coordinator.Forget(id) {
		return ServiceError{
			Code:    ErrCodeNotFound,
			Message: "Peer not found: " + id,
		}
	}
	return nil
}

// GetPeerSubscriptions returns the events subscribed for a peer
func (ps *PeerServiceImpl) GetPeerSubscriptions(id string) ([]string, error) {
	p, exists := ps.coordinator.Registry.Get(id)
	if !exists {
		return nil, ServiceError{
			Code:    ErrCodeNotFound,
			Message: "Peer not found: " + id,
		}
	}
	return p.Events, nil
}
