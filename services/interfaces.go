package services

import (
	"time"
)

// PeerService handles paired peer operations
type PeerService interface {
	ListPeers() ([]PeerInfo, error)
	GetPeer(id string) (*PeerInfo, error)
	ForgetPeer(id string) error
	GetPeerSubscriptions(id string) ([]string, error)
}

// MessagingService sends events to peers
type MessagingService interface {
	// An empty peer sends to every paired peer
	SendEvent(req EventRequest) error
	Ping(peer string, timeout time.Duration) (time.Duration, error)
	ListLocalEvents() []string
}

// PairingService drives the pairing state machine
type PairingService interface {
	StartPairing() error
	Status() PairingStatus
}

// TransportService handles radio information
type TransportService interface {
	GetTransport() TransportInfo
}

// ServiceContainer holds all service implementations
type ServiceContainer struct {
	Peer      PeerService
	Messaging MessagingService
	Pairing   PairingService
	Transport TransportService
}
