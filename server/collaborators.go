package server

import (
	"context"

	"github.com/mbocsi/cyberos/proto"
)

// Network is the device's connectivity: a station uplink and a local
// broadcast interface (access point). Calls return once the interface has
// reached the requested state.
type Network interface {
	StationConnected() bool
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	BroadcastActive() bool
	SetBroadcast(ctx context.Context, on bool) error
	Channel() uint8
	StationMAC() proto.MAC
}

// Persister accepts save requests without blocking. Repeated requests
// before the write happens collapse into one.
type Persister interface {
	RequestSavePeers()
	RequestSavePreferences()
}
