package server

import (
	"context"
	"errors"

	"github.com/mbocsi/cyberos/proto"
)

var ErrTransportClosed = errors.New("transport closed")

// Frame is one raw datagram as seen by the radio.
type Frame struct {
	Addr proto.MAC // source on receive, destination on send
	Data []byte
	RSSI int
}

// Transport delivers raw frames to and from the radio medium. Receive must
// only be called from a single goroutine.
type Transport interface {
	Start() error
	Receive(ctx context.Context) (Frame, error)
	Send(addr proto.MAC, data []byte) error
	Shutdown() error
	Meta() TransportMetadata
	SetName(name string)
	SetDescription(description string)
}

type TransportMetadata struct {
	ID          string
	Name        string // Human-friendly name, e.g., "ESP-NOW radio"
	Protocol    string // Medium name, e.g., "air", "airhub"
	Address     string // Local hardware address
	Description string // Optional, short purpose/use case

	Connected bool
	QueueLen  int
	QueueCap  int
	Dropped   uint64
}
