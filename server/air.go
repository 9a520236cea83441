package server

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mbocsi/cyberos/proto"
)

var (
	ErrNoAck       = errors.New("no ack from destination")
	ErrRadioClosed = errors.New("radio closed")
)

// Air is an in-process broadcast medium. Every attached radio hears broadcast
// frames; unicast frames reach only the station with the matching address.
type Air struct {
	mu       sync.RWMutex
	stations map[proto.MAC]*AirRadio
}

func NewAir() *Air {
	return &Air{stations: make(map[proto.MAC]*AirRadio)}
}

// Attach creates a radio with the given address. It stays silent until opened.
func (a *Air) Attach(mac proto.MAC) *AirRadio {
	r := &AirRadio{air: a, mac: mac}
	a.mu.Lock()
	a.stations[mac] = r
	a.mu.Unlock()
	return r
}

func (a *Air) detach(mac proto.MAC) {
	a.mu.Lock()
	delete(a.stations, mac)
	a.mu.Unlock()
}

func (a *Air) deliver(src, dst proto.MAC, data []byte) error {
	a.mu.RLock()
	var targets []*AirRadio
	if dst.IsBroadcast() {
		for mac, st := range a.stations {
			if mac != src {
				targets = append(targets, st)
			}
		}
	} else if st, ok := a.stations[dst]; ok {
		targets = append(targets, st)
	}
	a.mu.RUnlock()

	delivered := false
	for _, st := range targets {
		if st.receive(src, data) {
			delivered = true
		}
	}
	if !dst.IsBroadcast() && !delivered {
		return fmt.Errorf("%w: %s", ErrNoAck, dst)
	}
	return nil
}

type AirRadio struct {
	air *Air
	mac proto.MAC

	mu     sync.RWMutex
	open   bool
	onRecv func(src proto.MAC, data []byte, rssi int)
}

func (r *AirRadio) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open = true
	return nil
}

func (r *AirRadio) SetReceiveCallback(fn func(src proto.MAC, data []byte, rssi int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRecv = fn
}

func (r *AirRadio) Transmit(dst proto.MAC, data []byte) error {
	r.mu.RLock()
	open := r.open
	r.mu.RUnlock()
	if !open {
		return ErrRadioClosed
	}
	return r.air.deliver(r.mac, dst, data)
}

func (r *AirRadio) receive(src proto.MAC, data []byte) bool {
	r.mu.RLock()
	open, fn := r.open, r.onRecv
	r.mu.RUnlock()
	if !open || fn == nil {
		return false
	}
	fn(src, append([]byte(nil), data...), -40)
	return true
}

func (r *AirRadio) Address() proto.MAC {
	return r.mac
}

func (r *AirRadio) Close() error {
	r.mu.Lock()
	r.open = false
	r.mu.Unlock()
	r.air.detach(r.mac)
	return nil
}
