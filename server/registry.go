package server

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mbocsi/cyberos/proto"
)

var ErrInvalidHandler = errors.New("invalid handler")

// PeerInfo is a snapshot of a registry record. Handlers are not exposed.
type PeerInfo struct {
	ID       string
	MAC      proto.MAC
	Channel  uint8
	Paired   bool
	Events   []string
	PairedAt time.Time
	LastSeen time.Time
}

type peerRecord struct {
	mac      proto.MAC
	channel  uint8
	paired   bool
	pairedAt time.Time
	lastSeen time.Time
	subs     map[string]Handler
}

func (p *peerRecord) info(id string) PeerInfo {
	events := make([]string, 0, len(p.subs))
	for name := range p.subs {
		events = append(events, name)
	}
	slices.Sort(events)
	return PeerInfo{
		ID:       id,
		MAC:      p.mac,
		Channel:  p.channel,
		Paired:   p.paired,
		Events:   events,
		PairedAt: p.pairedAt,
		LastSeen: p.lastSeen,
	}
}

// PeerRegistry maps peer ids to their hardware address and private subscriptions.
// A peer is paired once its hardware address is stored.
type PeerRegistry struct {
	mu    sync.RWMutex
	store map[string]*peerRecord
}

func NewPeerRegistry() *PeerRegistry {
	return &PeerRegistry{store: make(map[string]*peerRecord)}
}

func (r *PeerRegistry) record(id string) *peerRecord {
	rec, ok := r.store[id]
	if !ok {
		rec = &peerRecord{subs: make(map[string]Handler)}
		r.store[id] = rec
	}
	return rec
}

// Subscribe binds a handler to (peer, event), replacing any previous one.
// The peer record is created if missing.
func (r *PeerRegistry) Subscribe(peerID, event string, h Handler) error {
	if peerID == "" || event == "" || !h.valid() {
		return ErrInvalidHandler
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(peerID).subs[event] = h
	return nil
}

// Unsubscribe removes one handler. An empty event removes the whole peer
// record, hardware address included.
func (r *PeerRegistry) Unsubscribe(peerID, event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.store[peerID]
	if !ok {
		return false
	}
	if event == "" {
		delete(r.store, peerID)
		return true
	}
	if _, ok := rec.subs[event]; !ok {
		return false
	}
	delete(rec.subs, event)
	return true
}

// Forget drops everything known about the peer.
func (r *PeerRegistry) Forget(peerID string) bool {
	return r.Unsubscribe(peerID, "")
}

func (r *PeerRegistry) Known(peerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.store[peerID]
	return ok
}

func (r *PeerRegistry) IsPaired(peerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.store[peerID]
	return ok && rec.paired
}

// SetPaired stores the peer's hardware address. It reports whether anything changed.
func (r *PeerRegistry) SetPaired(peerID string, mac proto.MAC, channel uint8) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.record(peerID)
	if rec.paired && rec.mac == mac && rec.channel == channel {
		return false
	}
	rec.mac = mac
	rec.channel = channel
	rec.paired = true
	rec.pairedAt = time.Now()
	return true
}

// Lookup returns the handler for (peer, event) if the peer is paired.
func (r *PeerRegistry) Lookup(peerID, event string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.store[peerID]
	if !ok || !rec.paired {
		return Handler{}, false
	}
	h, ok := rec.subs[event]
	return h, ok
}

func (r *PeerRegistry) Touch(peerID string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.store[peerID]; ok {
		rec.lastSeen = at
	}
}

func (r *PeerRegistry) Get(peerID string) (PeerInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.store[peerID]
	if !ok {
		return PeerInfo{}, false
	}
	return rec.info(peerID), true
}

// List returns every record sorted by id.
func (r *PeerRegistry) List() []PeerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]PeerInfo, 0, len(r.store))
	for id, rec := range r.store {
		peers = append(peers, rec.info(id))
	}
	slices.SortFunc(peers, func(a, b PeerInfo) int {
		return strings.Compare(a.ID, b.ID)
	})
	return peers
}

func (r *PeerRegistry) PairedPeers() []PeerInfo {
	all := r.List()
	paired := all[:0]
	for _, p := range all {
		if p.Paired {
			paired = append(paired, p)
		}
	}
	return paired
}

// Restore marks previously persisted peers as paired without touching subscriptions.
func (r *PeerRegistry) Restore(peers []PeerInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range peers {
		if p.ID == "" {
			continue
		}
		rec := r.record(p.ID)
		rec.mac = p.MAC
		rec.channel = p.Channel
		rec.paired = true
		rec.pairedAt = p.PairedAt
	}
}
