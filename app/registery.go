package app

import (
	"log/slog"

	"github.com/mbocsi/cyberos/proto"
	"github.com/mbocsi/cyberos/server"
	"github.com/mbocsi/cyberos/settings"
)

// restorePeers marks every stored peer as paired again.
func restorePeers(store *settings.Store, registry *server.PeerRegistry) error {
	recs, err := store.LoadPeers()
	if err != nil {
		return err
	}
	peers := make([]server.PeerInfo, 0, len(recs))
	for _, rec := range recs {
		mac, err := proto.ParseMAC(rec.MAC)
		if err != nil {
			slog.Warn("Skipping stored peer with bad address", "peer", rec.Label, "mac", rec.MAC, "error", err)
			continue
		}
		peers = append(peers, server.PeerInfo{ID: rec.Label, MAC: mac, Channel: rec.Channel})
	}
	registry.Restore(peers)
	slog.Info("Restored paired peers", "count", len(peers))
	return nil
}

// peerRecords snapshots the paired peers in their stored form.
func peerRecords(registry *server.PeerRegistry) []settings.PeerRecord {
	paired := registry.PairedPeers()
	recs := make([]settings.PeerRecord, 0, len(paired))
	for _, p := range paired {
		recs = append(recs, settings.PeerRecord{
			Label:   p.ID,
			MAC:     p.MAC.String(),
			Channel: p.Channel,
		})
	}
	return recs
}
