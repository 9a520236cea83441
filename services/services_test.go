package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mbocsi/cyberos/proto"
	"github.com/mbocsi/cyberos/server"
)

var (
	selfMAC = proto.MAC{0x02, 0, 0, 0, 0, 0x01}
	peerMAC = proto.MAC{0x02, 0, 0, 0, 0, 0x02}
)

// recordingRadio collects whatever reaches the peer's address
type recordingRadio struct {
	mu     sync.Mutex
	frames []proto.Envelope
}

func (r *recordingRadio) record(src proto.MAC, data []byte, rssi int) {
	env, err := proto.Decode(data)
	if err != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, env)
}

func (r *recordingRadio) Frames() []proto.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]proto.Envelope(nil), r.frames...)
}

func setupServices(t *testing.T) (*ServiceContainer, *server.Coordinator, *recordingRadio) {
	t.Helper()
	air := server.NewAir()

	peer := air.Attach(peerMAC)
	rec := &recordingRadio{}
	peer.SetReceiveCallback(rec.record)
	peer.Open()

	coord := server.NewCoordinator("SELF", server.CoordinatorOptions{
		Transport: server.NewRadioTransport(server.RadioConfig{Medium: "air"}, air.Attach(selfMAC)),
		Pairing:   server.PairingConfig{Window: time.Second, Interval: 200 * time.Millisecond},
	})
	if err := coord.Transport().Start(); err != nil {
		t.Fatalf("Failed to start transport: %v", err)
	}
	t.Cleanup(func() { coord.Transport().Shutdown() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewServiceContainer(ctx, coord), coord, rec
}

func expectCode(t *testing.T, err error, code string) {
	t.Helper()
	var se ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("Expected ServiceError with code %s, got %v", code, err)
	}
	if se.Code != code {
		t.Errorf("Expected code %s, got %s (%v)", code, se.Code, err)
	}
}

func TestPeerService(t *testing.T) {
	svc, coord, _ := setupServices(t)
	coord.Registry.SetPaired("PEER", peerMAC, 6)
	coord.Subscribe("PEER", "click", server.FlagHandler(server.NewSignal("click")))

	peers, err := svc.Peer.ListPeers()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(peers) != 1 || peers[0].MAC != peerMAC.String() || peers[0].Channel != 6 || !peers[0].Paired {
		t.Errorf("Unexpected peers %+v", peers)
	}
	if peers[0].PairedAt == nil {
		t.Error("Expected paired_at to be set")
	}

	subs, err := svc.Peer.GetPeerSubscriptions("PEER")
	if err != nil || len(subs) != 1 || subs[0] != "click" {
		t.Errorf("Unexpected subscriptions %v (%v)", subs, err)
	}

	_, err = svc.Peer.GetPeer("GHOST")
	expectCode(t, err, ErrCodeNotFound)

	if err := svc.Peer.ForgetPeer("PEER"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	expectCode(t, svc.Peer.ForgetPeer("PEER"), ErrCodeNotFound)
}

func TestMessagingService_SendEvent(t *testing.T) {
	svc, coord, rec := setupServices(t)
	coord.Registry.SetPaired("PEER", peerMAC, 1)

	if err := svc.Messaging.SendEvent(EventRequest{Peer: "PEER", Event: "led", Args: []string{"on"}}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := svc.Messaging.SendEvent(EventRequest{Event: "led"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	frames := rec.Frames()
	if len(frames) != 2 {
		t.Fatalf("Expected 2 frames at the peer, got %d", len(frames))
	}
	if frames[0].Sender != "SELF" || frames[0].Receiver != "PEER" || string(frames[0].Args[0]) != "on" {
		t.Errorf("Unexpected frame %+v", frames[0])
	}

	expectCode(t, svc.Messaging.SendEvent(EventRequest{Peer: "GHOST", Event: "led"}), ErrCodeNotFound)
	expectCode(t, svc.Messaging.SendEvent(EventRequest{Event: ""}), ErrCodeInvalidInput)
	expectCode(t, svc.Messaging.SendEvent(EventRequest{Event: proto.EventPairingOffer}), ErrCodeInvalidInput)
}

func TestMessagingService_SendTransportFailure(t *testing.T) {
	svc, coord, _ := setupServices(t)
	coord.Registry.SetPaired("AWAY", proto.MAC{0x02, 0, 0, 0, 0, 0x09}, 1)

	expectCode(t, svc.Messaging.SendEvent(EventRequest{Peer: "AWAY", Event: "led"}), ErrCodeTransport)
}

func TestMessagingService_PingTimeout(t *testing.T) {
	svc, coord, rec := setupServices(t)
	coord.Registry.SetPaired("PEER", peerMAC, 1)

	_, err := svc.Messaging.Ping("PEER", 50*time.Millisecond)
	expectCode(t, err, ErrCodeTimeout)

	frames := rec.Frames()
	if len(frames) != 1 || frames[0].Name != proto.EventPing || !frames[0].IsPublic() {
		t.Errorf("Expected one public ping at the peer, got %+v", frames)
	}

	_, err = svc.Messaging.Ping("GHOST", 50*time.Millisecond)
	expectCode(t, err, ErrCodeNotFound)
}

func TestMessagingService_ListLocalEvents(t *testing.T) {
	svc, _, _ := setupServices(t)

	events := svc.Messaging.ListLocalEvents()
	want := map[string]bool{proto.EventPairingOffer: true, proto.EventPing: true, proto.EventPong: true}
	if len(events) != len(want) {
		t.Fatalf("Unexpected events %v", events)
	}
	for _, e := range events {
		if !want[e] {
			t.Errorf("Unexpected event %s", e)
		}
	}
}

func TestPairingService(t *testing.T) {
	svc, _, _ := setupServices(t)

	if got := svc.Pairing.Status().State; got != "idle" {
		t.Errorf("Expected idle, got %s", got)
	}
	if err := svc.Pairing.StartPairing(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	expectCode(t, svc.Pairing.StartPairing(), ErrCodeBusy)

	status := svc.Pairing.Status()
	if status.State != "offering" || status.Device != "SELF" {
		t.Errorf("Unexpected status %+v", status)
	}
}

func TestTransportService(t *testing.T) {
	svc, _, _ := setupServices(t)

	info := svc.Transport.GetTransport()
	if info.Status != "connected" || info.Type != "air" || info.Address != selfMAC.String() {
		t.Errorf("Unexpected transport info %+v", info)
	}
}
