package airhub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mbocsi/cyberos/proto"
	"github.com/mbocsi/cyberos/server"
)

var (
	macA = proto.MAC{0x02, 0, 0, 0, 0, 0x0a}
	macB = proto.MAC{0x02, 0, 0, 0, 0, 0x0b}
	macC = proto.MAC{0x02, 0, 0, 0, 0, 0x0c}
)

func startTestHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub("")
	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
}

func startTransport(t *testing.T, url string, mac proto.MAC) *server.RadioTransport {
	t.Helper()
	tr := server.NewRadioTransport(server.RadioConfig{Medium: "airhub"}, NewWSRadio(url, mac))
	if err := tr.Start(); err != nil {
		t.Fatalf("Failed to start transport: %v", err)
	}
	t.Cleanup(func() { tr.Shutdown() })
	return tr
}

func waitStations(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(hub.Stations()) == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Expected %d stations, got %d", n, len(hub.Stations()))
}

func receive(t *testing.T, tr *server.RadioTransport) server.Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	f, err := tr.Receive(ctx)
	if err != nil {
		t.Fatalf("Expected a frame: %v", err)
	}
	return f
}

func TestHub_RelaysBroadcastAndUnicast(t *testing.T) {
	hub, url := startTestHub(t)
	a := startTransport(t, url, macA)
	b := startTransport(t, url, macB)
	c := startTransport(t, url, macC)
	waitStations(t, hub, 3)

	if err := a.Send(proto.BroadcastMAC, []byte("offer")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for _, tr := range []*server.RadioTransport{b, c} {
		f := receive(t, tr)
		if f.Addr != macA || string(f.Data) != "offer" {
			t.Errorf("Unexpected broadcast frame %+v", f)
		}
	}

	if err := a.Send(macC, []byte("private")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	f := receive(t, c)
	if f.Addr != macA || string(f.Data) != "private" {
		t.Errorf("Unexpected unicast frame %+v", f)
	}

	time.Sleep(50 * time.Millisecond)
	if a.Meta().QueueLen != 0 || b.Meta().QueueLen != 0 {
		t.Error("Expected unicast to reach only the addressee and no echo to the sender")
	}

	for _, st := range hub.Stations() {
		if !strings.HasPrefix(st.ID, "air-") {
			t.Errorf("Expected uuid based station id, got %s", st.ID)
		}
	}
}

func TestHub_RejectsBadAddress(t *testing.T) {
	_, url := startTestHub(t)

	cases := []string{"", "?mac=nope", "?mac=FF:FF:FF:FF:FF:FF", "?mac=00:00:00:00:00:00"}
	for _, q := range cases {
		_, resp, err := websocket.DefaultDialer.Dial(url+q, nil)
		if err == nil {
			t.Errorf("%q: expected dial to fail", q)
			continue
		}
		if resp == nil || resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%q: expected 400", q)
		}
	}
}

func TestHub_RejectsDuplicateAddress(t *testing.T) {
	hub, url := startTestHub(t)
	startTransport(t, url, macA)
	waitStations(t, hub, 1)

	err := NewWSRadio(url, macA).Open()
	if err == nil {
		t.Error("Expected second station with the same address to be rejected")
	}
}

func TestHub_StationLeaves(t *testing.T) {
	hub, url := startTestHub(t)
	a := startTransport(t, url, macA)
	waitStations(t, hub, 1)

	a.Shutdown()
	waitStations(t, hub, 0)
}

func TestWSRadio_NotConnected(t *testing.T) {
	r := NewWSRadio("ws://127.0.0.1:1/", macA)

	if err := r.Transmit(macB, []byte("x")); err != ErrNotConnected {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Expected close of unopened radio to succeed, got %v", err)
	}
}
