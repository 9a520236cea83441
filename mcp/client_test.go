package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mbocsi/cyberos/services"
)

type MockPeerService struct {
	mu        sync.Mutex
	peers     []services.PeerInfo
	forgotten []string
}

func (m *MockPeerService) ListPeers() ([]services.PeerInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]services.PeerInfo(nil), m.peers...), nil
}

func (m *MockPeerService) GetPeer(id string) (*services.PeerInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.peers {
		if p.ID == id {
			p := p
			return &p, nil
		}
	}
	return nil, services.ServiceError{Code: services.ErrCodeNotFound, Message: "Peer not found: " + id}
}

func (m *MockPeerService) ForgetPeer(id string) error {
	if _, err := m.GetPeer(id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forgotten = append(m.forgotten, id)
	return nil
}

func (m *MockPeerService) GetPeerSubscriptions(id string) ([]string, error) {
	p, err := m.GetPeer(id)
	if err != nil {
		return nil, err
	}
	return p.Subscriptions, nil
}

type MockMessagingService struct {
	mu      sync.Mutex
	sent    []services.EventRequest
	timeout time.Duration
}

func (m *MockMessagingService) SendEvent(req services.EventRequest) error {
	if req.Event == "ping" {
		return services.ServiceError{Code: services.ErrCodeInvalidInput, Message: "Reserved event name: ping"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, req)
	return nil
}

func (m *MockMessagingService) Ping(peer string, timeout time.Duration) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
	return 3 * time.Millisecond, nil
}

func (m *MockMessagingService) ListLocalEvents() []string {
	return []string{"ch-change"}
}

type MockPairingService struct {
	mu    sync.Mutex
	state string
}

func (m *MockPairingService) StartPairing() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == "offering" {
		return services.ServiceError{Code: services.ErrCodeBusy, Message: "Cannot start pairing"}
	}
	m.state = "offering"
	return nil
}

func (m *MockPairingService) Status() services.PairingStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return services.PairingStatus{Device: "CYBERWARE-0A1B2C-RGB", State: m.state}
}

type MockTransportService struct{}

func (MockTransportService) GetTransport() services.TransportInfo {
	return services.TransportInfo{ID: "radio", Type: "air", Status: "connected"}
}

func newTestClient() (*MCPClient, *MockPeerService, *MockMessagingService) {
	peers := &MockPeerService{peers: []services.PeerInfo{
		{ID: "BUTTON-02AD9A-YYG", Paired: true},
		{ID: "LAMP-0000AA-RRR", Paired: false},
	}}
	messaging := &MockMessagingService{}
	client := NewMCPClient(&services.ServiceContainer{
		Peer:      peers,
		Messaging: messaging,
		Pairing:   &MockPairingService{state: "idle"},
		Transport: MockTransportService{},
	}, NewMCPServer("test", "0.0.0"))
	return client, peers, messaging
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatalf("Expected tool result content")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("Expected text content, got %T", res.Content[0])
	}
	return text.Text
}

func TestMCPClient_ListPeers(t *testing.T) {
	client, _, _ := newTestClient()

	res, err := client.handleListPeers(context.Background(), callRequest("list_peers", nil))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	var out struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatalf("Expected JSON result: %v", err)
	}
	if out.Count != 2 {
		t.Errorf("Expected 2 peers, got %d", out.Count)
	}

	res, _ = client.handleListPeers(context.Background(), callRequest("list_peers", map[string]any{"paired_only": true}))
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatalf("Expected JSON result: %v", err)
	}
	if out.Count != 1 {
		t.Errorf("Expected 1 paired peer, got %d", out.Count)
	}
}

func TestMCPClient_SendEvent(t *testing.T) {
	client, _, messaging := newTestClient()

	res, err := client.handleSendEvent(context.Background(), callRequest("send_event", map[string]any{
		"event": "led",
		"peer":  "BUTTON-02AD9A-YYG",
		"args":  []any{"on", "50"},
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.IsError {
		t.Fatalf("Expected success, got %s", resultText(t, res))
	}
	if len(messaging.sent) != 1 {
		t.Fatalf("Expected 1 sent event, got %d", len(messaging.sent))
	}
	sent := messaging.sent[0]
	if sent.Peer != "BUTTON-02AD9A-YYG" || len(sent.Args) != 2 || sent.Args[1] != "50" {
		t.Errorf("Unexpected event request: %+v", sent)
	}

	res, _ = client.handleSendEvent(context.Background(), callRequest("send_event", map[string]any{"event": "led"}))
	if !strings.Contains(resultText(t, res), "all paired peers") {
		t.Errorf("Expected broadcast wording, got %q", resultText(t, res))
	}

	res, _ = client.handleSendEvent(context.Background(), callRequest("send_event", map[string]any{}))
	if !res.IsError {
		t.Error("Expected error result without event")
	}

	res, _ = client.handleSendEvent(context.Background(), callRequest("send_event", map[string]any{"event": "ping"}))
	if !res.IsError {
		t.Error("Expected error result for reserved event")
	}
}

func TestMCPClient_PingAndForget(t *testing.T) {
	client, peers, messaging := newTestClient()

	res, _ := client.handlePingPeer(context.Background(), callRequest("ping_peer", map[string]any{
		"peer":    "BUTTON-02AD9A-YYG",
		"timeout": 0.5,
	}))
	if res.IsError {
		t.Fatalf("Expected success, got %s", resultText(t, res))
	}
	if messaging.timeout != 500*time.Millisecond {
		t.Errorf("Expected 500ms timeout, got %v", messaging.timeout)
	}
	if !strings.Contains(resultText(t, res), `"rtt_ms":3`) {
		t.Errorf("Expected rtt in result, got %s", resultText(t, res))
	}

	res, _ = client.handleForgetPeer(context.Background(), callRequest("forget_peer", map[string]any{"peer": "NOPE"}))
	if !res.IsError {
		t.Error("Expected error forgetting unknown peer")
	}
	res, _ = client.handleForgetPeer(context.Background(), callRequest("forget_peer", map[string]any{"peer": "LAMP-0000AA-RRR"}))
	if res.IsError || len(peers.forgotten) != 1 {
		t.Errorf("Expected forget to succeed, got %s", resultText(t, res))
	}
}

func TestMCPClient_Pairing(t *testing.T) {
	client, _, _ := newTestClient()

	res, _ := client.handleStartPairing(context.Background(), callRequest("start_pairing", nil))
	if res.IsError || !strings.Contains(resultText(t, res), `"state":"offering"`) {
		t.Errorf("Expected offering status, got %s", resultText(t, res))
	}

	res, _ = client.handleStartPairing(context.Background(), callRequest("start_pairing", nil))
	if !res.IsError {
		t.Error("Expected busy error on second trigger")
	}

	res, _ = client.handlePairingStatus(context.Background(), callRequest("pairing_status", nil))
	if !strings.Contains(resultText(t, res), `"device":"CYBERWARE-0A1B2C-RGB"`) {
		t.Errorf("Unexpected pairing status: %s", resultText(t, res))
	}

	res, _ = client.handleGetSystemStatus(context.Background(), callRequest("get_system_status", nil))
	text := resultText(t, res)
	if !strings.Contains(text, `"local_events":["ch-change"]`) || !strings.Contains(text, `"type":"air"`) {
		t.Errorf("Unexpected status: %s", text)
	}
}
