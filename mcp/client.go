package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mbocsi/cyberos/services"
)

const defaultPingTimeout = 2 * time.Second

// MCPClient exposes the device's management operations as MCP tools
type MCPClient struct {
	mcpServer *MCPServer
	services  *services.ServiceContainer
}

func NewMCPClient(serviceContainer *services.ServiceContainer, mcpServer *MCPServer) *MCPClient {
	client := &MCPClient{
		services:  serviceContainer,
		mcpServer: mcpServer,
	}
	client.registerPeerTools()
	client.registerMessagingTools()
	client.registerSystemTools()
	return client
}

func (m *MCPClient) Start() error {
	return m.mcpServer.Start()
}

func (m *MCPClient) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down MCP client")
	return m.mcpServer.Shutdown(ctx)
}

func (m *MCPClient) registerPeerTools() {
	listPeersTool := mcp.NewTool("list_peers",
		mcp.WithDescription("List known peer devices with their pairing state and subscriptions"),
		mcp.WithBoolean("paired_only",
			mcp.Description("Only include paired peers"),
		),
	)
	m.mcpServer.AddTool(listPeersTool, m.handleListPeers)

	forgetPeerTool := mcp.NewTool("forget_peer",
		mcp.WithDescription("Unpair a peer and drop everything known about it"),
		mcp.WithString("peer",
			mcp.Required(),
			mcp.Description("Peer device name, e.g. BUTTON-02AD9A-YYG"),
		),
	)
	m.mcpServer.AddTool(forgetPeerTool, m.handleForgetPeer)
}

func (m *MCPClient) registerMessagingTools() {
	sendEventTool := mcp.NewTool("send_event",
		mcp.WithDescription("Send a named event to one paired peer, or to every paired peer when peer is omitted"),
		mcp.WithString("event",
			mcp.Required(),
			mcp.Description("Event name"),
		),
		mcp.WithString("peer",
			mcp.Description("Target peer device name"),
		),
		mcp.WithArray("args",
			mcp.Description("Positional string arguments"),
			mcp.Items(map[string]any{"type": "string"}),
		),
	)
	m.mcpServer.AddTool(sendEventTool, m.handleSendEvent)

	pingTool := mcp.NewTool("ping_peer",
		mcp.WithDescription("Measure the round trip time to a paired peer"),
		mcp.WithString("peer",
			mcp.Required(),
			mcp.Description("Target peer device name"),
		),
		mcp.WithNumber("timeout",
			mcp.Description("Timeout in seconds"),
		),
	)
	m.mcpServer.AddTool(pingTool, m.handlePingPeer)
}

func (m *MCPClient) registerSystemTools() {
	startPairingTool := mcp.NewTool("start_pairing",
		mcp.WithDescription("Open a pairing window, as if the pairing button gesture was made"),
	)
	m.mcpServer.AddTool(startPairingTool, m.handleStartPairing)

	pairingStatusTool := mcp.NewTool("pairing_status",
		mcp.WithDescription("Get the pairing state and the number of paired peers"),
	)
	m.mcpServer.AddTool(pairingStatusTool, m.handlePairingStatus)

	statusTool := mcp.NewTool("get_system_status",
		mcp.WithDescription("Get device identity, pairing state, radio statistics and local events"),
	)
	m.mcpServer.AddTool(statusTool, m.handleGetSystemStatus)
}

func (m *MCPClient) handleListPeers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pairedOnly := request.GetBool("paired_only", false)

	peers, err := m.services.Peer.ListPeers()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error listing peers: %v", err)), nil
	}
	if pairedOnly {
		filtered := peers[:0]
		for _, p := range peers {
			if p.Paired {
				filtered = append(filtered, p)
			}
		}
		peers = filtered
	}

	return jsonResult(map[string]interface{}{
		"peers": peers,
		"count": len(peers),
	})
}

func (m *MCPClient) handleForgetPeer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	peer, err := request.RequireString("peer")
	if err != nil {
		return mcp.NewToolResultError("peer is required and must be a string"), nil
	}
	if err := m.services.Peer.ForgetPeer(peer); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Forgot %s", peer)), nil
}

func (m *MCPClient) handleSendEvent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	event, err := request.RequireString("event")
	if err != nil {
		return mcp.NewToolResultError("event is required and must be a string"), nil
	}
	req := services.EventRequest{
		Peer:  request.GetString("peer", ""),
		Event: event,
		Args:  request.GetStringSlice("args", nil),
	}
	if err := m.services.Messaging.SendEvent(req); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	target := req.Peer
	if target == "" {
		target = "all paired peers"
	}
	return mcp.NewToolResultText(fmt.Sprintf("Sent %s to %s", event, target)), nil
}

func (m *MCPClient) handlePingPeer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	peer, err := request.RequireString("peer")
	if err != nil {
		return mcp.NewToolResultError("peer is required and must be a string"), nil
	}
	timeout := defaultPingTimeout
	if secs := request.GetFloat("timeout", 0); secs > 0 {
		timeout = time.Duration(secs * float64(time.Second))
	}

	rtt, err := m.services.Messaging.Ping(peer, timeout)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]interface{}{
		"peer":   peer,
		"rtt_ms": float64(rtt) / float64(time.Millisecond),
	})
}

func (m *MCPClient) handleStartPairing(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := m.services.Pairing.StartPairing(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(m.services.Pairing.Status())
}

func (m *MCPClient) handlePairingStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(m.services.Pairing.Status())
}

func (m *MCPClient) handleGetSystemStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]interface{}{
		"pairing":      m.services.Pairing.Status(),
		"transport":    m.services.Transport.GetTransport(),
		"local_events": m.services.Messaging.ListLocalEvents(),
	})
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	resultBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(resultBytes)), nil
}
