package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPServer serves tools over stdio until Shutdown
type MCPServer struct {
	Server *server.MCPServer

	in     io.Reader
	out    io.Writer
	ctx    context.Context
	cancel context.CancelFunc
}

func NewMCPServer(name, version string) *MCPServer {
	ctx, cancel := context.WithCancel(context.Background())
	return &MCPServer{
		Server: server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
		in:     os.Stdin,
		out:    os.Stdout,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *MCPServer) AddTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.Server.AddTool(tool, handler)
}

func (s *MCPServer) Start() error {
	slog.Info("Started stdio MCP server")
	defer func() {
		slog.Info("Shut down stdio MCP server")
	}()
	err := server.NewStdioServer(s.Server).Listen(s.ctx, s.in, s.out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *MCPServer) Shutdown(ctx context.Context) error {
	s.cancel()
	return nil
}
