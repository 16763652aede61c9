// Copyright 2026 The Promptwire Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mcp connects workflow tool-call nodes to MCP servers over stdio.
// The manager owns one connection per configured server, discovers each
// server's tools at startup, and routes invocations by tool name.
package mcp

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/promptwire/promptwire/pkg/errors"
)

// ServerConfig describes one MCP server to launch.
type ServerConfig struct {
	// Name uniquely identifies the server.
	Name string `yaml:"name"`

	// Command is the executable to run.
	Command string `yaml:"command"`

	// Args are command-line arguments.
	Args []string `yaml:"args,omitempty"`

	// Env are extra environment variables for the server process.
	Env []string `yaml:"env,omitempty"`

	// Timeout bounds a single tool invocation. Zero means 30s.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// ToolDefinition is a discovered tool's schema.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema []byte
	Server      string
}

// connection is one live server plus its invocation timeout.
type connection struct {
	client  *client.Client
	timeout time.Duration
}

// Manager owns the MCP server connections and implements the engine's tool
// collaborator contract.
type Manager struct {
	logger *slog.Logger

	mu          sync.RWMutex
	connections map[string]*connection
	tools       map[string]ToolDefinition
}

// NewManager launches and initializes the configured servers, then
// discovers their tools. A server that fails to start fails construction;
// a half-connected tool surface would silently drop calls at run time.
func NewManager(ctx context.Context, configs []ServerConfig, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		logger:      logger,
		connections: make(map[string]*connection),
		tools:       make(map[string]ToolDefinition),
	}

	for _, cfg := range configs {
		if err := m.connect(ctx, cfg); err != nil {
			m.Close()
			return nil, err
		}
	}

	return m, nil
}

// connect starts one server over stdio and registers its tools.
func (m *Manager) connect(ctx context.Context, cfg ServerConfig) error {
	if cfg.Name == "" {
		return &errors.ValidationError{Field: "name", Message: "MCP server name is required"}
	}
	if cfg.Command == "" {
		return &errors.ValidationError{
			Field:   cfg.Name + ".command",
			Message: "MCP server command is required",
		}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	mcpClient, err := client.NewStdioMCPClient(cfg.Command, cfg.Env, cfg.Args...)
	if err != nil {
		return errors.Wrapf(err, "creating MCP client for %s", cfg.Name)
	}
	if err := mcpClient.Start(ctx); err != nil {
		return errors.Wrapf(err, "starting MCP server %s", cfg.Name)
	}

	initReq := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo: mcp.Implementation{
				Name:    "promptwire",
				Version: "0.1.0",
			},
		},
	}
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return errors.Wrapf(err, "initializing MCP server %s", cfg.Name)
	}

	m.mu.Lock()
	m.connections[cfg.Name] = &connection{client: mcpClient, timeout: timeout}
	m.mu.Unlock()

	tools, err := m.DiscoverTools(ctx, cfg.Name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	for _, tool := range tools {
		if existing, ok := m.tools[tool.Name]; ok {
			m.logger.Warn("tool name collision, keeping first registration",
				"tool", tool.Name,
				"kept", existing.Server,
				"ignored", cfg.Name,
			)
			continue
		}
		m.tools[tool.Name] = tool
	}
	m.mu.Unlock()

	m.logger.Info("MCP server connected", "server", cfg.Name, "tools", len(tools))
	return nil
}

// DiscoverTools lists the tools one connected server exposes.
func (m *Manager) DiscoverTools(ctx context.Context, serverName string) ([]ToolDefinition, error) {
	m.mu.RLock()
	conn, ok := m.connections[serverName]
	m.mu.RUnlock()
	if !ok {
		return nil, &errors.NotFoundError{Resource: "MCP server", ID: serverName}
	}

	result, err := conn.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, errors.Wrapf(err, "listing tools on %s", serverName)
	}

	tools := make([]ToolDefinition, 0, len(result.Tools))
	for _, tool := range result.Tools {
		tools = append(tools, ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.RawInputSchema,
			Server:      serverName,
		})
	}
	return tools, nil
}

// Tools returns every discovered tool across all servers.
func (m *Manager) Tools() []ToolDefinition {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tools := make([]ToolDefinition, 0, len(m.tools))
	for _, tool := range m.tools {
		tools = append(tools, tool)
	}
	return tools
}

// InvokeTool routes a parsed tool-call request to the server that owns the
// tool and returns the text content of the result. Implements the workflow
// engine's ToolInvoker contract.
func (m *Manager) InvokeTool(ctx context.Context, name string, args map[string]any) (string, error) {
	m.mu.RLock()
	tool, ok := m.tools[name]
	var conn *connection
	if ok {
		conn = m.connections[tool.Server]
	}
	m.mu.RUnlock()

	if !ok || conn == nil {
		return "", &errors.NotFoundError{Resource: "tool", ID: name}
	}

	ctx, cancel := context.WithTimeout(ctx, conn.timeout)
	defer cancel()

	result, err := conn.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return "", errors.Wrapf(err, "invoking tool %s on %s", name, tool.Server)
	}

	var parts []string
	for _, content := range result.Content {
		if text, ok := mcp.AsTextContent(content); ok {
			parts = append(parts, text.Text)
		}
	}
	text := strings.Join(parts, "\n")

	if result.IsError {
		return "", &errors.BackendError{
			Endpoint: tool.Server,
			Message:  "tool " + name + " reported an error: " + text,
		}
	}
	return text, nil
}

// Close shuts down all server connections.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, conn := range m.connections {
		if err := conn.client.Close(); err != nil {
			m.logger.Warn("closing MCP server", "server", name, "error", err)
		}
	}
	m.connections = make(map[string]*connection)
	m.tools = make(map[string]ToolDefinition)
}
