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

// Package config loads the Promptwire configuration directory: the main
// config file, endpoint descriptors and workflow definitions, with a
// watcher that reloads on change. Everything is validated at load time;
// a config that loads is safe to run.
package config

import (
	"time"

	"github.com/promptwire/promptwire/internal/mcp"
	"github.com/promptwire/promptwire/pkg/workflow"
)

// ServerConfig configures the HTTP front door.
type ServerConfig struct {
	// Addr is the listen address. Default ":8765".
	Addr string `yaml:"addr,omitempty"`

	// ShutdownTimeout bounds graceful shutdown. Default 10s.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout,omitempty"`
}

// MemoryConfig configures the conversation memory store.
type MemoryConfig struct {
	// Path is the sqlite database file. Empty disables memory.
	Path string `yaml:"path,omitempty"`

	// SummaryEndpoint names the endpoint used to produce rolling
	// summaries. Empty stores turns without summarizing.
	SummaryEndpoint string `yaml:"summaryEndpoint,omitempty"`
}

// RoutingConfig configures categorization routing.
type RoutingConfig struct {
	// Workflow names the categorization workflow run before the routed
	// workflow. Empty disables routing.
	Workflow string `yaml:"workflow,omitempty"`

	// Categories is the closed category set.
	Categories []workflow.Category `yaml:"categories,omitempty"`

	// DefaultCategory is the fallback label.
	DefaultCategory string `yaml:"defaultCategory,omitempty"`

	// MaxRetries bounds re-prompting when the model's category matches
	// nothing. Nil means one retry.
	MaxRetries *int `yaml:"maxRetries,omitempty"`
}

// Config is the main configuration file (config.yaml).
type Config struct {
	Server  ServerConfig  `yaml:"server,omitempty"`
	Memory  MemoryConfig  `yaml:"memory,omitempty"`
	Routing RoutingConfig `yaml:"routing,omitempty"`

	// MCPServers lists tool servers to launch.
	MCPServers []mcp.ServerConfig `yaml:"mcpServers,omitempty"`

	// Presets are named sampler parameter sets, keyed by preset name,
	// passed through to backends untouched.
	Presets map[string]map[string]any `yaml:"presets,omitempty"`

	// DefaultWorkflow runs when routing is disabled or not applicable.
	DefaultWorkflow string `yaml:"defaultWorkflow"`
}

// applyDefaults fills zero values with working defaults.
func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8765"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
}

// RouterRetries returns the configured retry count with the default of one.
func (c *Config) RouterRetries() int {
	if c.Routing.MaxRetries == nil {
		return 1
	}
	return *c.Routing.MaxRetries
}
