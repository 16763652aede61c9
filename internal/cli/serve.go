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

package cli

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/promptwire/promptwire/internal/config"
	"github.com/promptwire/promptwire/internal/mcp"
	"github.com/promptwire/promptwire/internal/memory"
	"github.com/promptwire/promptwire/internal/server"
	"github.com/promptwire/promptwire/pkg/backend"
	"github.com/promptwire/promptwire/pkg/errors"
)

func newServeCommand(configDir *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the middleware server",
		Long: `Serve loads the configuration directory, connects the configured
collaborators (conversation memory, MCP tool servers), and listens for
OpenAI-compatible chat completion requests. The configuration directory
is watched; edits swap in a fresh runtime without dropping in-flight
requests.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(resolveConfigDir(*configDir), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")

	return cmd
}

func runServe(configDir, addrOverride string) error {
	logger := slog.Default()

	bundle, err := config.Load(configDir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := buildCollaborators(ctx, bundle, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	m, registry := server.NewMetrics()
	deps.Events = m.ExecutorEvents()

	rt, err := server.NewRuntime(bundle, deps)
	if err != nil {
		return err
	}

	addr := bundle.Config.Server.Addr
	if addrOverride != "" {
		addr = addrOverride
	}

	srv := server.New(addr, rt, m, logger, bundle.Config.Server.ShutdownTimeout).
		WithMetricsHandler(registry)

	watcher, err := config.NewWatcher(configDir, func(fresh *config.Bundle) {
		next, err := server.NewRuntime(fresh, deps)
		if err != nil {
			logger.Error("reload produced unusable runtime, keeping current", "error", err)
			return
		}
		srv.SwapRuntime(next)
	}, logger)
	if err != nil {
		logger.Warn("config watching disabled", "error", err)
	} else {
		go watcher.Run(ctx)
	}

	return srv.Serve(ctx)
}

// buildCollaborators connects the optional memory store and MCP tool
// servers. The returned cleanup closes whatever was opened.
func buildCollaborators(ctx context.Context, bundle *config.Bundle, logger *slog.Logger) (server.RuntimeDeps, func(), error) {
	deps := server.RuntimeDeps{Logger: logger}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if path := bundle.Config.Memory.Path; path != "" {
		var summarizer memory.Summarizer
		if name := bundle.Config.Memory.SummaryEndpoint; name != "" {
			client, err := backend.NewClient(bundle.Endpoints[name], logger)
			if err != nil {
				return deps, cleanup, errors.Wrapf(err, "building summary client %s", name)
			}
			summarizer = memory.NewLLMSummarizer(client)
		}

		store, err := memory.Open(path, summarizer, logger)
		if err != nil {
			cleanup()
			return deps, func() {}, err
		}
		closers = append(closers, func() { store.Close() })
		deps.Memory = store
	}

	if len(bundle.Config.MCPServers) > 0 {
		manager, err := mcp.NewManager(ctx, bundle.Config.MCPServers, logger)
		if err != nil {
			cleanup()
			return deps, func() {}, err
		}
		closers = append(closers, manager.Close)
		deps.Tools = manager
	}

	return deps, cleanup, nil
}
