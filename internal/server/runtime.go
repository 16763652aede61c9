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

package server

import (
	"context"
	"log/slog"

	"github.com/promptwire/promptwire/internal/config"
	"github.com/promptwire/promptwire/pkg/backend"
	"github.com/promptwire/promptwire/pkg/errors"
	"github.com/promptwire/promptwire/pkg/workflow"
)

// Runtime is everything derived from one configuration bundle: endpoint
// callers, the executor, the router, and the workflow set. It is immutable;
// a config reload builds a fresh Runtime and the server swaps it in.
type Runtime struct {
	executor        *workflow.Executor
	router          *workflow.Router
	workflows       map[string]*workflow.Definition
	routingWorkflow string
	defaultWorkflow string
}

// RuntimeDeps are the collaborators shared across reloads.
type RuntimeDeps struct {
	Memory workflow.MemoryStore
	Tools  workflow.ToolInvoker
	Logger *slog.Logger
	Events workflow.Events
}

// NewRuntime assembles a Runtime from a validated bundle.
func NewRuntime(bundle *config.Bundle, deps RuntimeDeps) (*Runtime, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	callers := make(map[string]backend.Caller, len(bundle.Endpoints))
	for name, descriptor := range bundle.Endpoints {
		client, err := backend.NewClient(descriptor, deps.Logger)
		if err != nil {
			return nil, errors.Wrapf(err, "building client for endpoint %s", name)
		}
		callers[name] = client
	}

	executor := workflow.NewExecutor(callers).
		WithLogger(deps.Logger).
		WithPresets(bundle.Config.Presets).
		WithEvents(deps.Events)
	if deps.Memory != nil {
		executor = executor.WithMemory(deps.Memory)
	}
	if deps.Tools != nil {
		executor = executor.WithTools(deps.Tools)
	}

	rt := &Runtime{
		executor:        executor,
		workflows:       bundle.Workflows,
		defaultWorkflow: bundle.Config.DefaultWorkflow,
	}

	if routing := bundle.Config.Routing; routing.Workflow != "" {
		router, err := workflow.NewRouter(routing.Categories, routing.DefaultCategory, bundle.Config.RouterRetries())
		if err != nil {
			return nil, err
		}
		executor.WithRouter(router)
		rt.router = router
		rt.routingWorkflow = routing.Workflow
	}

	return rt, nil
}

// Executor exposes the underlying engine for callers that bypass routing,
// such as the one-shot CLI with a pinned workflow.
func (rt *Runtime) Executor() *workflow.Executor {
	return rt.executor
}

// Execute runs the full pipeline for one conversation turn: the routing
// workflow first when configured, then the selected (or default) workflow.
func (rt *Runtime) Execute(ctx context.Context, turns []backend.Message, discussionID string) (string, error) {
	target := rt.defaultWorkflow

	if rt.router != nil {
		routingDef := rt.workflows[rt.routingWorkflow]
		routingRun := workflow.NewRun(turns, workflow.WithDiscussionID(discussionID))

		if _, err := rt.executor.Run(ctx, routingDef, routingRun); err != nil {
			return "", err
		}
		if routingRun.Category != nil {
			target = routingRun.Category.Workflow
		}
	}

	def, ok := rt.workflows[target]
	if !ok {
		return "", &errors.NotFoundError{Resource: "workflow", ID: target}
	}

	run := workflow.NewRun(turns, workflow.WithDiscussionID(discussionID))
	return rt.executor.Run(ctx, def, run)
}
