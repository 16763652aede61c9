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

package workflow

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/promptwire/promptwire/pkg/backend"
	"github.com/promptwire/promptwire/pkg/errors"
	"github.com/promptwire/promptwire/pkg/toolcall"
)

// buildRequest assembles the backend request for an LLM-style node: either
// the last N raw conversation turns, or a system+user message pair from the
// node's resolved prompts.
func (e *Executor) buildRequest(node *NodeSpec, run *Run, images []string) backend.Request {
	var messages []backend.Message

	if node.LastMessagesToSendInsteadOfPrompt > 0 {
		// Raw history mode overrides the prompt field entirely.
		if system := run.systemPrompt(); system != "" {
			messages = append(messages, backend.Message{Role: backend.RoleSystem, Content: system})
		}
		messages = append(messages, run.lastTurns(node.LastMessagesToSendInsteadOfPrompt)...)
	} else {
		if node.SystemPrompt != "" {
			messages = append(messages, backend.Message{
				Role:    backend.RoleSystem,
				Content: Resolve(node.SystemPrompt, run),
			})
		}
		messages = append(messages, backend.Message{
			Role:    backend.RoleUser,
			Content: Resolve(node.Prompt, run),
		})
	}

	if len(images) > 0 && len(messages) > 0 {
		messages[len(messages)-1].Images = images
	}

	maxTokens := node.MaxResponseSizeInTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxResponseTokens
	}

	return backend.Request{
		Messages: messages,
		Params: backend.Params{
			MaxNewTokens: maxTokens,
			Sampler:      e.presets[node.Preset],
		},
	}
}

// endpointsFor returns the node's target endpoints in configured order.
func endpointsFor(node *NodeSpec) []string {
	if len(node.Endpoints) > 0 {
		return node.Endpoints
	}
	return []string{node.EndpointName}
}

// executeLLM runs a completion node, fanning out across the node's
// endpoint list when more than one is configured.
func (e *Executor) executeLLM(ctx context.Context, node *NodeSpec, run *Run, images []string) (string, error) {
	req := e.buildRequest(node, run, images)
	endpoints := endpointsFor(node)

	if len(endpoints) == 1 {
		resp, err := e.call(ctx, endpoints[0], req)
		if err != nil {
			return "", err
		}
		return resp.Text, nil
	}

	return e.fanOut(ctx, node, endpoints, req)
}

// fanOut calls all endpoints concurrently, blocks for every result, then
// merges deterministically by endpoint list order. "First success" means
// first in the list, never first to finish.
func (e *Executor) fanOut(ctx context.Context, node *NodeSpec, endpoints []string, req backend.Request) (string, error) {
	results := make([]string, len(endpoints))
	failures := make([]error, len(endpoints))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, name := range endpoints {
		group.Go(func() error {
			resp, err := e.call(groupCtx, name, req)
			if err != nil {
				failures[i] = err
				// Under concat every endpoint must succeed; fail the
				// group early. Under first_success failures are merged
				// later.
				if node.MergePolicy == MergeConcat {
					return err
				}
				return nil
			}
			results[i] = resp.Text
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch node.MergePolicy {
	case MergeConcat:
		return strings.Join(results, "\n\n"), nil
	default:
		for i := range endpoints {
			if failures[i] == nil {
				return results[i], nil
			}
		}
		return "", failures[0]
	}
}

// call resolves an endpoint name to its caller and invokes it.
func (e *Executor) call(ctx context.Context, endpoint string, req backend.Request) (*backend.Response, error) {
	caller, ok := e.callers[endpoint]
	if !ok {
		return nil, &errors.NotFoundError{Resource: "endpoint", ID: endpoint}
	}
	return caller.Call(ctx, req)
}

// executeCategorization runs the node as a normal completion and feeds the
// raw output to the router before the next node runs. The node's own output
// stays the raw model text; the routing decision lands on the run.
func (e *Executor) executeCategorization(ctx context.Context, node *NodeSpec, run *Run, logger *slog.Logger) (string, error) {
	output, err := e.executeLLM(ctx, node, run, nil)
	if err != nil {
		return "", err
	}

	if e.router == nil {
		return output, nil
	}

	category, err := e.router.Route(ctx, output, func(ctx context.Context) (string, error) {
		logger.Debug("category did not match, re-prompting", "output", strings.TrimSpace(output))
		return e.executeLLM(ctx, node, run, nil)
	})
	if err != nil {
		return "", err
	}

	run.Category = &category
	run.SetVariable("category", category.Name)
	return output, nil
}

// executeToolCall scans the node's resolved input for a structured tool
// request and hands it to the tool collaborator. No call present is an
// ordinary empty result.
func (e *Executor) executeToolCall(ctx context.Context, node *NodeSpec, run *Run, logger *slog.Logger) (string, error) {
	input := Resolve(node.ToolInput, run)

	call, ok := toolcall.Parse(input)
	if !ok {
		logger.Debug("no tool call present in node input")
		return "", nil
	}
	if e.tools == nil {
		logger.Warn("tool call requested but no tool collaborator configured", "tool", call.Name)
		return "", nil
	}

	return e.tools.InvokeTool(ctx, call.Name, call.Arguments)
}
