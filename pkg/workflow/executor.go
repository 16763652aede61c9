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
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/promptwire/promptwire/internal/log"
	"github.com/promptwire/promptwire/pkg/backend"
)

// MemoryStore is the conversation memory collaborator. All operations are
// keyed by discussion id; the engine holds no search or summarization logic
// of its own.
type MemoryStore interface {
	// AppendAndSummarize stores new turns and returns the refreshed
	// summary.
	AppendAndSummarize(ctx context.Context, discussionID string, turns []backend.Message) (string, error)

	// CurrentSummary returns the stored summary chunks joined as text.
	CurrentSummary(ctx context.Context, discussionID string) (string, error)

	// KeywordSearch returns matching history turns, starting no earlier
	// than lookbackStartTurn. No hits is "", not an error.
	KeywordSearch(ctx context.Context, discussionID, keywords string, lookbackStartTurn int) (string, error)

	// RAGSearch runs a retrieval query over stored history.
	RAGSearch(ctx context.Context, discussionID, query string) (string, error)
}

// ToolInvoker is the tool collaborator: it executes a parsed tool-call
// request and returns the result as text.
type ToolInvoker interface {
	InvokeTool(ctx context.Context, name string, args map[string]any) (string, error)
}

// NodeError reports a failed node with enough identity to find it.
type NodeError struct {
	// Position is the 1-based node index.
	Position int

	// Title is the node's configured title, when set.
	Title string

	// Kind is the node's effective kind.
	Kind Kind

	// Cause is the underlying failure.
	Cause error
}

func (e *NodeError) Error() string {
	name := e.Title
	if name == "" {
		name = string(e.Kind)
	}
	return fmt.Sprintf("node %d (%s) failed: %v", e.Position, name, e.Cause)
}

func (e *NodeError) Unwrap() error {
	return e.Cause
}

// Events carries optional execution hooks, used by the server to feed
// metrics without coupling the engine to a metrics registry.
type Events struct {
	// NodeFinished fires after each node, successful or not.
	NodeFinished func(run *Run, position int, kind Kind, err error, elapsed time.Duration)
}

// DefaultMaxResponseTokens bounds generation when a node sets no limit.
const DefaultMaxResponseTokens = 400

// Executor drives node sequences. Safe for concurrent use: all per-run
// state lives in the Run, and the executor's own fields are read-only after
// construction.
type Executor struct {
	callers map[string]backend.Caller
	presets map[string]map[string]any
	memory  MemoryStore
	tools   ToolInvoker
	router  *Router
	logger  *slog.Logger
	tracer  trace.Tracer
	events  Events
}

// NewExecutor creates an executor over the given endpoint callers, keyed by
// endpoint name.
func NewExecutor(callers map[string]backend.Caller) *Executor {
	return &Executor{
		callers: callers,
		presets: map[string]map[string]any{},
		logger:  slog.Default(),
		tracer:  otel.Tracer("promptwire/workflow"),
	}
}

// WithLogger sets a custom logger.
func (e *Executor) WithLogger(logger *slog.Logger) *Executor {
	e.logger = logger
	return e
}

// WithPresets supplies named sampler parameter sets referenced by nodes.
func (e *Executor) WithPresets(presets map[string]map[string]any) *Executor {
	e.presets = presets
	return e
}

// WithMemory sets the conversation memory collaborator.
func (e *Executor) WithMemory(memory MemoryStore) *Executor {
	e.memory = memory
	return e
}

// WithTools sets the tool collaborator.
func (e *Executor) WithTools(tools ToolInvoker) *Executor {
	e.tools = tools
	return e
}

// WithRouter sets the categorization router and makes its category
// metadata placeholders available to runs.
func (e *Executor) WithRouter(router *Router) *Executor {
	e.router = router
	return e
}

// WithEvents sets the execution hooks.
func (e *Executor) WithEvents(events Events) *Executor {
	e.events = events
	return e
}

// Run executes the definition's nodes strictly in order over the given run
// state and returns the final node's output. An empty final output is a
// valid result. A node error aborts the remaining sequence; outputs of
// completed nodes stay in the run for diagnostics. Cancellation is reported
// as the context's error, never as a node failure, and guarantees no
// further node starts.
func (e *Executor) Run(ctx context.Context, def *Definition, run *Run) (string, error) {
	ctx, span := e.tracer.Start(ctx, "workflow.run",
		trace.WithAttributes(
			attribute.String("workflow", def.Name),
			attribute.Int("nodes", len(def.Nodes)),
		))
	defer span.End()

	logger := e.logger.With(log.RunIDKey, run.ID, log.WorkflowKey, def.Name)
	if e.router != nil {
		e.router.ApplyVariables(run)
	}

	var output string
	for i := range def.Nodes {
		if err := ctx.Err(); err != nil {
			logger.Info("run cancelled", log.NodeKey, i+1)
			return "", err
		}

		node := &def.Nodes[i]
		position := i + 1
		run.NodeIndex = position
		run.setAgentInput(position, node.Prompt)

		start := time.Now()
		result, err := e.executeNode(ctx, node, position, run, logger)
		elapsed := time.Since(start)

		if e.events.NodeFinished != nil {
			e.events.NodeFinished(run, position, node.EffectiveKind(), err, elapsed)
		}

		if err != nil {
			// A context error means the run was cancelled or timed out as
			// a whole, which is not a node failure.
			if ctxErr := ctx.Err(); ctxErr != nil && stderrors.Is(err, ctxErr) {
				logger.Info("run cancelled mid-node", log.NodeKey, position)
				return "", ctxErr
			}
			logger.Error("node failed",
				log.NodeKey, position,
				"kind", string(node.EffectiveKind()),
				"error", err,
			)
			return "", &NodeError{
				Position: position,
				Title:    node.Title,
				Kind:     node.EffectiveKind(),
				Cause:    err,
			}
		}

		run.setAgentOutput(position, result)
		output = result

		logger.Debug("node finished",
			log.NodeKey, position,
			"kind", string(node.EffectiveKind()),
			log.DurationKey, elapsed.Milliseconds(),
			"output_len", len(result),
		)
		logger.Log(ctx, log.LevelTrace, "node output",
			log.NodeKey, position,
			"output", result,
		)
	}

	return output, nil
}

// executeNode resolves a node's templated fields and dispatches by kind.
func (e *Executor) executeNode(ctx context.Context, node *NodeSpec, position int, run *Run, logger *slog.Logger) (string, error) {
	ctx, span := e.tracer.Start(ctx, "workflow.node",
		trace.WithAttributes(
			attribute.Int("position", position),
			attribute.String("kind", string(node.EffectiveKind())),
		))
	defer span.End()

	switch node.EffectiveKind() {
	case KindLLM:
		return e.executeLLM(ctx, node, run, nil)

	case KindImageProcessor:
		return e.executeLLM(ctx, node, run, imagesFrom(run.Turns))

	case KindCategorization:
		return e.executeCategorization(ctx, node, run, logger)

	case KindTagExtractor:
		return ExtractTag(Resolve(node.TagToExtractFrom, run), Resolve(node.FieldToExtract, run)), nil

	case KindKeywordSearch:
		if skip, reason := e.memorySkip(run); skip {
			logger.Debug("keyword search skipped", "reason", reason)
			return "", nil
		}
		return e.memory.KeywordSearch(ctx, run.DiscussionID, Resolve(node.Keywords, run), node.LookbackStartTurn)

	case KindRAGSearch:
		if skip, reason := e.memorySkip(run); skip {
			logger.Debug("rag search skipped", "reason", reason)
			return "", nil
		}
		return e.memory.RAGSearch(ctx, run.DiscussionID, Resolve(node.RagTarget, run))

	case KindMemorySummary:
		if skip, reason := e.memorySkip(run); skip {
			logger.Debug("summary fetch skipped", "reason", reason)
			return "", nil
		}
		return e.memory.CurrentSummary(ctx, run.DiscussionID)

	case KindMemoryUpdate:
		if skip, reason := e.memorySkip(run); skip {
			logger.Debug("memory update skipped", "reason", reason)
			return "", nil
		}
		return e.memory.AppendAndSummarize(ctx, run.DiscussionID, run.Turns)

	case KindToolCall:
		return e.executeToolCall(ctx, node, run, logger)

	default:
		// Unreachable: Validate rejects unknown kinds at load time.
		return "", fmt.Errorf("unhandled node kind %q", node.Kind)
	}
}

// memorySkip reports whether memory operations should be skipped for this
// run. No discussion id means stateless mode; both cases are silent
// successes, not errors.
func (e *Executor) memorySkip(run *Run) (bool, string) {
	if run.DiscussionID == "" {
		return true, "no discussion id"
	}
	if e.memory == nil {
		return true, "no memory store configured"
	}
	return false, ""
}

// imagesFrom collects image attachments across turns.
func imagesFrom(turns []backend.Message) []string {
	var images []string
	for _, turn := range turns {
		images = append(images, turn.Images...)
	}
	return images
}
