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
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/promptwire/promptwire/pkg/backend"
)

// Run is the mutable per-invocation state: the caller's conversation turns,
// the variable namespace nodes read and write, and the transcript of node
// outputs. A Run is exclusively owned by the single goroutine executing it
// and must never be shared across concurrent workflow runs.
type Run struct {
	// ID correlates log lines and spans for one execution.
	ID string

	// DiscussionID scopes memory operations. Empty means stateless mode:
	// memory nodes skip and return "".
	DiscussionID string

	// Turns is the caller-supplied conversation, oldest first.
	Turns []backend.Message

	// NodeIndex is the 1-based position of the node currently executing.
	NodeIndex int

	// Transcript collects each node's output in order, for diagnostics.
	// Outputs of nodes that ran before a failure are retained.
	Transcript []string

	// Category is set by a categorization node once routing has resolved.
	Category *Category

	vars map[string]string
}

// RunOption configures a new Run.
type RunOption func(*Run)

// WithDiscussionID scopes the run's memory operations to a conversation.
func WithDiscussionID(id string) RunOption {
	return func(r *Run) { r.DiscussionID = id }
}

// WithVariable seeds a caller-supplied variable before execution starts.
func WithVariable(name, value string) RunOption {
	return func(r *Run) { r.vars[name] = value }
}

// NewRun creates the state for one workflow execution over the given turns.
func NewRun(turns []backend.Message, opts ...RunOption) *Run {
	r := &Run{
		ID:    uuid.NewString(),
		Turns: turns,
		vars:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Variable returns the current value of a variable in the run's namespace.
func (r *Run) Variable(name string) (string, bool) {
	v, ok := r.vars[name]
	return v, ok
}

// SetVariable binds a variable in the run's namespace.
func (r *Run) SetVariable(name, value string) {
	r.vars[name] = value
}

// setAgentOutput records node output under its positional variable and in
// the transcript. Positions are 1-based and assigned monotonically.
func (r *Run) setAgentOutput(position int, output string) {
	r.vars[fmt.Sprintf("agent%dOutput", position)] = output
	r.Transcript = append(r.Transcript, output)
}

// setAgentInput exposes a node's own pre-substitution prompt text, for
// kinds that want to see it.
func (r *Run) setAgentInput(position int, input string) {
	r.vars[fmt.Sprintf("agent%dInput", position)] = input
}

// systemPrompt returns the content of the first system turn, or "".
func (r *Run) systemPrompt() string {
	for _, turn := range r.Turns {
		if turn.Role == backend.RoleSystem {
			return turn.Content
		}
	}
	return ""
}

// lastTurnsPrompt renders the last n non-system turns as role-prefixed
// lines, oldest first. Backs the chat_user_prompt_last_{N} placeholders.
func (r *Run) lastTurnsPrompt(n int) string {
	if n <= 0 {
		return ""
	}

	var turns []backend.Message
	for _, turn := range r.Turns {
		if turn.Role != backend.RoleSystem {
			turns = append(turns, turn)
		}
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}

	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		lines = append(lines, string(turn.Role)+": "+turn.Content)
	}
	return strings.Join(lines, "\n")
}

// lastTurns returns the last n non-system turns as raw messages, for nodes
// that send conversation history instead of a templated prompt.
func (r *Run) lastTurns(n int) []backend.Message {
	var turns []backend.Message
	for _, turn := range r.Turns {
		if turn.Role != backend.RoleSystem {
			turns = append(turns, turn)
		}
	}
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return turns
}
