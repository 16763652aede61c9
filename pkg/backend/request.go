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

package backend

import (
	"github.com/promptwire/promptwire/pkg/toolcall"
)

// Role identifies the sender of a message.
type Role string

const (
	// RoleSystem indicates instructions or context for the model.
	RoleSystem Role = "system"

	// RoleUser indicates a message from the end user.
	RoleUser Role = "user"

	// RoleAssistant indicates a message from the model.
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation in canonical form.
type Message struct {
	// Role indicates who sent this message.
	Role Role

	// Content is the text content.
	Content string

	// Images holds base64-encoded image payloads attached to this turn.
	// Only multimodal endpoints consume them; adapters for text-only
	// families drop them silently.
	Images []string
}

// Params carries generation parameters in canonical form. Adapters map
// them onto the endpoint's property names; a parameter whose property name
// is not configured on the descriptor is omitted from the payload entirely.
type Params struct {
	// MaxNewTokens limits response length. Always sent; every descriptor
	// is required to name the property for it.
	MaxNewTokens int

	// ContextSize is the context window size. Sent only when the
	// descriptor names a property for it.
	ContextSize int

	// Stream requests incremental delivery. Sent only when the descriptor
	// names a property for it.
	Stream bool

	// Sampler holds pass-through sampling parameters (temperature, top_p,
	// repetition penalties) already keyed by the endpoint's own property
	// names. Loaded from preset files; the engine never interprets them.
	Sampler map[string]any
}

// Request is the canonical completion request handed to an adapter.
type Request struct {
	// Messages is the resolved conversation to send. Completion and
	// generate adapters flatten it using the descriptor's PromptFormat.
	Messages []Message

	// Prompt, when non-empty, bypasses flattening: it is sent verbatim as
	// the prompt for completion-family endpoints. Ignored for chat.
	Prompt string

	// Model overrides the descriptor's ModelName for this request.
	Model string

	// Params carries the generation parameters.
	Params Params
}

// modelFor returns the model name to place in the payload, preferring the
// per-request override. Empty means the field is omitted.
func (r *Request) modelFor(d *Descriptor) string {
	if r.Model != "" {
		return r.Model
	}
	return d.ModelName
}

// Response is the normalized result of a completion call.
type Response struct {
	// Text is the generated text. Empty is a valid result.
	Text string

	// ToolCall is set when the generated text contains a structured tool
	// invocation request.
	ToolCall *toolcall.Call

	// Model is the model the server reports having used, when available.
	Model string

	// PromptTokens and CompletionTokens are usage counts when the server
	// reports them, zero otherwise.
	PromptTokens     int
	CompletionTokens int
}
