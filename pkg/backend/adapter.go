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
	"strings"

	"github.com/promptwire/promptwire/pkg/errors"
	"github.com/promptwire/promptwire/pkg/toolcall"
)

// Adapter translates between the canonical request/response contract and
// one wire format family. Adapters are stateless: all per-endpoint variation
// comes from the Descriptor passed to each call.
type Adapter interface {
	// Family returns the wire format this adapter handles.
	Family() Family

	// BuildPayload produces the JSON-serializable request body for the
	// endpoint described by d.
	BuildPayload(req Request, d *Descriptor) (map[string]any, error)

	// ParseResponse extracts the normalized Response from a raw response
	// body.
	ParseResponse(body []byte, d *Descriptor) (*Response, error)
}

// ForFamily returns the adapter for a wire format family.
func ForFamily(f Family) (Adapter, error) {
	switch f {
	case FamilyChat:
		return chatAdapter{}, nil
	case FamilyCompletion:
		return completionAdapter{}, nil
	case FamilyGenerate:
		return generateAdapter{}, nil
	default:
		return nil, &errors.ValidationError{
			Field:      "apiFamily",
			Message:    "no adapter for API family: " + string(f),
			Suggestion: "use one of: chat, completion, generate",
		}
	}
}

// paramSink returns the map generation parameters are written into: the
// payload root, or a nested object one level deep when the descriptor names
// a parameter object. The nesting never goes deeper than one level.
func paramSink(payload map[string]any, d *Descriptor) map[string]any {
	if d.ParameterObjectName == "" {
		return payload
	}
	sink, ok := payload[d.ParameterObjectName].(map[string]any)
	if !ok {
		sink = map[string]any{}
		payload[d.ParameterObjectName] = sink
	}
	return sink
}

// applyParams writes the generation parameters into the payload using the
// descriptor's property names. Parameters without a configured property name
// are omitted, never defaulted.
func applyParams(payload map[string]any, req Request, d *Descriptor) {
	sink := paramSink(payload, d)

	sink[d.MaxNewTokensPropertyName] = req.Params.MaxNewTokens

	if d.ContextSizePropertyName != "" && req.Params.ContextSize > 0 {
		sink[d.ContextSizePropertyName] = req.Params.ContextSize
	}
	if d.StreamPropertyName != "" {
		sink[d.StreamPropertyName] = req.Params.Stream
	}

	for key, value := range req.Params.Sampler {
		sink[key] = value
	}
}

// flatten renders a message list as a single prompt string using the
// descriptor's turn delimiters, ending with the generation cue.
func flatten(messages []Message, format PromptFormat) string {
	var b strings.Builder

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			b.WriteString(format.SystemPrefix)
			b.WriteString(msg.Content)
			b.WriteString(format.SystemSuffix)
		case RoleAssistant:
			b.WriteString(format.AssistantPrefix)
			b.WriteString(msg.Content)
			b.WriteString(format.AssistantSuffix)
		default:
			b.WriteString(format.UserPrefix)
			b.WriteString(msg.Content)
			b.WriteString(format.UserSuffix)
		}
		if zeroFormat(format) {
			b.WriteString("\n")
		}
	}

	b.WriteString(format.GenerationCue)
	return b.String()
}

// zeroFormat reports whether no delimiters are configured at all, in which
// case turns are separated by bare newlines so they do not run together.
func zeroFormat(f PromptFormat) bool {
	return f.SystemPrefix == "" && f.SystemSuffix == "" &&
		f.UserPrefix == "" && f.UserSuffix == "" &&
		f.AssistantPrefix == "" && f.AssistantSuffix == ""
}

// promptFor returns the flattened prompt for completion-style payloads,
// honoring a verbatim Request.Prompt when set.
func promptFor(req Request, d *Descriptor) string {
	if req.Prompt != "" {
		return req.Prompt
	}
	return flatten(req.Messages, d.PromptFormat)
}

// attachToolCall scans generated text for a structured tool invocation and
// populates the response accordingly.
func attachToolCall(resp *Response) {
	if call, ok := toolcall.Parse(resp.Text); ok {
		resp.ToolCall = call
	}
}
