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

// Package toolcall recognizes structured tool-call requests embedded in
// model output text. Models signal a call by emitting a marker block:
//
//	[TOOL_REQUEST]{"name": "search", "arguments": {"query": "weather"}}[END_TOOL_REQUEST]
//
// A fenced ```json block containing a {"name": ..., "arguments": ...}
// object is accepted as an alternative form. Anything else is "no call
// present", which is an ordinary outcome, not an error.
package toolcall

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Call is a parsed tool invocation request.
type Call struct {
	// Name is the tool to invoke.
	Name string `json:"name"`

	// Arguments holds the decoded argument object.
	Arguments map[string]any `json:"arguments"`
}

var (
	markerPattern = regexp.MustCompile(`(?s)\[TOOL_REQUEST\](.*?)\[END_TOOL_REQUEST\]`)
	fencePattern  = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
)

// envelope mirrors the JSON shape models emit for calls.
type envelope struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Parse scans model output for the first tool-call request.
// Returns (nil, false) when no call is present. Malformed JSON inside a
// marker block is treated as no call; models frequently emit bracket
// syntax in prose and that must never fail a workflow node.
func Parse(text string) (*Call, bool) {
	if m := markerPattern.FindStringSubmatch(text); m != nil {
		if call, ok := decode(m[1]); ok {
			return call, true
		}
	}

	if m := fencePattern.FindStringSubmatch(text); m != nil {
		if call, ok := decode(m[1]); ok {
			return call, true
		}
	}

	return nil, false
}

// decode parses one candidate JSON object into a Call.
func decode(raw string) (*Call, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, false
	}
	if env.Name == "" {
		return nil, false
	}

	call := &Call{Name: env.Name, Arguments: map[string]any{}}
	if len(env.Arguments) > 0 {
		// Arguments may arrive as an object or as a JSON-encoded string of one.
		if err := json.Unmarshal(env.Arguments, &call.Arguments); err != nil {
			var nested string
			if err := json.Unmarshal(env.Arguments, &nested); err != nil {
				return nil, false
			}
			if err := json.Unmarshal([]byte(nested), &call.Arguments); err != nil {
				return nil, false
			}
		}
	}

	return call, true
}

// Strip removes the first tool-call marker block from text, returning the
// remaining prose. Used when a response mixes narration with a call.
func Strip(text string) string {
	out := markerPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(out)
}
