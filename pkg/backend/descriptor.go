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

// Package backend normalizes heterogeneous LLM serving APIs behind a single
// request/response contract. Each endpoint is described by a Descriptor that
// names its wire format family and the exact property names its server
// expects; stateless adapters translate the canonical Request into the
// endpoint-specific JSON payload.
package backend

import (
	"strings"
	"time"

	"github.com/promptwire/promptwire/pkg/errors"
)

// Family identifies the wire format an endpoint speaks.
type Family string

const (
	// FamilyChat is for OpenAI-style chat completion APIs that accept a
	// structured message list.
	FamilyChat Family = "chat"

	// FamilyCompletion is for text completion APIs that accept a single
	// flattened prompt string.
	FamilyCompletion Family = "completion"

	// FamilyGenerate is for generation-style APIs (KoboldCpp, Ollama
	// /api/generate) that accept a prompt plus a nested options object.
	FamilyGenerate Family = "generate"
)

// knownFamilies is the closed set of supported wire formats. Descriptors
// naming anything else are rejected at load time.
var knownFamilies = map[Family]bool{
	FamilyChat:       true,
	FamilyCompletion: true,
	FamilyGenerate:   true,
}

// defaultPaths maps each family to its conventional completion path, used
// when a descriptor does not override it.
var defaultPaths = map[Family]string{
	FamilyChat:       "/v1/chat/completions",
	FamilyCompletion: "/v1/completions",
	FamilyGenerate:   "/api/v1/generate",
}

// PromptFormat describes how to flatten a message list into a single prompt
// string for completion-family endpoints. Empty affixes are legal; a fully
// zero PromptFormat produces role-less newline-joined turns.
type PromptFormat struct {
	SystemPrefix    string `yaml:"systemPrefix"`
	SystemSuffix    string `yaml:"systemSuffix"`
	UserPrefix      string `yaml:"userPrefix"`
	UserSuffix      string `yaml:"userSuffix"`
	AssistantPrefix string `yaml:"assistantPrefix"`
	AssistantSuffix string `yaml:"assistantSuffix"`

	// GenerationCue is appended after the last turn to cue the model into
	// responding (typically the assistant prefix).
	GenerationCue string `yaml:"generationCue"`
}

// Descriptor is the static configuration for one backend endpoint. The
// property-name fields make the payload schema explicit: the engine never
// guesses what a server calls its token limit.
type Descriptor struct {
	// Name uniquely identifies the endpoint in workflow definitions.
	Name string `yaml:"name"`

	// Family selects the adapter that builds payloads for this endpoint.
	Family Family `yaml:"apiFamily"`

	// BaseURL is the server root, e.g. "http://localhost:5001".
	BaseURL string `yaml:"baseUrl"`

	// Path overrides the family's default completion path.
	Path string `yaml:"path,omitempty"`

	// ModelName is sent as the payload's model field when non-empty. Local
	// single-model servers typically leave it empty.
	ModelName string `yaml:"modelName,omitempty"`

	// APIKey is sent as a bearer token when non-empty.
	APIKey string `yaml:"apiKey,omitempty"`

	// MaxNewTokensPropertyName is the payload property carrying the token
	// generation limit ("max_tokens", "max_length", "num_predict", ...).
	// Required: there is no safe cross-server default.
	MaxNewTokensPropertyName string `yaml:"maxNewTokensPropertyName"`

	// ContextSizePropertyName, when set, carries the context window size
	// ("truncation_length", "max_context_length", "num_ctx"). Omitted from
	// the payload when empty.
	ContextSizePropertyName string `yaml:"contextSizePropertyName,omitempty"`

	// StreamPropertyName, when set, carries the streaming flag. Omitted
	// from the payload when empty.
	StreamPropertyName string `yaml:"streamPropertyName,omitempty"`

	// ParameterObjectName, when set, nests all generation parameters one
	// level deep under an object of this name ("options" for Ollama)
	// instead of placing them at the payload root.
	ParameterObjectName string `yaml:"parameterObjectName,omitempty"`

	// PromptFormat controls message flattening for the completion and
	// generate families. Ignored for chat.
	PromptFormat PromptFormat `yaml:"promptFormat,omitempty"`

	// Timeout bounds a single completion call. Zero means DefaultTimeout.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// RequestsPerSecond rate-limits calls to this endpoint. Zero disables
	// limiting.
	RequestsPerSecond float64 `yaml:"requestsPerSecond,omitempty"`
}

// DefaultTimeout bounds completion calls when a descriptor does not set one.
// Local generation on large models is slow, so this is deliberately generous.
const DefaultTimeout = 5 * time.Minute

// Validate checks the descriptor for the invariants adapters rely on.
// A descriptor that passes Validate never causes an adapter to guess.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return &errors.ValidationError{
			Field:      "name",
			Message:    "endpoint name is required",
			Suggestion: "give each endpoint a unique name, e.g. 'local-koboldcpp'",
		}
	}

	if !knownFamilies[d.Family] {
		return &errors.ValidationError{
			Field:      "apiFamily",
			Message:    "unknown API family: " + string(d.Family),
			Suggestion: "use one of: chat, completion, generate",
		}
	}

	if d.BaseURL == "" {
		return &errors.ValidationError{
			Field:      "baseUrl",
			Message:    "base URL is required",
			Suggestion: "set the server root, e.g. 'http://localhost:5001'",
		}
	}
	if !strings.HasPrefix(d.BaseURL, "http://") && !strings.HasPrefix(d.BaseURL, "https://") {
		return &errors.ValidationError{
			Field:      "baseUrl",
			Message:    "base URL must start with http:// or https://",
			Suggestion: "got: " + d.BaseURL,
		}
	}

	if d.MaxNewTokensPropertyName == "" {
		return &errors.ConfigError{
			Key:    d.Name + ".maxNewTokensPropertyName",
			Reason: "the payload property name for the token limit is required; servers disagree on it (max_tokens, max_length, num_predict) and there is no safe default",
		}
	}

	if d.Timeout < 0 {
		return &errors.ValidationError{
			Field:   "timeout",
			Message: "timeout must be >= 0",
		}
	}
	if d.RequestsPerSecond < 0 {
		return &errors.ValidationError{
			Field:   "requestsPerSecond",
			Message: "requestsPerSecond must be >= 0",
		}
	}

	return nil
}

// URL returns the full completion endpoint URL, applying the family's
// default path when none is configured.
func (d *Descriptor) URL() string {
	path := d.Path
	if path == "" {
		path = defaultPaths[d.Family]
	}
	return strings.TrimRight(d.BaseURL, "/") + path
}

// EffectiveTimeout returns the configured timeout or DefaultTimeout.
func (d *Descriptor) EffectiveTimeout() time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return DefaultTimeout
}
