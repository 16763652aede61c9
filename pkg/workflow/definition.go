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

// Package workflow implements the execution engine: ordered node pipelines
// with variable binding between nodes, a closed set of node kinds, and
// categorization-based routing between workflow definitions.
package workflow

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/promptwire/promptwire/pkg/errors"
)

// Kind discriminates node behavior. The set is closed: definitions naming
// any other kind are rejected at load time, never treated as the default.
type Kind string

const (
	// KindLLM is a standard completion call. It is the default when a node
	// declares no type.
	KindLLM Kind = "llm"

	// KindTagExtractor extracts the first <tag>...</tag> match from a
	// resolved field.
	KindTagExtractor Kind = "tagExtractor"

	// KindKeywordSearch searches conversation history for keywords via the
	// memory collaborator.
	KindKeywordSearch Kind = "keywordSearch"

	// KindRAGSearch runs a retrieval query against the memory collaborator.
	KindRAGSearch Kind = "ragSearch"

	// KindMemorySummary fetches the current conversation summary.
	KindMemorySummary Kind = "memorySummary"

	// KindMemoryUpdate appends the run's turns to memory and refreshes the
	// summary.
	KindMemoryUpdate Kind = "memoryUpdate"

	// KindImageProcessor is an LLM call that forwards image attachments
	// from the conversation as a multimodal request.
	KindImageProcessor Kind = "imageProcessor"

	// KindCategorization is an LLM call whose raw output additionally
	// feeds the router before the next node runs.
	KindCategorization Kind = "categorization"

	// KindToolCall parses a tool invocation out of a resolved field and
	// hands it to the tool collaborator.
	KindToolCall Kind = "toolCall"
)

// knownKinds is the registry backing load-time validation.
var knownKinds = map[Kind]bool{
	KindLLM:            true,
	KindTagExtractor:   true,
	KindKeywordSearch:  true,
	KindRAGSearch:      true,
	KindMemorySummary:  true,
	KindMemoryUpdate:   true,
	KindImageProcessor: true,
	KindCategorization: true,
	KindToolCall:       true,
}

// MergePolicy selects how a fan-out node combines results from multiple
// endpoints.
type MergePolicy string

const (
	// MergeFirstSuccess picks the first successful result in endpoint list
	// order. Deterministic: list order decides, not finishing order.
	MergeFirstSuccess MergePolicy = "first_success"

	// MergeConcat joins all results in endpoint list order. Every endpoint
	// must succeed.
	MergeConcat MergePolicy = "concat"
)

// NodeSpec configures one node of a workflow. Fields marked templated are
// resolved against the run's variable namespace before the node executes.
type NodeSpec struct {
	// Title names the node in logs and errors.
	Title string `yaml:"title,omitempty"`

	// Kind discriminates behavior. Empty means KindLLM.
	Kind Kind `yaml:"type,omitempty"`

	// SystemPrompt and Prompt are the templated completion inputs for
	// LLM-style kinds.
	SystemPrompt string `yaml:"systemPrompt,omitempty"`
	Prompt       string `yaml:"prompt,omitempty"`

	// LastMessagesToSendInsteadOfPrompt, when > 0, sends the last N raw
	// conversation turns and ignores Prompt entirely.
	LastMessagesToSendInsteadOfPrompt int `yaml:"lastMessagesToSendInsteadOfPrompt,omitempty"`

	// EndpointName selects the backend for LLM-style kinds.
	EndpointName string `yaml:"endpointName,omitempty"`

	// Endpoints fans the call out across several backends. When set it
	// takes precedence over EndpointName and MergePolicy is required.
	Endpoints   []string    `yaml:"endpoints,omitempty"`
	MergePolicy MergePolicy `yaml:"mergePolicy,omitempty"`

	// Preset names the sampler parameter set to send.
	Preset string `yaml:"preset,omitempty"`

	// MaxResponseSizeInTokens bounds generation length. Zero means the
	// engine default.
	MaxResponseSizeInTokens int `yaml:"maxResponseSizeInTokens,omitempty"`

	// TagToExtractFrom (templated) and FieldToExtract (templated) drive
	// the tag extractor kind.
	TagToExtractFrom string `yaml:"tagToExtractFrom,omitempty"`
	FieldToExtract   string `yaml:"fieldToExtract,omitempty"`

	// Keywords (templated) drives keyword search.
	Keywords string `yaml:"keywords,omitempty"`

	// RagTarget (templated) drives RAG search.
	RagTarget string `yaml:"ragTarget,omitempty"`

	// LookbackStartTurn bounds how far back keyword search reaches.
	LookbackStartTurn int `yaml:"lookbackStartTurn,omitempty"`

	// ToolInput (templated) is the text scanned for a tool-call request by
	// the tool call kind, typically a prior node's output.
	ToolInput string `yaml:"toolInput,omitempty"`
}

// EffectiveKind returns the node's kind with the default applied.
func (n *NodeSpec) EffectiveKind() Kind {
	if n.Kind == "" {
		return KindLLM
	}
	return n.Kind
}

// templatedFields returns every field that is resolved before dispatch,
// including fields only used for routing logic.
func (n *NodeSpec) templatedFields() []string {
	return []string{
		n.SystemPrompt,
		n.Prompt,
		n.TagToExtractFrom,
		n.FieldToExtract,
		n.Keywords,
		n.RagTarget,
		n.ToolInput,
	}
}

// Definition is an immutable ordered node sequence. Loaded once, shared
// read-only across concurrent runs.
type Definition struct {
	// Name identifies the workflow in routing config and logs.
	Name string `yaml:"name,omitempty"`

	// Nodes run strictly in order.
	Nodes []NodeSpec `yaml:"nodes"`
}

// Parse decodes a YAML definition and validates it. A definition that
// parses is safe to execute: unknown kinds, missing kind-specific fields
// and forward variable references are all rejected here, not at run time.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, errors.Wrap(err, "parsing workflow definition")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks structural invariants the executor relies on.
func (d *Definition) Validate() error {
	if len(d.Nodes) == 0 {
		return &errors.ValidationError{
			Field:      "nodes",
			Message:    "workflow has no nodes",
			Suggestion: "define at least one node",
		}
	}

	for i := range d.Nodes {
		node := &d.Nodes[i]
		position := i + 1

		if err := validateKind(node, position); err != nil {
			return err
		}
		if err := validateReferences(node, position); err != nil {
			return err
		}
	}

	return nil
}

// validateKind checks the discriminator and the kind-specific required
// fields.
func validateKind(node *NodeSpec, position int) error {
	if node.Kind != "" && !knownKinds[node.Kind] {
		return &errors.ValidationError{
			Field:      nodeField(position, "type"),
			Message:    "unknown node kind: " + string(node.Kind),
			Suggestion: "known kinds: llm, tagExtractor, keywordSearch, ragSearch, memorySummary, memoryUpdate, imageProcessor, categorization, toolCall",
		}
	}

	switch node.EffectiveKind() {
	case KindLLM, KindImageProcessor, KindCategorization:
		if node.EndpointName == "" && len(node.Endpoints) == 0 {
			return &errors.ValidationError{
				Field:   nodeField(position, "endpointName"),
				Message: "LLM node needs an endpoint",
			}
		}
		if len(node.Endpoints) > 1 && node.MergePolicy == "" {
			return &errors.ValidationError{
				Field:      nodeField(position, "mergePolicy"),
				Message:    "fan-out across multiple endpoints requires an explicit merge policy",
				Suggestion: "set mergePolicy to first_success or concat",
			}
		}
		if node.MergePolicy != "" && node.MergePolicy != MergeFirstSuccess && node.MergePolicy != MergeConcat {
			return &errors.ValidationError{
				Field:      nodeField(position, "mergePolicy"),
				Message:    "unknown merge policy: " + string(node.MergePolicy),
				Suggestion: "use first_success or concat",
			}
		}
		if node.Prompt == "" && node.LastMessagesToSendInsteadOfPrompt <= 0 {
			return &errors.ValidationError{
				Field:   nodeField(position, "prompt"),
				Message: "LLM node needs a prompt or lastMessagesToSendInsteadOfPrompt",
			}
		}
	case KindTagExtractor:
		if node.TagToExtractFrom == "" {
			return &errors.ValidationError{
				Field:   nodeField(position, "tagToExtractFrom"),
				Message: "tag extractor needs text to search",
			}
		}
		if node.FieldToExtract == "" {
			return &errors.ValidationError{
				Field:   nodeField(position, "fieldToExtract"),
				Message: "tag extractor needs a tag name",
			}
		}
	case KindKeywordSearch:
		if node.Keywords == "" {
			return &errors.ValidationError{
				Field:   nodeField(position, "keywords"),
				Message: "keyword search needs keywords",
			}
		}
	case KindRAGSearch:
		if node.RagTarget == "" {
			return &errors.ValidationError{
				Field:   nodeField(position, "ragTarget"),
				Message: "RAG search needs a target query",
			}
		}
	case KindToolCall:
		if node.ToolInput == "" {
			return &errors.ValidationError{
				Field:   nodeField(position, "toolInput"),
				Message: "tool call needs text to scan for a call request",
			}
		}
	}

	return nil
}

// validateReferences rejects forward variable references: node i may read
// agent{j}Output only for j < i, and agent{j}Input only for j <= i. A
// reference to a node that has not run yet would resolve to nothing and is
// a configuration mistake, not something to tolerate silently.
func validateReferences(node *NodeSpec, position int) error {
	for _, field := range node.templatedFields() {
		for _, ref := range agentReferences(field) {
			switch {
			case ref.output && ref.index >= position:
				return &errors.ValidationError{
					Field:   nodeField(position, "prompt"),
					Message: fmt.Sprintf("forward reference to agent%dOutput from node %d", ref.index, position),
					Suggestion: fmt.Sprintf("agent%dOutput only exists after node %d has run; reference an earlier node",
						ref.index, ref.index),
				}
			case !ref.output && ref.index > position:
				return &errors.ValidationError{
					Field:   nodeField(position, "prompt"),
					Message: fmt.Sprintf("forward reference to agent%dInput from node %d", ref.index, position),
				}
			}
		}
	}
	return nil
}

// agentRef is one agent{i}Output / agent{i}Input occurrence in a template.
type agentRef struct {
	index  int
	output bool
}

// agentReferences extracts agent variable references from a template using
// the resolver's grammar.
func agentReferences(template string) []agentRef {
	var refs []agentRef
	for _, match := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		idx := match[placeholderPattern.SubexpIndex("idx")]
		if idx == "" {
			continue
		}
		i, err := strconv.Atoi(idx)
		if err != nil {
			continue
		}
		refs = append(refs, agentRef{
			index:  i,
			output: match[placeholderPattern.SubexpIndex("dir")] == "Output",
		})
	}
	return refs
}

func nodeField(position int, field string) string {
	return fmt.Sprintf("nodes[%d].%s", position, field)
}
