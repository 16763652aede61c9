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
	"encoding/json"

	"github.com/promptwire/promptwire/pkg/errors"
)

// generateAdapter builds generation-style payloads (KoboldCpp /api/v1/generate,
// Ollama /api/generate): a flattened prompt plus generation parameters that
// typically live in a nested options object named by the descriptor.
type generateAdapter struct{}

func (generateAdapter) Family() Family { return FamilyGenerate }

func (generateAdapter) BuildPayload(req Request, d *Descriptor) (map[string]any, error) {
	payload := map[string]any{
		"prompt": promptFor(req, d),
	}
	if model := req.modelFor(d); model != "" {
		payload["model"] = model
	}

	// Image payloads ride at the top level on generation servers that
	// support them (Ollama's llava-style endpoints).
	var images []string
	for _, msg := range req.Messages {
		images = append(images, msg.Images...)
	}
	if len(images) > 0 {
		payload["images"] = images
	}

	applyParams(payload, req, d)
	return payload, nil
}

// generateResponse covers the two response shapes seen in the wild:
// KoboldCpp reports {"results": [{"text": ...}]}, Ollama reports
// {"response": ...}. Whichever is present wins.
type generateResponse struct {
	Model   string `json:"model"`
	Results []struct {
		Text string `json:"text"`
	} `json:"results"`
	ResponseText    string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (generateAdapter) ParseResponse(body []byte, d *Descriptor) (*Response, error) {
	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Wrapf(err, "parsing generate response from %s", d.Name)
	}

	var text string
	switch {
	case len(parsed.Results) > 0:
		text = parsed.Results[0].Text
	default:
		text = parsed.ResponseText
	}

	resp := &Response{
		Text:             text,
		Model:            parsed.Model,
		PromptTokens:     parsed.PromptEvalCount,
		CompletionTokens: parsed.EvalCount,
	}
	attachToolCall(resp)
	return resp, nil
}
