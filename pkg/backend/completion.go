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

// completionAdapter builds text completion payloads: the conversation is
// flattened into a single prompt string using the endpoint's turn
// delimiters, since these servers have no concept of a message list.
type completionAdapter struct{}

func (completionAdapter) Family() Family { return FamilyCompletion }

func (completionAdapter) BuildPayload(req Request, d *Descriptor) (map[string]any, error) {
	payload := map[string]any{
		"prompt": promptFor(req, d),
	}
	if model := req.modelFor(d); model != "" {
		payload["model"] = model
	}

	applyParams(payload, req, d)
	return payload, nil
}

// completionResponse mirrors the OpenAI legacy completion response shape.
type completionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (completionAdapter) ParseResponse(body []byte, d *Descriptor) (*Response, error) {
	var parsed completionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Wrapf(err, "parsing completion response from %s", d.Name)
	}
	if len(parsed.Choices) == 0 {
		return nil, &errors.BackendError{
			Endpoint: d.Name,
			Message:  "completion response contained no choices",
		}
	}

	resp := &Response{
		Text:             parsed.Choices[0].Text,
		Model:            parsed.Model,
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
	}
	attachToolCall(resp)
	return resp, nil
}
