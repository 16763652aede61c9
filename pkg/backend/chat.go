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

// chatAdapter builds OpenAI-style chat completion payloads: the message
// list goes over the wire structured, roles intact.
type chatAdapter struct{}

func (chatAdapter) Family() Family { return FamilyChat }

func (chatAdapter) BuildPayload(req Request, d *Descriptor) (map[string]any, error) {
	messages := make([]map[string]any, 0, len(req.Messages))
	for _, msg := range req.Messages {
		m := map[string]any{
			"role":    string(msg.Role),
			"content": msg.Content,
		}
		if len(msg.Images) > 0 {
			m["images"] = msg.Images
		}
		messages = append(messages, m)
	}

	payload := map[string]any{
		"messages": messages,
	}
	if model := req.modelFor(d); model != "" {
		payload["model"] = model
	}

	applyParams(payload, req, d)
	return payload, nil
}

// chatResponse mirrors the OpenAI chat completion response shape.
type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (chatAdapter) ParseResponse(body []byte, d *Descriptor) (*Response, error) {
	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Wrapf(err, "parsing chat response from %s", d.Name)
	}
	if len(parsed.Choices) == 0 {
		return nil, &errors.BackendError{
			Endpoint: d.Name,
			Message:  "chat response contained no choices",
		}
	}

	resp := &Response{
		Text:             parsed.Choices[0].Message.Content,
		Model:            parsed.Model,
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
	}
	attachToolCall(resp)
	return resp, nil
}
