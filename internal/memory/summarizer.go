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

package memory

import (
	"context"
	"strings"

	"github.com/promptwire/promptwire/pkg/backend"
)

const summarizerSystemPrompt = "You maintain a rolling summary of a conversation. " +
	"Given the current summary and new messages, produce an updated summary that " +
	"preserves names, decisions, and open questions. Reply with the summary only."

// summaryMaxTokens bounds summary generation length.
const summaryMaxTokens = 512

// LLMSummarizer produces rolling summaries through a backend endpoint.
type LLMSummarizer struct {
	caller backend.Caller
}

// NewLLMSummarizer wraps a backend caller as a Summarizer.
func NewLLMSummarizer(caller backend.Caller) *LLMSummarizer {
	return &LLMSummarizer{caller: caller}
}

// Summarize implements Summarizer.
func (s *LLMSummarizer) Summarize(ctx context.Context, priorSummary string, turns []backend.Message) (string, error) {
	var b strings.Builder
	if priorSummary != "" {
		b.WriteString("Current summary:\n")
		b.WriteString(priorSummary)
		b.WriteString("\n\n")
	}
	b.WriteString("New messages:\n")
	for _, turn := range turns {
		b.WriteString(string(turn.Role))
		b.WriteString(": ")
		b.WriteString(turn.Content)
		b.WriteString("\n")
	}

	resp, err := s.caller.Call(ctx, backend.Request{
		Messages: []backend.Message{
			{Role: backend.RoleSystem, Content: summarizerSystemPrompt},
			{Role: backend.RoleUser, Content: b.String()},
		},
		Params: backend.Params{MaxNewTokens: summaryMaxTokens},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}
