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

package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/promptwire/promptwire/internal/log"
	"github.com/promptwire/promptwire/pkg/backend"
	"github.com/promptwire/promptwire/pkg/errors"
	"github.com/promptwire/promptwire/pkg/workflow"
)

// chatRequest is the OpenAI-compatible request surface the front door
// accepts. Unknown fields are ignored so standard clients work unmodified.
type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string   `json:"role"`
		Content string   `json:"content"`
		Images  []string `json:"images,omitempty"`
	} `json:"messages"`

	// User doubles as the discussion id when the dedicated header is not
	// set, matching how chat clients identify conversations.
	User string `json:"user,omitempty"`
}

// discussionHeader explicitly scopes a request to a conversation memory.
const discussionHeader = "X-Discussion-Id"

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (s *Server) handleChatCompletion(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, start, http.StatusBadRequest, "invalid_request_error", "malformed JSON body")
		return
	}
	if len(req.Messages) == 0 {
		s.writeError(w, start, http.StatusBadRequest, "invalid_request_error", "messages is required")
		return
	}

	turns := make([]backend.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		turns = append(turns, backend.Message{
			Role:    backend.Role(m.Role),
			Content: m.Content,
			Images:  m.Images,
		})
	}

	discussionID := r.Header.Get(discussionHeader)
	if discussionID == "" {
		discussionID = req.User
	}

	requestID := uuid.NewString()
	logger := s.logger.With("request_id", requestID, log.DiscussionKey, discussionID)

	output, err := s.currentRuntime().Execute(r.Context(), turns, discussionID)
	if err != nil {
		s.writeExecuteError(w, logger, start, err)
		return
	}

	resp := chatResponse{
		ID:      "chatcmpl-" + requestID,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{{
			Message:      chatMessage{Role: "assistant", Content: output},
			FinishReason: "stop",
		}},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Warn("writing response", "error", err)
	}

	s.metrics.observeRequest(http.StatusOK, time.Since(start))
	logger.Info("completion served",
		log.DurationKey, time.Since(start).Milliseconds(),
		"output_len", len(output),
	)
}

// writeExecuteError maps engine failures onto HTTP statuses: cancellation
// means the client went away, node failures are upstream errors.
func (s *Server) writeExecuteError(w http.ResponseWriter, logger *slog.Logger, start time.Time, err error) {
	switch {
	case stderrors.Is(err, context.Canceled):
		// The client disconnected; nothing useful to write.
		s.metrics.observeRequest(statusClientClosedRequest, time.Since(start))
		w.WriteHeader(statusClientClosedRequest)

	case stderrors.Is(err, context.DeadlineExceeded):
		s.writeError(w, start, http.StatusGatewayTimeout, "timeout_error", "workflow timed out")

	default:
		var nodeErr *workflow.NodeError
		if errors.As(err, &nodeErr) {
			logger.Warn("workflow failed", "error", err)
			s.writeError(w, start, http.StatusBadGateway, "upstream_error", nodeErr.Error())
			return
		}
		logger.Warn("request failed", "error", err)
		s.writeError(w, start, http.StatusInternalServerError, "internal_error", "workflow execution failed")
	}
}

// statusClientClosedRequest mirrors nginx's non-standard 499.
const statusClientClosedRequest = 499

func (s *Server) writeError(w http.ResponseWriter, start time.Time, status int, errType, message string) {
	var resp errorResponse
	resp.Error.Message = message
	resp.Error.Type = errType

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)

	s.metrics.observeRequest(status, time.Since(start))
}
