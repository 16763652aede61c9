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
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/promptwire/promptwire/internal/log"
	"github.com/promptwire/promptwire/pkg/errors"
	"github.com/promptwire/promptwire/pkg/httpclient"
)

// Caller executes completion requests against one endpoint. The workflow
// engine depends on this interface, not on the HTTP implementation, so tests
// substitute in-memory fakes.
type Caller interface {
	// Name returns the endpoint's configured name.
	Name() string

	// Call sends one completion request and blocks until the response is
	// complete or ctx is done.
	Call(ctx context.Context, req Request) (*Response, error)
}

// Client is the HTTP Caller for one descriptor.
type Client struct {
	descriptor *Descriptor
	adapter    Adapter
	httpClient *http.Client
	limiter    *rate.Limiter
	tracer     trace.Tracer
	logger     *slog.Logger
}

// NewClient builds a Client for a validated descriptor.
func NewClient(d *Descriptor, logger *slog.Logger) (*Client, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	adapter, err := ForFamily(d.Family)
	if err != nil {
		return nil, err
	}

	cfg := httpclient.DefaultConfig()
	cfg.Timeout = d.EffectiveTimeout()
	httpClient, err := httpclient.New(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "creating HTTP client")
	}

	var limiter *rate.Limiter
	if d.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(d.RequestsPerSecond), 1)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		descriptor: d,
		adapter:    adapter,
		httpClient: httpClient,
		limiter:    limiter,
		tracer:     otel.Tracer("promptwire/backend"),
		logger:     logger.With(log.EndpointKey, d.Name),
	}, nil
}

// Name returns the endpoint name.
func (c *Client) Name() string {
	return c.descriptor.Name
}

// Call implements Caller over HTTP.
func (c *Client) Call(ctx context.Context, req Request) (*Response, error) {
	ctx, span := c.tracer.Start(ctx, "backend.call",
		trace.WithAttributes(
			attribute.String("endpoint", c.descriptor.Name),
			attribute.String("family", string(c.descriptor.Family)),
		))
	defer span.End()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.mapContextErr(ctx, err, "rate limit wait")
		}
	}

	payload, err := c.adapter.BuildPayload(req, c.descriptor)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling request payload")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.descriptor.URL(), bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "creating HTTP request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.descriptor.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.descriptor.APIKey)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.mapContextErr(ctx, err, "completion call")
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading response body")
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, &errors.BackendError{
			Endpoint:   c.descriptor.Name,
			StatusCode: httpResp.StatusCode,
			Message:    truncateBody(respBody),
			RequestID:  httpResp.Header.Get("X-Request-Id"),
		}
	}

	resp, err := c.adapter.ParseResponse(respBody, c.descriptor)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("completion call finished",
		log.DurationKey, time.Since(start).Milliseconds(),
		"prompt_tokens", resp.PromptTokens,
		"completion_tokens", resp.CompletionTokens,
	)
	return resp, nil
}

// mapContextErr distinguishes cancellation and deadline expiry from
// endpoint failures; the engine treats the former as run aborts, not node
// errors.
func (c *Client) mapContextErr(ctx context.Context, err error, operation string) error {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(ctx.Err(), context.Canceled) {
		return context.Canceled
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &errors.TimeoutError{
			Operation: operation + " (" + c.descriptor.Name + ")",
			Duration:  c.descriptor.EffectiveTimeout(),
			Cause:     err,
		}
	}
	return &errors.BackendError{
		Endpoint: c.descriptor.Name,
		Message:  operation + " failed",
		Cause:    err,
	}
}

// truncateBody bounds error bodies included in messages; servers sometimes
// echo entire prompts back in error responses.
func truncateBody(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
