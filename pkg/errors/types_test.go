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

package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestValidationError(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{
			name: "with field",
			err:  &ValidationError{Field: "type", Message: "unknown node kind"},
			want: `validation failed on type: unknown node kind`,
		},
		{
			name: "without field",
			err:  &ValidationError{Message: "empty workflow"},
			want: "validation failed: empty workflow",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNotFoundError(t *testing.T) {
	err := &NotFoundError{Resource: "endpoint", ID: "coder-endpoint"}
	want := "endpoint not found: coder-endpoint"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestBackendError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &BackendError{
		Endpoint:   "local-ollama",
		StatusCode: 503,
		Message:    "server unavailable",
		RequestID:  "req-123",
		Cause:      cause,
	}

	msg := err.Error()
	for _, part := range []string{"local-ollama", "HTTP 503", "server unavailable", "req-123"} {
		if !strings.Contains(msg, part) {
			t.Errorf("Error() = %q, missing %q", msg, part)
		}
	}

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause through Unwrap")
	}
}

func TestConfigErrorUnwrap(t *testing.T) {
	cause := errors.New("yaml: line 3: mapping values are not allowed")
	err := &ConfigError{Key: "endpoints", Reason: "parse failed", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}

	var cfgErr *ConfigError
	wrapped := fmt.Errorf("loading config: %w", err)
	if !errors.As(wrapped, &cfgErr) {
		t.Fatal("expected errors.As to find ConfigError")
	}
	if cfgErr.Key != "endpoints" {
		t.Errorf("Key = %q, want %q", cfgErr.Key, "endpoints")
	}
}

func TestTimeoutError(t *testing.T) {
	err := &TimeoutError{Operation: "backend call", Duration: 30 * time.Second}
	want := "backend call operation timed out after 30s"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}

	base := New("base failure")
	wrapped := Wrap(base, "running node 2")
	if !Is(wrapped, base) {
		t.Error("wrapped error should match base via Is")
	}
	if want := "running node 2: base failure"; wrapped.Error() != want {
		t.Errorf("Error() = %q, want %q", wrapped.Error(), want)
	}
}

func TestWrapf(t *testing.T) {
	if Wrapf(nil, "node %d", 3) != nil {
		t.Error("Wrapf(nil) should return nil")
	}

	base := New("boom")
	wrapped := Wrapf(base, "node %d", 3)
	if want := "node 3: boom"; wrapped.Error() != want {
		t.Errorf("Error() = %q, want %q", wrapped.Error(), want)
	}
}
