package httpclient

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, true},
		{"negative retries", func(c *Config) { c.RetryAttempts = -1 }, true},
		{"retries without backoff", func(c *Config) { c.RetryAttempts = 2; c.RetryBackoff = 0 }, true},
		{"max backoff below base", func(c *Config) {
			c.RetryAttempts = 2
			c.RetryBackoff = time.Second
			c.MaxBackoff = time.Millisecond
		}, true},
		{"empty user agent", func(c *Config) { c.UserAgent = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUserAgentInjection(t *testing.T) {
	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.UserAgent = "promptwire-test/1.0"
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	resp.Body.Close()

	if ua := gotUA.Load(); ua != "promptwire-test/1.0" {
		t.Errorf("User-Agent = %v, want promptwire-test/1.0", ua)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.RetryAttempts = 3
	cfg.RetryBackoff = time.Millisecond
	cfg.MaxBackoff = 10 * time.Millisecond
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d calls, want 3", got)
	}
}

func TestNoRetryForPOSTByDefault(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.RetryAttempts = 3
	cfg.RetryBackoff = time.Millisecond
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	resp, err := client.Post(srv.URL, "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("Post() error: %v", err)
	}
	resp.Body.Close()

	if got := calls.Load(); got != 1 {
		t.Errorf("server saw %d calls, want 1 (POST not retried by default)", got)
	}
}

func TestSanitizeURL(t *testing.T) {
	u, _ := url.Parse("https://api.example.com/v1/chat?api_key=sk-secret&model=llama")
	got := sanitizeURL(u)

	if strings.Contains(got, "sk-secret") {
		t.Errorf("sanitized URL still contains secret: %q", got)
	}
	if !strings.Contains(got, "REDACTED") {
		t.Errorf("sanitized URL missing redaction marker: %q", got)
	}
	if !strings.Contains(got, "model=llama") {
		t.Errorf("sanitized URL lost benign param: %q", got)
	}
}
