package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"relaybot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestAnthropic_Complete(t *testing.T) {
	var captured anthropicRequest
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"content":[{"type":"text","text":"Hello "},{"type":"text","text":"there"}],"stop_reason":"end_turn"}`)
	}))
	defer srv.Close()

	p := NewAnthropic(AnthropicConfig{
		APIKey:  "sk-test",
		BaseURL: srv.URL,
		Model:   "claude-3-5-haiku",
		Timeout: 5 * time.Second,
		Logger:  testLogger(),
	})

	resp, err := p.Complete(context.Background(), domain.CompletionRequest{
		SystemPrompt: "be brief",
		UserText:     "hi",
		MaxTokens:    256,
		Temperature:  0.5,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "Hello there" {
		t.Errorf("content: got %q", resp.Content)
	}

	if gotHeaders.Get("x-api-key") != "sk-test" {
		t.Error("missing api key header")
	}
	if gotHeaders.Get("anthropic-version") != anthropicAPIVersion {
		t.Errorf("anthropic-version header: %q", gotHeaders.Get("anthropic-version"))
	}
	if captured.Model != "claude-3-5-haiku" || captured.System != "be brief" || captured.MaxTokens != 256 {
		t.Errorf("request body: %+v", captured)
	}
}

func TestAnthropic_ImagesPrecedeText(t *testing.T) {
	var captured anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		fmt.Fprint(w, `{"content":[{"type":"text","text":"a cat"}]}`)
	}))
	defer srv.Close()

	p := NewAnthropic(AnthropicConfig{APIKey: "k", BaseURL: srv.URL, Logger: testLogger()})
	_, err := p.Complete(context.Background(), domain.CompletionRequest{
		UserText: "Please analyze this image.",
		Images:   []domain.ResolvedImage{{MIMEType: "image/png", Base64: "cGl4ZWxz"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	content := captured.Messages[0].Content
	if len(content) != 2 {
		t.Fatalf("expected image+text blocks, got %d", len(content))
	}
	if content[0].Type != "image" || content[0].Source == nil || content[0].Source.MediaType != "image/png" {
		t.Errorf("first block should be the image: %+v", content[0])
	}
	if content[1].Type != "text" {
		t.Errorf("last block should be the text: %+v", content[1])
	}
}

func TestAnthropic_ErrorClassification(t *testing.T) {
	cases := []struct {
		status int
		kind   domain.BackendErrorKind
	}{
		{http.StatusUnauthorized, domain.BackendAuth},
		{http.StatusForbidden, domain.BackendAuth},
		{http.StatusTooManyRequests, domain.BackendRateLimited},
		{http.StatusBadRequest, domain.BackendBadRequest},
		{http.StatusGatewayTimeout, domain.BackendTimeout},
		{http.StatusInternalServerError, domain.BackendUpstream},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
			fmt.Fprint(w, `{"error":{"message":"nope"}}`)
		}))

		p := NewAnthropic(AnthropicConfig{APIKey: "k", BaseURL: srv.URL, Logger: testLogger()})
		_, err := p.Complete(context.Background(), domain.CompletionRequest{UserText: "hi"})
		srv.Close()

		be, ok := domain.AsBackendError(err)
		if !ok {
			t.Fatalf("status %d: expected BackendError, got %v", tc.status, err)
		}
		if be.Kind != tc.kind {
			t.Errorf("status %d: kind %s, want %s", tc.status, be.Kind, tc.kind)
		}
		if be.Provider != "anthropic" {
			t.Errorf("provider: %q", be.Provider)
		}
	}
}

func TestAnthropic_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server starts its background read and
		// can observe the client disconnect, cancelling r.Context().
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	p := NewAnthropic(AnthropicConfig{APIKey: "k", BaseURL: srv.URL, Logger: testLogger()})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Complete(ctx, domain.CompletionRequest{UserText: "hi"})
	be, ok := domain.AsBackendError(err)
	if !ok {
		t.Fatalf("expected BackendError, got %v", err)
	}
	if be.Kind != domain.BackendTimeout {
		t.Errorf("kind: %s, want %s", be.Kind, domain.BackendTimeout)
	}
}
