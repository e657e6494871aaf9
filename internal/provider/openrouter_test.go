package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"relaybot/internal/domain"
)

func TestOpenRouter_Complete(t *testing.T) {
	var rawBody map[string]any
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&rawBody)
		fmt.Fprint(w, `{"choices":[{"message":{"content":"routed reply"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	p := NewOpenRouter(OpenRouterConfig{
		APIKey:   "or-key",
		BaseURL:  srv.URL,
		Model:    "anthropic/claude-3.5-haiku",
		SiteURL:  "https://example.com",
		SiteName: "RelayBot",
		Logger:   testLogger(),
	})

	resp, err := p.Complete(context.Background(), domain.CompletionRequest{
		SystemPrompt: "be brief",
		UserText:     "hi",
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "routed reply" {
		t.Errorf("content: %q", resp.Content)
	}

	if gotHeaders.Get("Authorization") != "Bearer or-key" {
		t.Error("missing bearer token")
	}
	if gotHeaders.Get("HTTP-Referer") != "https://example.com" || gotHeaders.Get("X-Title") != "RelayBot" {
		t.Error("missing attribution headers")
	}

	msgs := rawBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(msgs))
	}
	system := msgs[0].(map[string]any)
	if system["role"] != "system" || system["content"] != "be brief" {
		t.Errorf("system message: %+v", system)
	}
}

func TestOpenRouter_ImageAsDataURI(t *testing.T) {
	var rawBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&rawBody)
		fmt.Fprint(w, `{"choices":[{"message":{"content":"a dog"}}]}`)
	}))
	defer srv.Close()

	p := NewOpenRouter(OpenRouterConfig{APIKey: "k", BaseURL: srv.URL, Logger: testLogger()})
	_, err := p.Complete(context.Background(), domain.CompletionRequest{
		UserText: "what is this",
		Images:   []domain.ResolvedImage{{MIMEType: "image/jpeg", Base64: "anBlZw=="}},
	})
	if err != nil {
		t.Fatal(err)
	}

	msgs := rawBody["messages"].([]any)
	user := msgs[0].(map[string]any)
	parts := user["content"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected image+text parts, got %d", len(parts))
	}
	img := parts[0].(map[string]any)
	url := img["image_url"].(map[string]any)["url"].(string)
	if !strings.HasPrefix(url, "data:image/jpeg;base64,") {
		t.Errorf("image url should be a data URI: %q", url)
	}
}

func TestOpenRouter_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	p := NewOpenRouter(OpenRouterConfig{APIKey: "k", BaseURL: srv.URL, Logger: testLogger()})
	_, err := p.Complete(context.Background(), domain.CompletionRequest{UserText: "hi"})

	be, ok := domain.AsBackendError(err)
	if !ok {
		t.Fatalf("expected BackendError, got %v", err)
	}
	if be.Kind != domain.BackendUpstream {
		t.Errorf("kind: %s", be.Kind)
	}
}

func TestOpenRouter_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOpenRouter(OpenRouterConfig{APIKey: "k", BaseURL: srv.URL, Logger: testLogger()})
	_, err := p.Complete(context.Background(), domain.CompletionRequest{UserText: "hi"})

	be, ok := domain.AsBackendError(err)
	if !ok || be.Kind != domain.BackendRateLimited {
		t.Fatalf("expected rate_limited, got %v", err)
	}
}
