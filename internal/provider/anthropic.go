package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"relaybot/internal/domain"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicAPIVersion     = "2023-06-01"
)

// Anthropic implements domain.Provider for the Anthropic Messages API.
type Anthropic struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

type AnthropicConfig struct {
	APIKey  string
	BaseURL string // override for tests / proxies
	Model   string
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewAnthropic(cfg AnthropicConfig) *Anthropic {
	if cfg.BaseURL == "" {
		cfg.BaseURL = anthropicDefaultBaseURL
	}
	return &Anthropic{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  newHTTPClient(cfg.Timeout),
		logger:  cfg.Logger,
	}
}

func (a *Anthropic) Name() string { return "anthropic" }

type anthropicRequest struct {
	Model       string         `json:"model"`
	MaxTokens   int            `json:"max_tokens"`
	Temperature float64        `json:"temperature"`
	System      string         `json:"system,omitempty"`
	Messages    []anthropicMsg `json:"messages"`
}

type anthropicMsg struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type   string           `json:"type"` // "text" | "image"
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"` // "base64"
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicResponse struct {
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
}

func (a *Anthropic) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = a.model
	}

	// Images first, then the text block, matching the Messages API's
	// recommended ordering for vision requests.
	content := make([]anthropicContent, 0, len(req.Images)+1)
	for _, img := range req.Images {
		content = append(content, anthropicContent{
			Type: "image",
			Source: &anthropicSource{
				Type:      "base64",
				MediaType: img.MIMEType,
				Data:      img.Base64,
			},
		})
	}
	content = append(content, anthropicContent{Type: "text", Text: req.UserText})

	body := anthropicRequest{
		Model:       model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		System:      req.SystemPrompt,
		Messages:    []anthropicMsg{{Role: "user", Content: content}},
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, &domain.BackendError{Provider: a.Name(), Kind: domain.BackendBadRequest, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, &domain.BackendError{Provider: a.Name(), Kind: domain.BackendBadRequest, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, transportError(a.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, statusError(a.Name(), resp.StatusCode, string(respBody))
	}

	var apiResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, decodeError(a.Name(), err)
	}

	var parts []string
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}

	return &domain.CompletionResponse{Content: strings.Join(parts, "")}, nil
}
