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

const openRouterDefaultBaseURL = "https://openrouter.ai/api/v1"

// OpenRouter implements domain.Provider for OpenRouter's
// OpenAI-compatible chat completions endpoint, which fronts many
// upstream model vendors behind one API.
type OpenRouter struct {
	apiKey   string
	baseURL  string
	model    string
	siteURL  string
	siteName string
	client   *http.Client
	logger   *slog.Logger
}

type OpenRouterConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	SiteURL  string // optional HTTP-Referer attribution header
	SiteName string // optional X-Title attribution header
	Timeout  time.Duration
	Logger   *slog.Logger
}

func NewOpenRouter(cfg OpenRouterConfig) *OpenRouter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = openRouterDefaultBaseURL
	}
	return &OpenRouter{
		apiKey:   cfg.APIKey,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		model:    cfg.Model,
		siteURL:  cfg.SiteURL,
		siteName: cfg.SiteName,
		client:   newHTTPClient(cfg.Timeout),
		logger:   cfg.Logger,
	}
}

func (o *OpenRouter) Name() string { return "openrouter" }

type orRequest struct {
	Model       string      `json:"model"`
	Messages    []orMessage `json:"messages"`
	MaxTokens   int         `json:"max_tokens,omitempty"`
	Temperature float64     `json:"temperature,omitempty"`
}

type orMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []orContentPart
}

type orContentPart struct {
	Type     string      `json:"type"` // "text" | "image_url"
	Text     string      `json:"text,omitempty"`
	ImageURL *orImageURL `json:"image_url,omitempty"`
}

type orImageURL struct {
	URL string `json:"url"` // data URI carrying the base64 payload
}

type orResponse struct {
	Choices []orChoice `json:"choices"`
}

type orChoice struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

func (o *OpenRouter) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = o.model
	}

	parts := make([]orContentPart, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, orContentPart{
			Type:     "image_url",
			ImageURL: &orImageURL{URL: "data:" + img.MIMEType + ";base64," + img.Base64},
		})
	}
	parts = append(parts, orContentPart{Type: "text", Text: req.UserText})

	msgs := make([]orMessage, 0, 2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, orMessage{Role: "system", Content: req.SystemPrompt})
	}
	msgs = append(msgs, orMessage{Role: "user", Content: parts})

	body := orRequest{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, &domain.BackendError{Provider: o.Name(), Kind: domain.BackendBadRequest, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, &domain.BackendError{Provider: o.Name(), Kind: domain.BackendBadRequest, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	if o.siteURL != "" {
		httpReq.Header.Set("HTTP-Referer", o.siteURL)
	}
	if o.siteName != "" {
		httpReq.Header.Set("X-Title", o.siteName)
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, transportError(o.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, statusError(o.Name(), resp.StatusCode, string(respBody))
	}

	var apiResp orResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, decodeError(o.Name(), err)
	}
	if len(apiResp.Choices) == 0 {
		return nil, decodeError(o.Name(), io.ErrUnexpectedEOF)
	}

	return &domain.CompletionResponse{Content: apiResp.Choices[0].Message.Content}, nil
}
