package provider

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/bedrockruntime"

	"relaybot/internal/domain"
)

// anthropicBedrockVersion is the payload version Bedrock expects for
// Anthropic-family models.
const anthropicBedrockVersion = "bedrock-2023-05-31"

// Bedrock implements domain.Provider for AWS Bedrock managed inference.
// Credentials come from the default AWS chain (env, shared config,
// instance role).
type Bedrock struct {
	region string
	model  string
	client *bedrockruntime.BedrockRuntime
	logger *slog.Logger
}

type BedrockConfig struct {
	Region  string
	Model   string // Bedrock model id, e.g. "anthropic.claude-3-5-haiku-20241022-v1:0"
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewBedrock(cfg BedrockConfig) (*Bedrock, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	sess, err := session.NewSession(aws.NewConfig().
		WithRegion(cfg.Region).
		WithHTTPClient(newHTTPClient(cfg.Timeout)))
	if err != nil {
		return nil, err
	}
	return &Bedrock{
		region: cfg.Region,
		model:  cfg.Model,
		client: bedrockruntime.New(sess),
		logger: cfg.Logger,
	}, nil
}

func (b *Bedrock) Name() string { return "bedrock" }

type bedrockRequest struct {
	AnthropicVersion string         `json:"anthropic_version"`
	MaxTokens        int            `json:"max_tokens"`
	Temperature      float64        `json:"temperature"`
	System           string         `json:"system,omitempty"`
	Messages         []anthropicMsg `json:"messages"`
}

// buildBedrockBody assembles the model-native JSON payload. Bedrock's
// Anthropic models take the same message shape as the direct API.
func buildBedrockBody(req domain.CompletionRequest) ([]byte, error) {
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

	return json.Marshal(bedrockRequest{
		AnthropicVersion: anthropicBedrockVersion,
		MaxTokens:        req.MaxTokens,
		Temperature:      req.Temperature,
		System:           req.SystemPrompt,
		Messages:         []anthropicMsg{{Role: "user", Content: content}},
	})
}

func (b *Bedrock) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = b.model
	}

	body, err := buildBedrockBody(req)
	if err != nil {
		return nil, &domain.BackendError{Provider: b.Name(), Kind: domain.BackendBadRequest, Err: err}
	}

	b.logger.Debug("invoking bedrock model", "model", model, "region", b.region)

	out, err := b.client.InvokeModelWithContext(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, b.classify(err)
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(out.Body, &apiResp); err != nil {
		return nil, decodeError(b.Name(), err)
	}
	if len(apiResp.Content) == 0 {
		return nil, decodeError(b.Name(), errors.New("empty content in model response"))
	}

	return &domain.CompletionResponse{Content: apiResp.Content[0].Text}, nil
}

// classify maps AWS SDK errors onto the backend error taxonomy.
func (b *Bedrock) classify(err error) *domain.BackendError {
	kind := domain.BackendUpstream

	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case "ThrottlingException", "TooManyRequestsException":
			kind = domain.BackendRateLimited
		case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException":
			kind = domain.BackendAuth
		case bedrockruntime.ErrCodeValidationException:
			kind = domain.BackendBadRequest
		case bedrockruntime.ErrCodeModelTimeoutException, "RequestTimeout":
			kind = domain.BackendTimeout
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		kind = domain.BackendTimeout
	}

	return &domain.BackendError{Provider: b.Name(), Kind: kind, Err: err}
}
