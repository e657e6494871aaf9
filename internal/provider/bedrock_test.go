package provider

import (
	"encoding/json"
	"testing"

	"relaybot/internal/domain"
)

func TestBuildBedrockBody(t *testing.T) {
	body, err := buildBedrockBody(domain.CompletionRequest{
		SystemPrompt: "you are terse",
		UserText:     "describe this",
		MaxTokens:    512,
		Temperature:  0.3,
		Images:       []domain.ResolvedImage{{MIMEType: "image/png", Base64: "cGl4ZWxz"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	var decoded bedrockRequest
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatal(err)
	}

	if decoded.AnthropicVersion != anthropicBedrockVersion {
		t.Errorf("anthropic_version: %q", decoded.AnthropicVersion)
	}
	if decoded.System != "you are terse" || decoded.MaxTokens != 512 {
		t.Errorf("body: %+v", decoded)
	}

	content := decoded.Messages[0].Content
	if len(content) != 2 {
		t.Fatalf("expected image+text blocks, got %d", len(content))
	}
	if content[0].Type != "image" || content[0].Source.MediaType != "image/png" {
		t.Errorf("image block: %+v", content[0])
	}
	if content[1].Type != "text" || content[1].Text != "describe this" {
		t.Errorf("text block: %+v", content[1])
	}
}

func TestBuildBedrockBody_TextOnly(t *testing.T) {
	body, err := buildBedrockBody(domain.CompletionRequest{UserText: "hi", MaxTokens: 64})
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatal(err)
	}
	if _, present := decoded["system"]; present {
		t.Error("empty system prompt should be omitted")
	}
}
