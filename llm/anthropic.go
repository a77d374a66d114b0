package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/conductorhq/conductor/core"
)

// anthropicVersion is the wire version the teacher's adapter pins.
const anthropicVersion = "2023-06-01"

// AnthropicProvider calls the Anthropic messages endpoint. Grounded on the
// teacher's AnthropicProvider, trimmed to prompt-in/text-out.
type AnthropicProvider struct {
	cfg    Config
	client *retryClient
}

// NewAnthropicProvider validates cfg and returns a ready-to-use provider.
func NewAnthropicProvider(cfg Config) (*AnthropicProvider, error) {
	cfg.SetDefaults()
	if cfg.Host == "" {
		cfg.Host = "https://api.anthropic.com"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &AnthropicProvider{
		cfg:    cfg,
		client: newRetryClient(time.Duration(cfg.TimeoutSec) * time.Second),
	}, nil
}

type anthropicRequest struct {
	Model     string              `json:"model"`
	MaxTokens int                 `json:"max_tokens"`
	Messages  []anthropicMessage  `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *AnthropicProvider) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody, err := json.Marshal(anthropicRequest{
		Model:     p.cfg.Model,
		MaxTokens: p.cfg.MaxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshaling anthropic request: %v", core.ErrLLM, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Host+"/v1/messages", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("%w: building anthropic request: %v", core.ErrLLM, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.client.do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: calling anthropic: %v", core.ErrLLM, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading anthropic response: %v", core.ErrLLM, err)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: decoding anthropic response: %v", core.ErrLLM, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%w: anthropic: %s", core.ErrLLM, parsed.Error.Message)
	}
	for _, block := range parsed.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("%w: anthropic returned no text content", core.ErrLLM)
}
