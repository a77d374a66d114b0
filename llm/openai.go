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

// OpenAIProvider calls an OpenAI-compatible chat completions endpoint.
// Grounded on the teacher's OpenAIProvider, trimmed to the single
// prompt-in/text-out contract this runtime needs: no native function
// calling, no streaming.
type OpenAIProvider struct {
	cfg    Config
	client *retryClient
}

// NewOpenAIProvider validates cfg and returns a ready-to-use provider.
func NewOpenAIProvider(cfg Config) (*OpenAIProvider, error) {
	cfg.SetDefaults()
	if cfg.Host == "" {
		cfg.Host = "https://api.openai.com/v1"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &OpenAIProvider{
		cfg:    cfg,
		client: newRetryClient(time.Duration(cfg.TimeoutSec) * time.Second),
	}, nil
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody, err := json.Marshal(openAIRequest{
		Model:       p.cfg.Model,
		Messages:    []openAIMessage{{Role: "user", Content: prompt}},
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshaling openai request: %v", core.ErrLLM, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Host+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("%w: building openai request: %v", core.ErrLLM, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: calling openai: %v", core.ErrLLM, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading openai response: %v", core.ErrLLM, err)
	}

	var parsed openAIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: decoding openai response: %v", core.ErrLLM, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%w: openai: %s", core.ErrLLM, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", core.ErrLLM)
	}
	return parsed.Choices[0].Message.Content, nil
}
