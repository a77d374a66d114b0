package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractJSONStripsCodeFence(t *testing.T) {
	var out map[string]float64
	err := ExtractJSON("```json\n{\"time\": 0.9}\n```", &out)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if out["time"] != 0.9 {
		t.Errorf("out = %v", out)
	}
}

func TestExtractJSONPlainBody(t *testing.T) {
	var out map[string]float64
	if err := ExtractJSON(`{"weather": 0.5}`, &out); err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if out["weather"] != 0.5 {
		t.Errorf("out = %v", out)
	}
}

func TestExtractJSONEmptyIsError(t *testing.T) {
	var out map[string]float64
	if err := ExtractJSON("   ", &out); err == nil {
		t.Fatal("expected error for empty response")
	}
}

func TestOpenAIProviderGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing auth header")
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "hello there"}},
			},
		})
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider(Config{APIKey: "sk-test", Model: "gpt-4o-mini", Host: srv.URL})
	if err != nil {
		t.Fatalf("NewOpenAIProvider: %v", err)
	}
	content, err := p.Generate(context.Background(), "say hi")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if content != "hello there" {
		t.Errorf("content = %q", content)
	}
}

func TestOpenAIProviderGenerateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "invalid api key"},
		})
	}))
	defer srv.Close()

	p, _ := NewOpenAIProvider(Config{APIKey: "bad", Model: "gpt-4o-mini", Host: srv.URL})
	if _, err := p.Generate(context.Background(), "hi"); err == nil {
		t.Fatal("expected error")
	}
}

func TestAnthropicProviderGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "ak-test" {
			t.Errorf("missing x-api-key header")
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]string{{"type": "text", "text": "42"}},
		})
	}))
	defer srv.Close()

	p, err := NewAnthropicProvider(Config{APIKey: "ak-test", Model: "claude-3-5-sonnet", Host: srv.URL})
	if err != nil {
		t.Fatalf("NewAnthropicProvider: %v", err)
	}
	content, err := p.Generate(context.Background(), "what is 6*7")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if content != "42" {
		t.Errorf("content = %q", content)
	}
}

func TestSchemaJSONReflectsStruct(t *testing.T) {
	type plan struct {
		Tool string `json:"tool"`
	}
	out, err := SchemaJSON(plan{})
	if err != nil {
		t.Fatalf("SchemaJSON: %v", err)
	}
	if out == "" {
		t.Error("expected non-empty schema")
	}
}

func TestNewUnknownProvider(t *testing.T) {
	if _, err := New("does-not-exist", Config{APIKey: "x", Model: "y"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
