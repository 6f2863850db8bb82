package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/heatsheet/internal/model"
	"github.com/sashabaranov/go-openai"
)

func annotateFixture() AnnotateRequest {
	return AnnotateRequest{
		Issue: model.EnrichmentIssue{
			SubjectKey: "|ROSSI|Mario|1990|Aquatica",
			Kind:       model.IssueAmbiguousGender,
			Detail:     "two auxiliary sources disagree",
			Candidates: []string{"M", "F"},
		},
		AllowedKeys: []string{
			"|ROSSI|Mario|1990|Aquatica",
			"M|ROSSI|Mario|1990|Aquatica",
			"F|ROSSI|Maria|1990|Aquatica",
		},
	}
}

func chatCompletion(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		ID:      "chatcmpl-123",
		Object:  "chat.completion",
		Created: 1677652288,
		Model:   "gpt-4o-mini",
		Choices: []openai.ChatCompletionChoice{
			{
				Index: 0,
				Message: openai.ChatCompletionMessage{
					Role:    "assistant",
					Content: content,
				},
				FinishReason: "stop",
			},
		},
		Usage: openai.Usage{TotalTokens: 100},
	}
}

func TestOpenAIProvider_Annotate_Success(t *testing.T) {
	note := "The record M|ROSSI|Mario|1990|Aquatica carries individual evidence for M. The candidates cannot be confirmed from this data alone."

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Authorization header Bearer test-key, got %s", r.Header.Get("Authorization"))
		}
		_ = json.NewEncoder(w).Encode(chatCompletion(note))
	}))
	defer server.Close()

	config := Config{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		Model:      "gpt-4o-mini",
		Timeout:    5,
		StrictKeys: true,
	}
	provider, err := NewOpenAIProvider(config)
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.Annotate(context.Background(), annotateFixture())
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}

	if resp.Note != note {
		t.Errorf("Unexpected note: %s", resp.Note)
	}
	// The genderless subject key is a substring of the gendered key the
	// note cites, so both count as mentioned.
	if len(resp.CitedKeys) != 2 || resp.CitedKeys[1] != "M|ROSSI|Mario|1990|Aquatica" {
		t.Errorf("Unexpected cited keys: %v", resp.CitedKeys)
	}
	if resp.TokensUsed != 100 {
		t.Errorf("Unexpected token usage: %d", resp.TokensUsed)
	}
}

func TestOpenAIProvider_Annotate_KeyLeak(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatCompletion("Compare with M|FINTO|Gino|1985|Nessuna from another meet."))
	}))
	defer server.Close()

	config := Config{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		Timeout:    5,
		StrictKeys: true,
	}
	provider, err := NewOpenAIProvider(config)
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	_, err = provider.Annotate(context.Background(), annotateFixture())
	if err == nil {
		t.Fatal("Expected key leak error, got nil")
	}
	if !strings.Contains(err.Error(), "KEY LEAK") {
		t.Errorf("Expected KEY LEAK error, got %v", err)
	}
}

func TestOpenAIProvider_Annotate_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "Internal Server Error", "type": "server_error"}}`))
	}))
	defer server.Close()

	config := Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Timeout: 5,
	}
	provider, err := NewOpenAIProvider(config)
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	_, err = provider.Annotate(context.Background(), annotateFixture())
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
}

func TestOpenAIProvider_Annotate_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(chatCompletion("late"))
	}))
	defer server.Close()

	config := Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Timeout: 5,
	}
	provider, err := NewOpenAIProvider(config)
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := provider.Annotate(ctx, annotateFixture()); err == nil {
		t.Fatal("Expected timeout error, got nil")
	}
}

func TestOpenAIProvider_RequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAIProvider(Config{}); err == nil {
		t.Fatal("Expected error without API key, got nil")
	}
}

func TestOpenAIProvider_IsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			_, _ = w.Write([]byte(`{"data": [{"id": "gpt-4o-mini"}]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	config := Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
	}
	provider, err := NewOpenAIProvider(config)
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	if !provider.IsAvailable(context.Background()) {
		t.Error("Expected available to be true")
	}

	server.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	if provider.IsAvailable(context.Background()) {
		t.Error("Expected available to be false on error")
	}
}
