package llm

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider drafts notes through OpenAI's Chat Completions API, or
// any OpenAI-compatible endpoint via BaseURL.
type OpenAIProvider struct {
	client *openai.Client
	config Config
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// IsAvailable checks if the provider is properly configured.
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	// Lightweight check: list models.
	_, err := p.client.ListModels(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "OpenAI API check failed: %v\n", err)
		return false
	}
	return true
}

// Annotate drafts a review note for one unsettled identity finding.
func (p *OpenAIProvider) Annotate(ctx context.Context, req AnnotateRequest) (*AnnotateResponse, error) {
	prompt := req.Prompt
	if prompt == "" {
		prompt = BuildPrompt(req.Issue, req.AllowedKeys)
	}

	model := req.Model
	if model == "" {
		model = p.config.Model
	}
	if model == "" {
		model = openai.GPT4oMini
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}
	if maxTokens == 0 {
		maxTokens = 400
	}

	timeout := time.Duration(p.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	chatReq := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a careful assistant annotating swim-meet identity records. Reference only the identity keys you are given.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   maxTokens,
		Temperature: 0.3,
	}

	resp, err := p.client.CreateChatCompletion(ctxWithTimeout, chatReq)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	note := strings.TrimSpace(resp.Choices[0].Message.Content)

	if p.config.StrictKeys {
		if leak := leakedKey(note, req.AllowedKeys); leak != "" {
			return nil, fmt.Errorf("KEY LEAK: note cites unknown identity key: %s", leak)
		}
	}

	return &AnnotateResponse{
		Note:       note,
		CitedKeys:  citedKeys(note, req.AllowedKeys),
		Model:      model,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

// keyRe matches key-shaped tokens, at least three pipe-separated segments
// with no whitespace. Keys whose name segments contain spaces are caught
// by their space-free tail, still a substring of the allowed key.
var keyRe = regexp.MustCompile(`[^\s|]*\|(?:[^\s|]*\|)+[^\s|]+`)

// leakedKey returns the first key-shaped token of the note that appears
// in no allowed key, or "" when the note is clean.
func leakedKey(note string, allowed []string) string {
	for _, token := range keyRe.FindAllString(note, -1) {
		token = strings.TrimRight(token, ".,;:!?")
		if !substringOfAny(token, allowed) {
			return token
		}
	}
	return ""
}

// citedKeys lists the allowed keys the note mentions, in allowlist order.
func citedKeys(note string, allowed []string) []string {
	var cited []string
	for _, key := range allowed {
		if strings.Contains(note, key) {
			cited = append(cited, key)
		}
	}
	return cited
}

func substringOfAny(token string, keys []string) bool {
	for _, key := range keys {
		if strings.Contains(key, token) {
			return true
		}
	}
	return false
}
