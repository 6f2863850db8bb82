// Package llm drafts review notes for identity findings the enrichment
// pass could not settle. Notes are advisory context for the human
// reviewer; they never change a dictionary entry.
package llm

import (
	"context"
	"fmt"
	"sort"

	"github.com/ppiankov/heatsheet/internal/model"
)

// Provider is one annotation backend.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// Annotate drafts a review note for one unsettled finding.
	Annotate(ctx context.Context, req AnnotateRequest) (*AnnotateResponse, error)

	// IsAvailable checks if the provider is configured and reachable.
	IsAvailable(ctx context.Context) bool
}

// AnnotateRequest is the input for one note.
type AnnotateRequest struct {
	// Issue is the finding to annotate.
	Issue model.EnrichmentIssue

	// AllowedKeys is the STRICT allowlist of identity keys the note may
	// reference. A note citing a key outside this list is rejected, the
	// model cannot introduce swimmers the dictionaries never saw.
	AllowedKeys []string

	// Prompt overrides the default prompt when set.
	Prompt string

	// Model is the provider-specific model name.
	Model string

	// MaxTokens limits the response length.
	MaxTokens int
}

// AnnotateResponse is the drafted note.
type AnnotateResponse struct {
	// Note is the review text, ready for EnrichmentIssue.Note.
	Note string

	// CitedKeys are the allowed keys the note actually mentions.
	CitedKeys []string

	// Model is the model that generated the note.
	Model string

	// TokensUsed tracks token consumption.
	TokensUsed int
}

// Config holds provider configuration.
type Config struct {
	// Provider name: "openai", "ollama", "". Empty disables annotation.
	Provider string

	// Model name (provider-specific).
	Model string

	// APIKey for hosted providers.
	APIKey string

	// BaseURL for custom endpoints (OpenAI-compatible proxies, Ollama).
	BaseURL string

	// Timeout for API requests, in seconds.
	Timeout int

	// StrictKeys enforces the identity-key allowlist.
	StrictKeys bool

	// MaxTokens for response generation.
	MaxTokens int

	// Proxy settings, shared with the crawler's HTTP configuration.
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns the disabled-by-default configuration.
func DefaultConfig() Config {
	return Config{
		Provider:   "",
		Model:      "",
		Timeout:    30,
		StrictKeys: true,
		MaxTokens:  400,
	}
}

// AllowedKeysFromDictionary collects every identity key of a dictionary,
// sorted so prompts are deterministic.
func AllowedKeysFromDictionary(d *model.Dictionary) []string {
	if d == nil {
		return nil
	}
	keys := make([]string, 0, len(d.Swimmers)+len(d.Teams))
	for k := range d.Swimmers {
		keys = append(keys, k)
	}
	for k := range d.Teams {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BuildPrompt constructs the default annotation prompt with the key
// allowlist inlined.
func BuildPrompt(issue model.EnrichmentIssue, allowedKeys []string) string {
	prompt := fmt.Sprintf(`You are drafting a short review note for a swim-meet identity dictionary. An enrichment pass could not settle one attribute of the record below; a human reviewer will decide, your note is context only.

CRITICAL RULES:
1. You may ONLY reference identity keys from this allowed list:
%s

2. Do not invent swimmers, teams or keys beyond this list.
3. Describe which candidate values are plausible and why. Never declare one correct.
4. If the candidates cannot be told apart from this data, state that explicitly.

Unsettled record:
- Subject key: %s
- Finding: %s
- Detail: %s
- Candidate values: %s

Write a 2-3 sentence note for the reviewer.`,
		joinKeys(allowedKeys), issue.SubjectKey, issue.Kind,
		orNone(issue.Detail), orNone(joinCandidates(issue.Candidates)))
	return prompt
}

// Helper functions

func joinKeys(keys []string) string {
	if len(keys) == 0 {
		return "(no identity keys available)"
	}
	result := ""
	for i, key := range keys {
		if i >= 20 { // Limit to first 20 to avoid token bloat
			result += fmt.Sprintf("\n... and %d more keys", len(keys)-20)
			break
		}
		result += fmt.Sprintf("\n- %s", key)
	}
	return result
}

func joinCandidates(candidates []string) string {
	result := ""
	for i, c := range candidates {
		if i > 0 {
			result += ", "
		}
		result += c
	}
	return result
}

func orNone(s string) string {
	if s == "" {
		return "(none recorded)"
	}
	return s
}
