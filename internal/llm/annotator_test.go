package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/ppiankov/heatsheet/internal/model"
)

// MockProvider implements the Provider interface for testing
type MockProvider struct {
	name      string
	available bool
	response  *AnnotateResponse
	err       error
	calls     int
}

func (m *MockProvider) Name() string {
	return m.name
}

func (m *MockProvider) Annotate(ctx context.Context, req AnnotateRequest) (*AnnotateResponse, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func (m *MockProvider) IsAvailable(ctx context.Context) bool {
	return m.available
}

func TestNewAnnotator_DisabledProvider(t *testing.T) {
	annotator, err := NewAnnotator(Config{Provider: ""})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if annotator.IsEnabled() {
		t.Error("Expected annotator to be disabled")
	}
	if annotator.ProviderName() != "" {
		t.Error("Expected empty provider name when disabled")
	}

	report := annotator.AnnotateAll(context.Background(), []model.EnrichmentIssue{{SubjectKey: "x"}}, nil)
	if report != nil {
		t.Error("Expected nil report when disabled")
	}
}

func TestNewAnnotator_UnknownProvider(t *testing.T) {
	if _, err := NewAnnotator(Config{Provider: "watson"}); err == nil {
		t.Fatal("Expected error for unknown provider, got nil")
	}
}

func TestAnnotator_AnnotateAll_ProviderUnavailable(t *testing.T) {
	annotator := &Annotator{
		provider: &MockProvider{name: "test-provider", available: false},
		config:   Config{StrictKeys: true},
	}

	issues := []model.EnrichmentIssue{{SubjectKey: "|ROSSI|Mario|1990|Aquatica"}}
	report := annotator.AnnotateAll(context.Background(), issues, nil)

	if report == nil {
		t.Fatal("Expected report with warnings")
	}
	if report.Enabled {
		t.Error("Expected report to be marked as disabled")
	}
	if len(report.Warnings) == 0 {
		t.Fatal("Expected warning about provider unavailability")
	}
	if !strings.Contains(report.Warnings[0], "not available") {
		t.Errorf("Expected warning to mention unavailability, got %q", report.Warnings[0])
	}
	if issues[0].Note != "" {
		t.Error("Expected no note when provider unavailable")
	}
}

func TestAnnotator_AnnotateAll_Success(t *testing.T) {
	mock := &MockProvider{
		name:      "test-provider",
		available: true,
		response: &AnnotateResponse{
			Note:       "Both candidates remain plausible from this data alone.",
			Model:      "test-model",
			TokensUsed: 150,
		},
	}
	annotator := &Annotator{
		provider: mock,
		config:   Config{StrictKeys: true},
	}

	issues := []model.EnrichmentIssue{
		{SubjectKey: "|ROSSI|Mario|1990|Aquatica", Kind: model.IssueAmbiguousGender},
		{SubjectKey: "|BIANCHI|Luca|1988|Nuoto Club", Kind: model.IssueAmbiguousYear},
	}
	report := annotator.AnnotateAll(context.Background(), issues, []string{"|ROSSI|Mario|1990|Aquatica"})

	if report == nil {
		t.Fatal("Expected report")
	}
	if !report.Enabled {
		t.Error("Expected report to be enabled")
	}
	if report.Provider != "test-provider" {
		t.Errorf("Expected provider 'test-provider', got %q", report.Provider)
	}
	if report.Model != "test-model" {
		t.Errorf("Expected model 'test-model', got %q", report.Model)
	}
	if !report.StrictKeys {
		t.Error("Expected strict keys mode to be recorded")
	}
	if report.Annotated != 2 {
		t.Errorf("Expected 2 annotated, got %d", report.Annotated)
	}
	if report.TokensUsed != 300 {
		t.Errorf("Expected 300 tokens, got %d", report.TokensUsed)
	}
	if mock.calls != 2 {
		t.Errorf("Expected 2 provider calls, got %d", mock.calls)
	}
	for i, issue := range issues {
		if issue.Note == "" {
			t.Errorf("Expected note on issue %d", i)
		}
	}
}

func TestAnnotator_AnnotateAll_ProviderError(t *testing.T) {
	annotator := &Annotator{
		provider: &MockProvider{
			name:      "test-provider",
			available: true,
			err:       &mockError{msg: "API rate limit exceeded"},
		},
		config: Config{StrictKeys: true},
	}

	issues := []model.EnrichmentIssue{{SubjectKey: "|ROSSI|Mario|1990|Aquatica"}}
	report := annotator.AnnotateAll(context.Background(), issues, nil)

	// The run degrades to warnings, it must not fail.
	if report == nil {
		t.Fatal("Expected report with error warning")
	}
	if !report.Enabled {
		t.Error("Expected report to stay enabled on per-issue failure")
	}
	if report.Annotated != 0 {
		t.Errorf("Expected 0 annotated, got %d", report.Annotated)
	}
	if len(report.Warnings) == 0 {
		t.Fatal("Expected warning about the failure")
	}
	if !strings.Contains(report.Warnings[0], "rate limit") {
		t.Errorf("Expected warning to mention the error, got %q", report.Warnings[0])
	}
	if issues[0].Note != "" {
		t.Error("Expected no note on failed issue")
	}
}

func TestBuildPrompt_BasicStructure(t *testing.T) {
	issue := model.EnrichmentIssue{
		SubjectKey: "|ROSSI|Mario|1990|Aquatica",
		Kind:       model.IssueAmbiguousGender,
		Detail:     "two auxiliary sources disagree",
		Candidates: []string{"M", "F"},
	}
	allowed := []string{
		"|ROSSI|Mario|1990|Aquatica",
		"M|ROSSI|Mario|1990|Aquatica",
	}

	prompt := BuildPrompt(issue, allowed)

	requiredElements := []string{
		"CRITICAL RULES",
		"ONLY reference identity keys from this allowed list",
		"|ROSSI|Mario|1990|Aquatica",
		"M|ROSSI|Mario|1990|Aquatica",
		"Do not invent swimmers",
		"Never declare one correct",
		"Finding: ambiguousGender",
		"two auxiliary sources disagree",
		"M, F",
	}
	for _, element := range requiredElements {
		if !strings.Contains(prompt, element) {
			t.Errorf("Expected prompt to contain %q", element)
		}
	}
}

func TestBuildPrompt_NoKeys(t *testing.T) {
	prompt := BuildPrompt(model.EnrichmentIssue{SubjectKey: "x", Kind: model.IssueAmbiguousYear}, nil)

	if !strings.Contains(prompt, "no identity keys available") {
		t.Error("Expected message about missing keys")
	}
	if !strings.Contains(prompt, "(none recorded)") {
		t.Error("Expected placeholder for empty detail and candidates")
	}
}

func TestBuildPrompt_ManyKeys(t *testing.T) {
	keys := make([]string, 25)
	for i := 0; i < 25; i++ {
		keys[i] = "M|SWIMMER|" + string(rune('A'+i)) + "|1990|Team"
	}

	prompt := BuildPrompt(model.EnrichmentIssue{SubjectKey: keys[0]}, keys)

	if !strings.Contains(prompt, "and 5 more keys") {
		t.Error("Expected truncation message for many keys")
	}
	if !strings.Contains(prompt, keys[0]) {
		t.Error("Expected first key to be in prompt")
	}
}

func TestLeakedKey(t *testing.T) {
	allowed := []string{
		"M|ROSSI|Mario|1990|Aquatica",
		"F|DE ROSSI|Maria Luisa|1991|Nuoto Club",
	}

	tests := []struct {
		name string
		note string
		want string
	}{
		{"no keys", "Both candidates are plausible.", ""},
		{"allowed key", "See M|ROSSI|Mario|1990|Aquatica in the dictionary.", ""},
		{"allowed key with punctuation", "Compare M|ROSSI|Mario|1990|Aquatica.", ""},
		{"spaced key cited by tail", "The entry ROSSI|Maria Luisa|1991|Nuoto matches.", ""},
		{"fabricated key", "Consider M|FINTO|Gino|1985|Nessuna too.", "M|FINTO|Gino|1985|Nessuna"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := leakedKey(tt.note, allowed); got != tt.want {
				t.Errorf("leakedKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCitedKeys(t *testing.T) {
	allowed := []string{
		"M|ROSSI|Mario|1990|Aquatica",
		"F|BIANCHI|Anna|1992|Nuoto Club",
	}
	note := "M|ROSSI|Mario|1990|Aquatica carries individual evidence."

	cited := citedKeys(note, allowed)
	if len(cited) != 1 || cited[0] != allowed[0] {
		t.Errorf("citedKeys() = %v, want [%s]", cited, allowed[0])
	}
}

func TestAllowedKeysFromDictionary(t *testing.T) {
	dict := model.NewDictionary("2024")
	dict.Swimmers["M|ROSSI|Mario|1990|Aquatica"] = &model.Swimmer{}
	dict.Swimmers["|BIANCHI|Luca|1988|Nuoto Club"] = &model.Swimmer{}
	dict.Teams["Aquatica"] = &model.Team{}

	keys := AllowedKeysFromDictionary(dict)
	want := []string{
		"Aquatica",
		"M|ROSSI|Mario|1990|Aquatica",
		"|BIANCHI|Luca|1988|Nuoto Club",
	}
	if len(keys) != len(want) {
		t.Fatalf("got %d keys, want %d", len(keys), len(want))
	}
	for i, k := range want {
		if keys[i] != k {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], k)
		}
	}

	if got := AllowedKeysFromDictionary(nil); got != nil {
		t.Errorf("nil dictionary: got %v, want nil", got)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Provider != "" {
		t.Errorf("Expected provider to be empty (disabled), got %q", config.Provider)
	}
	if !config.StrictKeys {
		t.Error("Expected strict keys to be enabled by default")
	}
	if config.Timeout <= 0 {
		t.Error("Expected positive timeout")
	}
	if config.MaxTokens <= 0 {
		t.Error("Expected positive max tokens")
	}
}

func TestConfigFromModel(t *testing.T) {
	cfg := ConfigFromModel(
		model.LLMConfig{Provider: "openai", Model: "gpt-4o-mini", APIKey: "k", Timeout: 10, MaxTokens: 200},
		model.HTTPConfig{HTTPProxy: "http://proxy:3128"},
	)

	if cfg.Provider != "openai" || cfg.Model != "gpt-4o-mini" || cfg.APIKey != "k" {
		t.Errorf("Unexpected provider fields: %+v", cfg)
	}
	if cfg.Timeout != 10 || cfg.MaxTokens != 200 {
		t.Errorf("Unexpected limits: %+v", cfg)
	}
	if !cfg.StrictKeys {
		t.Error("Expected strict keys to stay on")
	}
	if cfg.HTTPProxy != "http://proxy:3128" {
		t.Errorf("Expected proxy carried over, got %q", cfg.HTTPProxy)
	}

	// Zero limits keep the defaults.
	cfg = ConfigFromModel(model.LLMConfig{Provider: "ollama"}, model.HTTPConfig{})
	if cfg.Timeout != 30 || cfg.MaxTokens != 400 {
		t.Errorf("Expected defaults for zero limits, got timeout=%d maxTokens=%d", cfg.Timeout, cfg.MaxTokens)
	}
}

// Mock error type for testing
type mockError struct {
	msg string
}

func (e *mockError) Error() string {
	return e.msg
}
