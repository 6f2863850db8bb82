package llm

import (
	"context"
	"fmt"

	"github.com/ppiankov/heatsheet/internal/model"
)

// Annotator drives one provider over the unsettled issues of an
// enrichment run. Every failure degrades to a report warning; the
// enrichment result itself is never at risk.
type Annotator struct {
	provider Provider
	config   Config
}

// NewAnnotator creates an annotator from configuration. With no provider
// configured the annotator is disabled and AnnotateAll returns nil.
func NewAnnotator(config Config) (*Annotator, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}
	return &Annotator{provider: provider, config: config}, nil
}

// IsEnabled reports whether a provider is configured.
func (a *Annotator) IsEnabled() bool {
	return a.provider != nil
}

// ProviderName returns the configured provider's name, or "" when
// disabled.
func (a *Annotator) ProviderName() string {
	if a.provider == nil {
		return ""
	}
	return a.provider.Name()
}

// AnnotateAll drafts a note for each issue, writing it into the issue in
// place. allowedKeys is the identity-key allowlist notes may reference.
func (a *Annotator) AnnotateAll(ctx context.Context, issues []model.EnrichmentIssue, allowedKeys []string) *model.AnnotationReport {
	if a.provider == nil {
		return nil
	}

	report := &model.AnnotationReport{
		Enabled:    true,
		Provider:   a.provider.Name(),
		Model:      a.config.Model,
		StrictKeys: a.config.StrictKeys,
	}

	if !a.provider.IsAvailable(ctx) {
		report.Enabled = false
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("provider %s is not available, no notes drafted", a.provider.Name()))
		return report
	}

	for i := range issues {
		resp, err := a.provider.Annotate(ctx, AnnotateRequest{
			Issue:       issues[i],
			AllowedKeys: allowedKeys,
		})
		if err != nil {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("annotating %s failed: %v", issues[i].SubjectKey, err))
			continue
		}
		issues[i].Note = resp.Note
		report.Annotated++
		report.TokensUsed += resp.TokensUsed
		if resp.Model != "" {
			report.Model = resp.Model
		}
	}
	return report
}
