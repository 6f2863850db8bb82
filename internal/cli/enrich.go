package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/heatsheet/internal/enrich"
	"github.com/ppiankov/heatsheet/internal/llm"
	"github.com/ppiankov/heatsheet/internal/model"
	"github.com/ppiankov/heatsheet/internal/storage"
)

var (
	enrichPrimary  string
	enrichAux      []string
	enrichOut      string
	enrichStatsOut string
	llmEnabled     bool
	llmProvider    string
	llmModel       string
)

// enrichCmd represents the enrich command
var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Fill dictionary gaps from auxiliary sources",
	Long: `Enrich reads a crawled meet document and fills blank swimmer
attributes (gender, year of birth, external id) from auxiliary dictionary
files. Unambiguous auxiliary values are applied and gendered entries are
re-keyed; conflicting values are recorded as issues, never guessed.

Auxiliary files that fail to parse are skipped and counted; the run
continues with the remaining files.

Example:
  heatsheet enrich --primary results/2024/campionati.json --aux fed-roster.json
  heatsheet enrich --primary doc.json --aux aux-dir/ --out enriched.json
  heatsheet enrich --primary doc.json --aux a.json --llm --llm-provider openai`,
	RunE: runEnrich,
}

func init() {
	rootCmd.AddCommand(enrichCmd)

	enrichCmd.Flags().StringVar(&enrichPrimary, "primary", "", "crawled meet document to enrich (required)")
	_ = enrichCmd.MarkFlagRequired("primary")
	enrichCmd.Flags().StringArrayVar(&enrichAux, "aux", nil, "auxiliary dictionary file or directory (repeatable, required)")
	_ = enrichCmd.MarkFlagRequired("aux")
	enrichCmd.Flags().StringVar(&enrichOut, "out", "", "output path (default: overwrite --primary)")
	enrichCmd.Flags().StringVar(&enrichStatsOut, "stats", "", "also write the run stats as JSON to this path")

	// LLM flags
	enrichCmd.Flags().BoolVar(&llmEnabled, "llm", false, "draft review notes for ambiguous issues with an LLM")
	enrichCmd.Flags().StringVar(&llmProvider, "llm-provider", "openai", "LLM provider (openai, ollama)")
	enrichCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name (provider default when empty)")
}

func runEnrich(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	log := newLogger(verbose)

	doc, err := storage.LoadMeet(enrichPrimary)
	if err != nil {
		return fmt.Errorf("load primary document: %w", err)
	}

	dicts, skipped := storage.LoadAuxiliary(enrichAux...)
	for _, serr := range skipped {
		fmt.Fprintf(os.Stderr, "⚠ auxiliary skipped: %v\n", serr)
	}
	if len(dicts) == 0 {
		return fmt.Errorf("no usable auxiliary dictionaries (%d skipped)", len(skipped))
	}

	e := enrich.New(log)
	stats := e.Enrich(&doc.Dictionary, dicts)
	stats.AuxSkipped = len(skipped)

	// The document carries the unsettled issues for the review workflow,
	// ambiguous first.
	doc.Issues = append(append([]model.EnrichmentIssue{}, stats.Ambiguous...), stats.Missing...)

	if report := annotateIssues(cfg, doc, len(stats.Ambiguous)); report != nil {
		printAnnotationReport(report)
	}

	outPath := enrichOut
	if outPath == "" {
		outPath = enrichPrimary
	}
	if err := storage.SaveDocument(outPath, doc); err != nil {
		return fmt.Errorf("save enriched document: %w", err)
	}
	if enrichStatsOut != "" {
		if err := storage.SaveDocument(enrichStatsOut, stats); err != nil {
			return fmt.Errorf("save stats: %w", err)
		}
	}

	fmt.Fprintf(os.Stderr, "✓ Updated attributes: %d\n", stats.Updated)
	fmt.Fprintf(os.Stderr, "✓ Badges added:      %d\n", stats.BadgesAdded)
	if len(stats.Ambiguous) > 0 {
		fmt.Fprintf(os.Stderr, "⚠ Ambiguous:         %d\n", len(stats.Ambiguous))
	}
	if len(stats.Missing) > 0 {
		fmt.Fprintf(os.Stderr, "⚠ Still missing:     %d\n", len(stats.Missing))
	}
	if stats.AuxSkipped > 0 {
		fmt.Fprintf(os.Stderr, "⚠ Auxiliary skipped: %d\n", stats.AuxSkipped)
	}
	fmt.Fprintf(os.Stderr, "  Document: %s\n", outPath)

	return nil
}

// annotateIssues drafts review notes for the ambiguous issues when an LLM
// provider is configured. The first ambiguousCount entries of doc.Issues
// are the ambiguous ones; notes land on the document in place.
func annotateIssues(cfg *model.Config, doc *model.Meet, ambiguousCount int) *model.AnnotationReport {
	if llmEnabled {
		cfg.LLM.Provider = llmProvider
		if llmModel != "" {
			cfg.LLM.Model = llmModel
		}
	}
	if cfg.LLM.Provider == "" || ambiguousCount == 0 {
		return nil
	}

	// API keys come from the environment, never from the config file.
	switch cfg.LLM.Provider {
	case "openai":
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.LLM.APIKey == "" {
			fmt.Fprintf(os.Stderr, "⚠ annotator disabled: OPENAI_API_KEY environment variable not set\n")
			return nil
		}
	case "ollama":
		if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
			cfg.LLM.BaseURL = v
		}
	}

	annotator, err := llm.NewAnnotator(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠ annotator disabled: %v\n", err)
		return nil
	}
	if !annotator.IsEnabled() {
		return nil
	}

	keys := llm.AllowedKeysFromDictionary(&doc.Dictionary)
	return annotator.AnnotateAll(context.Background(), doc.Issues[:ambiguousCount], keys)
}

func printAnnotationReport(report *model.AnnotationReport) {
	if report.Enabled {
		fmt.Fprintf(os.Stderr, "✓ Drafted %d notes via %s/%s", report.Annotated, report.Provider, report.Model)
		if report.TokensUsed > 0 {
			fmt.Fprintf(os.Stderr, " (%d tokens)", report.TokensUsed)
		}
		fmt.Fprintln(os.Stderr)
	}
	for _, w := range report.Warnings {
		fmt.Fprintf(os.Stderr, "⚠ %s\n", w)
	}
}
