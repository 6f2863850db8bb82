package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/heatsheet/internal/crawler"
	"github.com/ppiankov/heatsheet/internal/model"
	"github.com/ppiankov/heatsheet/internal/notify"
	"github.com/ppiankov/heatsheet/internal/storage"
	"github.com/ppiankov/heatsheet/internal/worker"
)

var (
	season       string
	eventFilter  string
	crawlFile    string
	meetTimeout  time.Duration
	batchTimeout time.Duration
	userAgent    string
	maxBytes     int64
	insecureTLS  bool
	crawlWorkers int
	resultsDir   string
	debugDir     string
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl <url>",
	Short: "Crawl a meet results page into a JSON document",
	Long: `Crawl walks a meet's event menu, extracts every event's heats and
ranking tables, joins them into one record per competitor and writes a
normalized meet document under the results directory.

Events that fail to extract are skipped and counted; the crawl continues
with the remaining events and the document records how many were lost.

Example:
  heatsheet crawl --season 2024 https://example.org/meet/123
  heatsheet crawl --season 2024 --event-filter "Stile Libero" https://example.org/meet/123
  heatsheet crawl --season 2024 --file meets.txt --workers 4`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().StringVar(&season, "season", "", "season label for the results tree (required)")
	_ = crawlCmd.MarkFlagRequired("season")
	crawlCmd.Flags().StringVar(&crawlFile, "file", "", "crawl every URL listed in this file (one per line, # comments)")
	crawlCmd.Flags().StringVar(&eventFilter, "event-filter", "", "only crawl events whose menu title contains this substring")

	// HTTP flags
	crawlCmd.Flags().DurationVar(&meetTimeout, "timeout", 0, "per-meet timeout (default from config)")
	crawlCmd.Flags().DurationVar(&batchTimeout, "batch-timeout", 0, "overall timeout for --file mode (0 = no limit)")
	crawlCmd.Flags().StringVar(&userAgent, "ua", "", "HTTP User-Agent (default from config)")
	crawlCmd.Flags().Int64Var(&maxBytes, "max-bytes", 0, "max response bytes to read (default from config)")
	crawlCmd.Flags().BoolVar(&insecureTLS, "insecure", false, "skip TLS certificate verification (use for self-signed certs)")

	// Output flags
	crawlCmd.Flags().IntVar(&crawlWorkers, "workers", 0, "concurrent meets in --file mode (default from config)")
	crawlCmd.Flags().StringVar(&resultsDir, "results-dir", "", "results directory (default from config)")
	crawlCmd.Flags().StringVar(&debugDir, "debug-dir", "", "debug artifact directory (default from config)")
}

func applyCrawlFlags(cfg *model.Config) {
	if meetTimeout > 0 {
		cfg.Crawl.MeetTimeout = meetTimeout
	}
	if userAgent != "" {
		cfg.HTTP.UserAgent = userAgent
	}
	if maxBytes > 0 {
		cfg.HTTP.MaxBodyBytes = maxBytes
	}
	if insecureTLS {
		cfg.HTTP.InsecureTLS = true
	}
	if crawlWorkers > 0 {
		cfg.Crawl.Workers = crawlWorkers
	}
	if resultsDir != "" {
		cfg.Crawl.ResultsDir = resultsDir
	}
	if debugDir != "" {
		cfg.Crawl.DebugDir = debugDir
	}
}

func runCrawl(cmd *cobra.Command, args []string) error {
	if crawlFile == "" && len(args) != 1 {
		return fmt.Errorf("provide a meet URL or --file with a URL list")
	}
	if crawlFile != "" && len(args) > 0 {
		return fmt.Errorf("provide either a meet URL or --file, not both")
	}

	cfg := loadConfig()
	applyCrawlFlags(cfg)
	log := newLogger(verbose)

	store, err := storage.New(cfg.Crawl.ResultsDir)
	if err != nil {
		return fmt.Errorf("open results directory: %w", err)
	}
	pub := notify.New(cfg.Notify, notify.WithLogger(log))
	defer func() { _ = pub.Close() }()

	c := crawler.New(cfg, crawler.WithLogger(log))

	if crawlFile != "" {
		return runCrawlBatch(c, cfg, store, pub)
	}
	return runCrawlSingle(c, store, pub, args[0])
}

func runCrawlSingle(c *crawler.Crawler, store *storage.Storage, pub *notify.Publisher, url string) error {
	ctx := context.Background()

	req := crawler.Request{URL: url, Season: season, EventFilter: eventFilter}
	if verbose {
		fmt.Fprintf(os.Stderr, "Crawling: %s\n", url)
		req.OnProgress = func(done, total int, title string) {
			fmt.Fprintf(os.Stderr, "  [%d/%d] %s\n", done, total, title)
		}
	}

	meet, err := c.CrawlMeet(ctx, req)
	if err != nil {
		return err
	}

	path, err := store.SaveMeet(meet)
	if err != nil {
		return fmt.Errorf("save meet: %w", err)
	}
	publishMeet(ctx, pub, meet, path)

	fmt.Fprintf(os.Stderr, "✓ %s\n", meet.Title)
	fmt.Fprintf(os.Stderr, "  Events:   %d extracted, %d skipped\n", len(meet.Events), meet.SkippedEvents)
	fmt.Fprintf(os.Stderr, "  Swimmers: %d, teams: %d\n", len(meet.Swimmers), len(meet.Teams))
	fmt.Fprintf(os.Stderr, "  Document: %s\n", path)

	return nil
}

func runCrawlBatch(c *crawler.Crawler, cfg *model.Config, store *storage.Storage, pub *notify.Publisher) error {
	ctx := context.Background()
	if batchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, batchTimeout)
		defer cancel()
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Heatsheet Batch Crawl\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", crawlFile)
	fmt.Fprintf(os.Stderr, "  Season:       %s\n", season)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Crawl.Workers)
	fmt.Fprintf(os.Stderr, "  Results dir:  %s\n", cfg.Crawl.ResultsDir)
	fmt.Fprintf(os.Stderr, "\n")

	crawl := func(ctx context.Context, url string) (*model.Meet, error) {
		return c.CrawlMeet(ctx, crawler.Request{URL: url, Season: season, EventFilter: eventFilter})
	}
	processor := worker.NewBatchProcessor(crawl, cfg.Crawl.Workers)

	results, err := processor.ProcessFile(ctx, crawlFile)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	successCount := 0
	failureCount := 0
	for _, r := range results {
		if r.Err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", r.URL, r.Err)
			continue
		}
		path, err := store.SaveMeet(r.Meet)
		if err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: save: %v\n", r.URL, err)
			continue
		}
		publishMeet(ctx, pub, r.Meet, path)
		successCount++
		fmt.Fprintf(os.Stderr, "✓ %s (%d events, %d skipped)\n", r.Meet.Title, len(r.Meet.Events), r.Meet.SkippedEvents)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d meets\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", cfg.Crawl.ResultsDir)
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 {
		return fmt.Errorf("%d of %d meets failed", failureCount, len(results))
	}
	return nil
}

// publishMeet sends the meet-complete notification when brokers are
// configured. Failures warn; the document is already on disk.
func publishMeet(ctx context.Context, pub *notify.Publisher, meet *model.Meet, path string) {
	if !pub.Enabled() {
		return
	}
	err := pub.Publish(ctx, notify.MeetComplete{
		MeetURL:       meet.SourceURL,
		Season:        meet.Season,
		Title:         meet.Title,
		Events:        len(meet.Events),
		SkippedEvents: meet.SkippedEvents,
		ResultPath:    path,
		CrawledAt:     meet.CrawledAt,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠ notification failed for %s: %v\n", meet.SourceURL, err)
	}
}
