package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/heatsheet/internal/crawler"
	"github.com/ppiankov/heatsheet/internal/notify"
	"github.com/ppiankov/heatsheet/internal/server"
	"github.com/ppiankov/heatsheet/internal/storage"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the crawl trigger API",
	Long: `Serve runs the HTTP trigger service: POST /api/crawl queues a meet
crawl and returns a job id, GET /api/jobs/{id} reports its progress,
/healthz and /metrics serve liveness and Prometheus exposition.

Jobs run in the background; a crawl already running finishes its meet
even while the server shuts down.

Example:
  heatsheet serve
  heatsheet serve --addr :9000 --results-dir /var/lib/heatsheet`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().StringVar(&resultsDir, "results-dir", "", "results directory (default from config)")
	serveCmd.Flags().StringVar(&debugDir, "debug-dir", "", "debug artifact directory (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if resultsDir != "" {
		cfg.Crawl.ResultsDir = resultsDir
	}
	if debugDir != "" {
		cfg.Crawl.DebugDir = debugDir
	}

	log := newLogger(verbose)

	store, err := storage.New(cfg.Crawl.ResultsDir)
	if err != nil {
		return fmt.Errorf("open results directory: %w", err)
	}

	opts := []server.Option{server.WithLogger(log)}
	pub := notify.New(cfg.Notify, notify.WithLogger(log))
	defer func() { _ = pub.Close() }()
	if pub.Enabled() {
		opts = append(opts, server.WithPublisher(pub))
	}

	c := crawler.New(cfg, crawler.WithLogger(log))
	srv := server.New(cfg, c, store, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}
