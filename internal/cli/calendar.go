package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/heatsheet/internal/cache"
	"github.com/ppiankov/heatsheet/internal/calendar"
	"github.com/ppiankov/heatsheet/internal/model"
)

var (
	calFormat  string
	calOut     string
	calNoCache bool
	calTimeout time.Duration
)

// calendarCmd represents the calendar command
var calendarCmd = &cobra.Command{
	Use:   "calendar <url>",
	Short: "Extract a season calendar page into meet rows",
	Long: `Calendar fetches a season calendar page and emits its meet rows in a
fixed column order: start URL, date, cancelled flag, name, place, results
URL, year. Rows print to stdout unless --out is given.

Example:
  heatsheet calendar --season 2024 https://example.org/calendar/2024
  heatsheet calendar --season 2024 --format json --out calendar-2024.json https://example.org/calendar/2024`,
	Args: cobra.ExactArgs(1),
	RunE: runCalendar,
}

func init() {
	rootCmd.AddCommand(calendarCmd)

	calendarCmd.Flags().StringVar(&season, "season", "", "season label, used as the year for rows that print none (required)")
	_ = calendarCmd.MarkFlagRequired("season")
	calendarCmd.Flags().StringVar(&calFormat, "format", "", "output format: csv or json (default from config)")
	calendarCmd.Flags().StringVar(&calOut, "out", "", "output path (default stdout)")
	calendarCmd.Flags().BoolVar(&calNoCache, "no-cache", false, "disable the page cache (force fresh fetch)")
	calendarCmd.Flags().DurationVar(&calTimeout, "timeout", 0, "HTTP timeout (default from config)")
}

func runCalendar(cmd *cobra.Command, args []string) error {
	rawURL := args[0]

	cfg := loadConfig()
	if calFormat != "" {
		cfg.Output.Format = calFormat
	}
	if calTimeout > 0 {
		cfg.HTTP.Timeout = calTimeout
	}
	if calNoCache {
		cfg.Cache.Enabled = false
	}
	switch cfg.Output.Format {
	case "csv", "json":
	default:
		return fmt.Errorf("unknown format: %s (supported: csv, json)", cfg.Output.Format)
	}

	log := newLogger(verbose)
	opts := []calendar.Option{calendar.WithLogger(log)}
	if cfg.Cache.Enabled {
		store := cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
		opts = append(opts, calendar.WithCache(store, cfg.Cache.DiskTTL))
	}

	x := calendar.New(cfg.HTTP, opts...)
	rows, err := x.FetchSeason(context.Background(), rawURL)
	if err != nil {
		return fmt.Errorf("fetch season calendar: %w", err)
	}
	for i := range rows {
		if rows[i].Year == "" {
			rows[i].Year = season
		}
	}

	out := io.Writer(os.Stdout)
	if calOut != "" {
		f, err := os.Create(calOut)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	switch cfg.Output.Format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rows); err != nil {
			return fmt.Errorf("encode calendar: %w", err)
		}
	case "csv":
		if err := writeCalendarCSV(out, rows); err != nil {
			return fmt.Errorf("write calendar: %w", err)
		}
	}

	cancelled := 0
	for _, r := range rows {
		if r.Cancelled {
			cancelled++
		}
	}
	fmt.Fprintf(os.Stderr, "✓ %d meets (%d cancelled)\n", len(rows), cancelled)
	if calOut != "" {
		fmt.Fprintf(os.Stderr, "  Output: %s\n", calOut)
	}

	return nil
}

func writeCalendarCSV(out io.Writer, rows []model.CalendarRow) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"start_url", "date", "cancelled", "name", "place", "results_url", "year"}); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{r.StartURL, r.Date, strconv.FormatBool(r.Cancelled), r.Name, r.Place, r.ResultsURL, r.Year}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
