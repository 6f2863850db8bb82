package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/heatsheet/internal/model"
)

// CrawlFunc runs one meet crawl. The crawler package provides the real
// implementation; batches stay decoupled from it so the pool can live
// below the page-driver layer.
type CrawlFunc func(ctx context.Context, url string) (*model.Meet, error)

// CrawlJob is one meet URL bound to its crawl function.
type CrawlJob struct {
	URL   string
	Crawl CrawlFunc
}

// Execute runs the crawl and wraps its outcome.
func (j *CrawlJob) Execute(ctx context.Context) Result {
	meet, err := j.Crawl(ctx, j.URL)
	return &CrawlResult{URL: j.URL, Meet: meet, Err: err}
}

// CrawlResult is the outcome of one meet crawl in a batch.
type CrawlResult struct {
	URL  string
	Meet *model.Meet
	Err  error
}

// GetError returns the crawl error, nil on success.
func (r *CrawlResult) GetError() error { return r.Err }

// BatchProcessor crawls a list of meets on a bounded pool.
type BatchProcessor struct {
	crawl   CrawlFunc
	workers int
}

// NewBatchProcessor creates a batch processor running at most workers
// meets concurrently.
func NewBatchProcessor(crawl CrawlFunc, workers int) *BatchProcessor {
	return &BatchProcessor{crawl: crawl, workers: workers}
}

// ProcessURLs crawls every URL and returns one result per URL, in
// completion order.
func (b *BatchProcessor) ProcessURLs(ctx context.Context, urls []string) []*CrawlResult {
	if len(urls) == 0 {
		return []*CrawlResult{}
	}

	pool := NewPoolContext(ctx, b.workers)
	pool.Start()

	for _, url := range urls {
		pool.Submit(&CrawlJob{URL: url, Crawl: b.crawl})
	}

	results := pool.Wait()
	crawls := make([]*CrawlResult, len(results))
	for i, r := range results {
		crawls[i] = r.(*CrawlResult)
	}
	return crawls
}

// ProcessFile crawls the URLs listed in a file, one per line.
func (b *BatchProcessor) ProcessFile(ctx context.Context, path string) ([]*CrawlResult, error) {
	urls, err := ReadURLsFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("read URLs: %w", err)
	}
	return b.ProcessURLs(ctx, urls), nil
}

// ReadURLsFromFile reads meet URLs from a file, skipping blank lines and
// # comments and dropping duplicates.
func ReadURLsFromFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var urls []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			urls = append(urls, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	return urls, nil
}
