// Quick probe for layout detection against live meet pages.
// Fetches each URL, runs registry detection and prints what the layout
// reads off the landing page.
package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ppiankov/heatsheet/internal/layout"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: probe-layout <meet-url> [<meet-url> ...]")
		os.Exit(2)
	}

	fmt.Println("=== Layout Detection Probe ===")
	fmt.Println()

	registry := layout.NewRegistry()
	client := &http.Client{Timeout: 30 * time.Second}

	exit := 0
	for _, url := range os.Args[1:] {
		fmt.Printf("Probing: %s\n", url)
		fmt.Println(strings.Repeat("-", 60))

		doc, err := fetch(client, url)
		if err != nil {
			fmt.Printf("  ✗ fetch failed: %v\n\n", err)
			exit = 1
			continue
		}

		l, err := registry.Detect(doc)
		if err != nil {
			fmt.Printf("  ⚠ %v\n\n", err)
			exit = 1
			continue
		}

		header := l.MeetHeader(doc)
		titles := l.EventTitles(doc)

		fmt.Printf("  ✓ Layout: %s (interactive: %v)\n", l.Name(), l.Interactive())
		fmt.Printf("    Title:  %s\n", header.Title)
		if header.Place != "" {
			fmt.Printf("    Place:  %s\n", header.Place)
		}
		if header.DateStart != "" {
			fmt.Printf("    Dates:  %s to %s\n", header.DateStart, header.DateEnd)
		}
		fmt.Printf("    Events: %d\n", len(titles))
		for i, t := range titles {
			if i == 10 {
				fmt.Printf("      ... and %d more\n", len(titles)-10)
				break
			}
			fmt.Printf("      - %s\n", t)
		}
		fmt.Println()
	}

	fmt.Println("=== Probe Complete ===")
	fmt.Println()
	fmt.Println("Note: detection reads the landing page only.")
	fmt.Println("Interactive layouts need the full crawl to reach event tables.")
	os.Exit(exit)
}

func fetch(client *http.Client, url string) (*goquery.Document, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}
