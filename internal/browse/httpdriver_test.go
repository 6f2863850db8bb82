package browse

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ppiankov/heatsheet/internal/layout"
	"github.com/ppiankov/heatsheet/internal/model"
)

func testConfig() model.HTTPConfig {
	return model.HTTPConfig{
		Timeout:           5 * time.Second,
		UserAgent:         "heatsheet-test/0.1",
		MaxBodyBytes:      1 << 20,
		RequestsPerSecond: 1000,
		Burst:             100,
	}
}

func newTestDriver() *HTTPDriver {
	d := NewHTTPDriver(testConfig(), layout.NewRegistry())
	d.newBackOff = func(ctx context.Context) backoff.BackOff {
		return backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2), ctx)
	}
	return d
}

func TestHTTPDriverNavigatesPortal(t *testing.T) {
	var heatsReads atomic.Int32
	var rankingReads atomic.Int32
	var sawAjaxHeader atomic.Bool

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/meet", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<div id="intestazione"><h1>Trofeo Test</h1></div>
			<a id="btnRisultati" href="/meet/gare">Risultati</a>
			<div id="contenutoGara"></div></body></html>`)
	})
	mux.HandleFunc("/meet/gare", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<ul id="elencoGare"><li><a href="/meet/gara/1">100 SL Maschi</a></li></ul>
			<div id="contenutoGara"></div></body></html>`)
	})
	mux.HandleFunc("/meet/gara/1", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
			sawAjaxHeader.Store(true)
		}
		fmt.Fprint(w, `<ul id="tabGara">
			<a data-pannello="batterie" href="/meet/gara/1/batterie">Batterie</a>
			<a data-pannello="classifica" href="/meet/gara/1/classifica">Classifica</a></ul>`)
	})
	mux.HandleFunc("/meet/gara/1/batterie", func(w http.ResponseWriter, r *http.Request) {
		if heatsReads.Add(1) == 1 {
			fmt.Fprint(w, `<table class="batterie"></table>`)
			return
		}
		fmt.Fprint(w, `<table class="batterie"><tr class="riga">
			<td class="corsia">4</td><td class="atleta">ROSSI Mario</td>
			<td class="anno">1990</td><td class="societa">Aquatica</td>
			<td class="tempo">1'02"34</td></tr></table>`)
	})
	mux.HandleFunc("/meet/gara/1/classifica", func(w http.ResponseWriter, r *http.Request) {
		rankingReads.Add(1)
		fmt.Fprint(w, `<table class="classifica"><tr class="categoria"><td>Master 25</td></tr></table>`)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	d := newTestDriver()
	defer d.Close()
	ctx := context.Background()

	if err := d.Load(ctx, server.URL+"/meet"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.Layout().Name() != "portal" {
		t.Fatalf("detected layout %q, want portal", d.Layout().Name())
	}

	if err := d.ClickEventMode(ctx); err != nil {
		t.Fatalf("ClickEventMode: %v", err)
	}
	active, err := d.InEventMode(ctx)
	if err != nil || !active {
		t.Fatalf("InEventMode = (%v, %v), want (true, nil)", active, err)
	}

	titles, err := d.EventTitles(ctx)
	if err != nil {
		t.Fatalf("EventTitles: %v", err)
	}
	if len(titles) != 1 || titles[0] != "100 SL Maschi" {
		t.Fatalf("EventTitles = %v", titles)
	}

	if err := d.SelectEvent(ctx, "100 SL Maschi"); err != nil {
		t.Fatalf("SelectEvent: %v", err)
	}
	if !sawAjaxHeader.Load() {
		t.Error("event selection did not use the AJAX request header")
	}

	first, err := d.HeatsMarkup(ctx)
	if err != nil {
		t.Fatalf("HeatsMarkup: %v", err)
	}
	if strings.Contains(first, "ROSSI") {
		t.Fatal("first heats read unexpectedly populated; fixture broken")
	}
	second, err := d.HeatsMarkup(ctx)
	if err != nil {
		t.Fatalf("HeatsMarkup: %v", err)
	}
	if !strings.Contains(second, "ROSSI") {
		t.Error("second heats read did not observe the populated panel")
	}

	if err := d.SelectRankingTab(ctx); err != nil {
		t.Fatalf("SelectRankingTab: %v", err)
	}
	markup, err := d.RankingMarkup(ctx)
	if err != nil {
		t.Fatalf("RankingMarkup: %v", err)
	}
	if !d.Layout().RankingReady(markup) {
		t.Error("ranking markup not recognized as ready")
	}
	if got := rankingReads.Load(); got != 1 {
		t.Errorf("ranking fetched %d times, want 1 (tab selection is consumed)", got)
	}
	if _, err := d.RankingMarkup(ctx); err != nil {
		t.Fatalf("RankingMarkup refetch: %v", err)
	}
	if got := rankingReads.Load(); got != 2 {
		t.Errorf("ranking fetched %d times after poll, want 2", got)
	}
}

func TestHTTPDriverRetriesTransient(t *testing.T) {
	var attempts atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/meet", func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `<html><body><a id="btnRisultati" href="/x">R</a></body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	d := newTestDriver()
	defer d.Close()

	if err := d.Load(context.Background(), server.URL+"/meet"); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestHTTPDriverPermanentFailure(t *testing.T) {
	var attempts atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/meet", func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	d := newTestDriver()
	defer d.Close()

	if err := d.Load(context.Background(), server.URL+"/meet"); err == nil {
		t.Fatal("expected error for 404")
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("404 retried: %d attempts, want 1", got)
	}
}

func TestHTTPDriverRobotsBlocked(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
	})
	mux.HandleFunc("/private", func(w http.ResponseWriter, r *http.Request) {
		t.Error("blocked path was fetched anyway")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	d := newTestDriver()
	defer d.Close()

	err := d.Load(context.Background(), server.URL+"/private")
	if err == nil || !strings.Contains(err.Error(), "robots.txt") {
		t.Fatalf("expected robots.txt block, got %v", err)
	}
}

func TestArtifactWriter(t *testing.T) {
	dir := t.TempDir()
	w := NewArtifactWriter(dir)
	w.now = func() time.Time { return time.Date(2025, 1, 15, 10, 45, 12, 0, time.UTC) }

	path, err := w.Dump("100 SL Maschi (heats)", "<html></html>", []byte("snapshot"))
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	wantBase := "20250115-104512-100-sl-maschi-heats"
	if filepath.Base(path) != wantBase+".html" {
		t.Errorf("markup artifact = %s, want %s.html", filepath.Base(path), wantBase)
	}
	if _, err := os.Stat(filepath.Join(dir, wantBase+".txt")); err != nil {
		t.Errorf("snapshot artifact missing: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != "<html></html>" {
		t.Errorf("markup content = %q, %v", got, err)
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"100 SL Maschi", "100-sl-maschi"},
		{"Mistaffetta 4x50 MX!", "mistaffetta-4x50-mx"},
		{"  ", "page"},
		{"--a--", "a"},
	}
	for _, tt := range tests {
		if got := slug(tt.in); got != tt.want {
			t.Errorf("slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
