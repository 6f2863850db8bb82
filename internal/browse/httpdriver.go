package browse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
	"github.com/ppiankov/heatsheet/internal/identity"
	"github.com/ppiankov/heatsheet/internal/layout"
	"github.com/ppiankov/heatsheet/internal/metrics"
	"github.com/ppiankov/heatsheet/internal/model"
	"github.com/ppiankov/heatsheet/internal/util"
	"github.com/ppiankov/heatsheet/internal/worker"
)

// errNotLoaded is returned by session methods called before Load.
var errNotLoaded = errors.New("no page loaded")

// maxCrawlDelay caps robots.txt crawl delays. Some sites declare delays in
// the minutes, which would starve the poll budget.
const maxCrawlDelay = 10 * time.Second

// HTTPDriver drives portal pages over plain HTTP: menu clicks become GET
// requests against the targets the page advertises, panel reads re-fetch
// the panel fragment. Polling therefore observes server-side rendering
// progress the same way a browser would observe client-side rendering.
type HTTPDriver struct {
	client   *http.Client
	ua       string
	maxBytes int64
	limiter  *worker.Limiter
	robots   *util.RobotsChecker
	registry *layout.Registry

	// newBackOff builds the retry policy for one fetch. Swapped out in
	// tests to avoid real backoff waits.
	newBackOff func(ctx context.Context) backoff.BackOff

	base    *url.URL
	doc     *goquery.Document
	lay     layout.Layout
	modeURL string
	menu    map[string]string
	tabs    map[string]string

	panelMarkup    string
	pendingRanking string
	havePending    bool
}

// NewHTTPDriver creates a driver session from the HTTP configuration.
func NewHTTPDriver(cfg model.HTTPConfig, registry *layout.Registry) *HTTPDriver {
	transport := &http.Transport{
		Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
	}
	if cfg.InsecureTLS {
		transport.TLSClientConfig = util.InsecureTLSConfig()
	}

	return &HTTPDriver{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		ua:       cfg.UserAgent,
		maxBytes: cfg.MaxBodyBytes,
		limiter:  worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst),
		robots:   util.NewRobotsChecker(cfg.UserAgent, cfg.Timeout),
		registry: registry,
		newBackOff: func(ctx context.Context) backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 500 * time.Millisecond
			bo.MaxElapsedTime = 30 * time.Second
			return backoff.WithContext(backoff.WithMaxRetries(bo, 3), ctx)
		},
	}
}

// fetch retrieves one URL with robots clearance, rate limiting and retry on
// transient failures. 429 and 5xx responses are retried, other failures are
// permanent.
func (d *HTTPDriver) fetch(ctx context.Context, rawURL string, ajax bool) (body, finalURL string, err error) {
	allowed, delay, err := d.robots.CanFetch(ctx, rawURL)
	if err == nil && !allowed {
		return "", "", fmt.Errorf("blocked by robots.txt: %s", rawURL)
	}
	if delay > maxCrawlDelay {
		delay = maxCrawlDelay
	}
	if err := d.limiter.WaitWithDelay(ctx, rawURL, delay); err != nil {
		return "", "", fmt.Errorf("rate limit wait: %w", err)
	}

	op := func() error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if reqErr != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", reqErr))
		}
		req.Header.Set("User-Agent", d.ua)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		if ajax {
			req.Header.Set("X-Requested-With", "XMLHttpRequest")
		}

		resp, doErr := d.client.Do(req)
		if doErr != nil {
			return fmt.Errorf("fetch: %w", doErr)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status))
		}

		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes))
		if readErr != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", readErr))
		}
		body = string(raw)
		finalURL = resp.Request.URL.String()
		return nil
	}

	if err := backoff.Retry(op, d.newBackOff(ctx)); err != nil {
		return "", "", err
	}
	metrics.RecordPageFetched()
	return body, finalURL, nil
}

// Load opens the meet page and detects its layout.
func (d *HTTPDriver) Load(ctx context.Context, rawURL string) error {
	body, finalURL, err := d.fetch(ctx, rawURL, false)
	if err != nil {
		return fmt.Errorf("loading meet page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("parsing meet page: %w", err)
	}
	lay, err := d.registry.Detect(doc)
	if err != nil {
		return fmt.Errorf("detecting layout of %s: %w", finalURL, err)
	}
	base, err := url.Parse(finalURL)
	if err != nil {
		return fmt.Errorf("parse final URL: %w", err)
	}

	d.base = base
	d.doc = doc
	d.lay = lay
	d.modeURL = finalURL
	d.menu = nil
	d.tabs = nil
	d.havePending = false
	return nil
}

// Layout returns the layout detected by Load.
func (d *HTTPDriver) Layout() layout.Layout {
	return d.lay
}

// CurrentURL returns the address of the loaded page.
func (d *HTTPDriver) CurrentURL() string {
	if d.base == nil {
		return ""
	}
	return d.base.String()
}

// ClickEventMode follows the results toggle of the loaded page.
func (d *HTTPDriver) ClickEventMode(ctx context.Context) error {
	if d.lay == nil {
		return errNotLoaded
	}
	if !d.lay.Interactive() {
		return nil
	}

	href, ok := d.doc.Find(layout.PortalToggle).First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return fmt.Errorf("event mode toggle not found on %s", d.CurrentURL())
	}
	return d.refreshMode(ctx, d.resolve(href))
}

// refreshMode re-fetches the event view and replaces the working document.
func (d *HTTPDriver) refreshMode(ctx context.Context, target string) error {
	body, finalURL, err := d.fetch(ctx, target, false)
	if err != nil {
		return fmt.Errorf("entering event mode: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("parsing event mode page: %w", err)
	}
	d.doc = doc
	d.modeURL = finalURL
	d.indexMenu()
	return nil
}

// indexMenu maps menu titles to their targets for SelectEvent.
func (d *HTTPDriver) indexMenu() {
	d.menu = make(map[string]string)
	d.doc.Find(layout.PortalMenu).Each(func(_ int, a *goquery.Selection) {
		title := identity.Collapse(a.Text())
		href, ok := a.Attr("href")
		if title == "" || !ok {
			return
		}
		d.menu[title] = href
	})
}

// InEventMode checks whether the event menu has rendered, re-fetching the
// event view when it has not.
func (d *HTTPDriver) InEventMode(ctx context.Context) (bool, error) {
	if d.lay == nil {
		return false, errNotLoaded
	}
	if !d.lay.Interactive() {
		return true, nil
	}
	if d.lay.EventModeActive(d.doc) {
		d.indexMenu()
		return true, nil
	}
	if err := d.refreshMode(ctx, d.modeURL); err != nil {
		return false, err
	}
	return d.lay.EventModeActive(d.doc), nil
}

// EventTitles lists the program entries currently shown in the menu.
func (d *HTTPDriver) EventTitles(ctx context.Context) ([]string, error) {
	if d.lay == nil {
		return nil, errNotLoaded
	}
	titles := d.lay.EventTitles(d.doc)
	if len(titles) == 0 && d.lay.Interactive() {
		if err := d.refreshMode(ctx, d.modeURL); err != nil {
			return nil, err
		}
		titles = d.lay.EventTitles(d.doc)
	}
	return titles, nil
}

// SelectEvent opens the event with the given menu title and indexes its
// panel tabs.
func (d *HTTPDriver) SelectEvent(ctx context.Context, title string) error {
	if d.lay == nil {
		return errNotLoaded
	}

	want := identity.Collapse(title)
	href, ok := d.menu[want]
	if !ok {
		if err := d.refreshMode(ctx, d.modeURL); err != nil {
			return err
		}
		if href, ok = d.menu[want]; !ok {
			return fmt.Errorf("event %q not in menu", title)
		}
	}

	body, _, err := d.fetch(ctx, d.resolve(href), true)
	if err != nil {
		return fmt.Errorf("selecting event %q: %w", title, err)
	}
	d.panelMarkup = body
	d.havePending = false

	panel, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("parsing event panel: %w", err)
	}
	d.tabs = make(map[string]string)
	panel.Find(layout.PortalTabs).Each(func(_ int, a *goquery.Selection) {
		name, _ := a.Attr("data-pannello")
		turl, ok := a.Attr("href")
		if name == "" || !ok {
			return
		}
		d.tabs[name] = turl
	})
	return nil
}

// HeatsMarkup reads the heats panel, fetching it fresh on every call so a
// polling caller observes rendering progress.
func (d *HTTPDriver) HeatsMarkup(ctx context.Context) (string, error) {
	if d.lay == nil {
		return "", errNotLoaded
	}
	turl, ok := d.tabs["batterie"]
	if !ok {
		return d.panelMarkup, nil
	}
	body, _, err := d.fetch(ctx, d.resolve(turl), true)
	if err != nil {
		return "", fmt.Errorf("reading heats panel: %w", err)
	}
	return body, nil
}

// SelectRankingTab switches to the summary panel. The fetched fragment is
// kept for the next RankingMarkup read.
func (d *HTTPDriver) SelectRankingTab(ctx context.Context) error {
	if d.lay == nil {
		return errNotLoaded
	}
	turl, ok := d.tabs["classifica"]
	if !ok {
		return fmt.Errorf("summary tab not present on %s", d.CurrentURL())
	}
	body, _, err := d.fetch(ctx, d.resolve(turl), true)
	if err != nil {
		return fmt.Errorf("selecting summary tab: %w", err)
	}
	d.pendingRanking = body
	d.havePending = true
	return nil
}

// ToggleRankingTab flips to the heats panel and back.
func (d *HTTPDriver) ToggleRankingTab(ctx context.Context) error {
	if d.lay == nil {
		return errNotLoaded
	}
	if turl, ok := d.tabs["batterie"]; ok {
		if _, _, err := d.fetch(ctx, d.resolve(turl), true); err != nil {
			return fmt.Errorf("toggling away from summary tab: %w", err)
		}
	}
	return d.SelectRankingTab(ctx)
}

// RankingMarkup reads the summary panel. The fragment stored by the last
// tab selection is consumed first; later calls fetch fresh.
func (d *HTTPDriver) RankingMarkup(ctx context.Context) (string, error) {
	if d.lay == nil {
		return "", errNotLoaded
	}
	if d.havePending {
		d.havePending = false
		return d.pendingRanking, nil
	}
	turl, ok := d.tabs["classifica"]
	if !ok {
		return "", fmt.Errorf("summary tab not present on %s", d.CurrentURL())
	}
	body, _, err := d.fetch(ctx, d.resolve(turl), true)
	if err != nil {
		return "", fmt.Errorf("reading summary panel: %w", err)
	}
	return body, nil
}

// PageSource returns the markup of the loaded page.
func (d *HTTPDriver) PageSource(ctx context.Context) (string, error) {
	if d.doc == nil {
		return "", errNotLoaded
	}
	return d.doc.Html()
}

// Snapshot renders the visible text of the current page, one block per
// line. It stands in for a screenshot in failure artifacts.
func (d *HTTPDriver) Snapshot(ctx context.Context) ([]byte, error) {
	if d.doc == nil {
		return nil, errNotLoaded
	}
	var lines []string
	for _, raw := range strings.Split(d.doc.Find("body").Text(), "\n") {
		if line := identity.Collapse(raw); line != "" {
			lines = append(lines, line)
		}
	}
	return []byte(strings.Join(lines, "\n") + "\n"), nil
}

// Close releases the session.
func (d *HTTPDriver) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

// resolve turns a page-relative target into an absolute URL.
func (d *HTTPDriver) resolve(href string) string {
	ref, err := url.Parse(href)
	if err != nil || d.base == nil {
		return href
	}
	return d.base.ResolveReference(ref).String()
}
