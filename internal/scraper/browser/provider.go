// Package browser performs lookups against real store sites with a headless
// browser. Requires Chrome/Chromium on the host.
package browser

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/pricehound/pricehound/internal/config"
	"github.com/pricehound/pricehound/pkg/models"
)

// Provider implements models.ScrapeProvider on top of chromedp.
type Provider struct {
	navTimeout time.Duration
}

// NewProvider creates a browser provider.
func NewProvider(cfg config.ScraperConfig) *Provider {
	return &Provider{navTimeout: cfg.NavTimeout}
}

func (p *Provider) Name() string { return "browser" }

// NewSession launches one browser allocator scoped to a single job run. The
// allocator is shared by all of the run's lookups and torn down on Close; a
// launch failure aborts the job before any task runs.
func (p *Provider) NewSession(ctx context.Context) (models.ScrapeSession, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so a missing binary fails the job up front
	// instead of on the first task.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	return &session{
		browserCtx: browserCtx,
		navTimeout: p.navTimeout,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
	}, nil
}

type session struct {
	browserCtx context.Context
	navTimeout time.Duration
	cancel     context.CancelFunc
}

func (s *session) Close() error {
	s.cancel()
	return nil
}

// Lookup renders the store's search page for the product and extracts the best
// match. Every failure is returned as-is; the orchestration layer decides how
// often to retry.
func (s *session) Lookup(ctx context.Context, store models.Store, product models.Product) (*models.Result, error) {
	searchURL, err := buildSearchURL(store.URL, product)
	if err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, s.navTimeout)
	defer cancelTimeout()

	// Abort the navigation early if the per-task context expires first.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var html string
	err = chromedp.Run(tabCtx,
		chromedp.Navigate(searchURL),
		chromedp.WaitReady("body"),
		// Give client-side rendering a moment to settle.
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("render %s: %w", searchURL, err)
	}

	listing, err := extractBestListing(html, product)
	if err != nil {
		return nil, err
	}

	return listing.toResult(store, product), nil
}

// buildSearchURL appends the product query to the store's base URL.
func buildSearchURL(base string, product models.Product) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse store URL %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("store URL %q must have scheme and host", base)
	}

	q := u.Query()
	q.Set("q", product.Brand+" "+product.Name)
	u.Path = "/search"
	u.RawQuery = q.Encode()
	return u.String(), nil
}
