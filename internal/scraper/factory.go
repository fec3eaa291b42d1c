// Package scraper selects and constructs the price-lookup backend.
package scraper

import (
	"fmt"

	"github.com/pricehound/pricehound/internal/config"
	"github.com/pricehound/pricehound/internal/scraper/browser"
	"github.com/pricehound/pricehound/internal/scraper/synthetic"
	"github.com/pricehound/pricehound/pkg/models"
)

// NewProvider constructs the appropriate scrape provider based on config.
// Called once at server startup.
func NewProvider(cfg config.ScraperConfig) (models.ScrapeProvider, error) {
	switch cfg.Provider {
	case "browser":
		return browser.NewProvider(cfg), nil
	case "synthetic":
		return synthetic.NewProvider(), nil
	default:
		return nil, fmt.Errorf("unknown scrape provider %q: must be one of browser, synthetic", cfg.Provider)
	}
}
