package scraper

import (
	"errors"

	"github.com/pricehound/pricehound/internal/scraper/browser"
)

var (
	ErrProviderUnavailable = errors.New("scrape provider unavailable")
	ErrLookupTimeout       = errors.New("lookup timed out")

	// ErrNoMatch aliases the sentinel defined in the browser subpackage so
	// both packages return the identical error value without an import cycle.
	ErrNoMatch = browser.ErrNoMatch
)
