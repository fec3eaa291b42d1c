package browser

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pricehound/pricehound/pkg/models"
)

// ErrNoMatch is the sentinel returned when a rendered page yields no
// listings. It is re-exported as scraper.ErrNoMatch; it is defined here so
// this package does not import scraper, which imports it.
var ErrNoMatch = errors.New("no matching product found on page")

// listingSelectors are tried in order against common storefront markup.
var listingSelectors = []string{
	"[data-testid*=product]",
	".product-card",
	".product-item",
	".product-tile",
	"li.product",
	"article.product",
}

var priceSelectors = []string{
	"[data-testid*=price]",
	".price",
	".product-price",
	"[itemprop=price]",
}

// priceRe matches "12.99", "12,99", "€ 12,99", "12.99 EUR" and similar.
var priceRe = regexp.MustCompile(`(\d{1,5})[.,](\d{2})`)

// listing is one product entry extracted from a rendered page.
type listing struct {
	name         string
	price        *float64
	availability *string
	exactMatch   bool
}

func (l *listing) toResult(store models.Store, product models.Product) *models.Result {
	result := &models.Result{
		ProductID:    product.ID,
		ProductName:  product.Name,
		Brand:        product.Brand,
		StoreName:    store.Name,
		FoundName:    &l.name,
		Price:        l.price,
		Currency:     "EUR",
		Availability: l.availability,
		IsExactMatch: l.exactMatch,
	}
	if !l.exactMatch {
		note := "closest match on search page: " + l.name
		result.MatchNote = &note
	}
	return result
}

// extractBestListing parses rendered HTML and picks the listing that best
// matches the requested product: an exact name hit wins, otherwise the first
// listing is taken as a near match.
func extractBestListing(html string, product models.Product) (*listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var listings []*listing
	for _, sel := range listingSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if l := parseListing(s, product); l != nil {
				listings = append(listings, l)
			}
		})
		if len(listings) > 0 {
			break
		}
	}

	if len(listings) == 0 {
		return nil, ErrNoMatch
	}

	for _, l := range listings {
		if l.exactMatch {
			return l, nil
		}
	}
	return listings[0], nil
}

func parseListing(s *goquery.Selection, product models.Product) *listing {
	name := strings.TrimSpace(s.Find("h2, h3, .product-name, [data-testid*=name]").First().Text())
	if name == "" {
		name = strings.TrimSpace(s.Find("a").First().Text())
	}
	if name == "" {
		return nil
	}

	l := &listing{
		name:       name,
		exactMatch: nameMatches(name, product),
	}

	for _, sel := range priceSelectors {
		text := strings.TrimSpace(s.Find(sel).First().Text())
		if p, ok := parsePrice(text); ok {
			l.price = &p
			break
		}
	}

	availText := strings.ToLower(s.Text())
	switch {
	case strings.Contains(availText, "out of stock"), strings.Contains(availText, "unavailable"):
		out := "out of stock"
		l.availability = &out
	case l.price != nil:
		in := "in stock"
		l.availability = &in
	}

	return l
}

// nameMatches treats a listing as exact when it contains both the brand and
// the product name, case-insensitively. Anything fuzzier is a near match; the
// orchestration core only consumes the resulting boolean.
func nameMatches(found string, product models.Product) bool {
	f := strings.ToLower(found)
	return strings.Contains(f, strings.ToLower(product.Name)) &&
		(product.Brand == "" || strings.Contains(f, strings.ToLower(product.Brand)))
}

func parsePrice(text string) (float64, bool) {
	m := priceRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	p, err := strconv.ParseFloat(m[1]+"."+m[2], 64)
	if err != nil {
		return 0, false
	}
	return p, true
}
