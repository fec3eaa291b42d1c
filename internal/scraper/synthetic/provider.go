// Package synthetic generates plausible lookup results without touching the
// network. It is the degraded-mode backend for local development and load
// testing, where running a real browser is impossible or undesirable.
package synthetic

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/pricehound/pricehound/pkg/models"
)

// Outcome weights, out of 100.
const (
	weightExactMatch  = 70
	weightNearMatch   = 15
	weightUnavailable = 10
	// remainder: transient error
)

var availabilityLabels = []string{"in stock", "low stock", "in stock online only"}

// Provider implements models.ScrapeProvider with weighted-random sampling.
type Provider struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewProvider creates a synthetic provider with a random seed.
func NewProvider() *Provider {
	return &Provider{rng: rand.New(rand.NewSource(rand.Int63()))}
}

// NewSeededProvider creates a deterministic synthetic provider for tests.
func NewSeededProvider(seed int64) *Provider {
	return &Provider{rng: rand.New(rand.NewSource(seed))}
}

func (p *Provider) Name() string { return "synthetic" }

// NewSession returns a session backed by the provider's shared generator.
// There are no per-job resources to acquire.
func (p *Provider) NewSession(_ context.Context) (models.ScrapeSession, error) {
	return &session{p: p}, nil
}

type session struct {
	p *Provider
}

func (s *session) Close() error { return nil }

func (s *session) Lookup(_ context.Context, store models.Store, product models.Product) (*models.Result, error) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	rng := s.p.rng

	result := &models.Result{
		ProductID:   product.ID,
		ProductName: product.Name,
		Brand:       product.Brand,
		StoreName:   store.Name,
		Currency:    "EUR",
	}

	roll := rng.Intn(100)
	switch {
	case roll < weightExactMatch:
		name := product.Name
		price := randomPrice(rng)
		avail := availabilityLabels[rng.Intn(len(availabilityLabels))]
		result.FoundName = &name
		result.Price = &price
		result.Availability = &avail
		result.IsExactMatch = true
		return result, nil

	case roll < weightExactMatch+weightNearMatch:
		name := fmt.Sprintf("%s %s (house brand)", store.Name, product.Name)
		price := randomPrice(rng)
		avail := availabilityLabels[rng.Intn(len(availabilityLabels))]
		note := fmt.Sprintf("replaced %q by closest match %q", product.Name, name)
		result.FoundName = &name
		result.Price = &price
		result.Availability = &avail
		result.IsExactMatch = false
		result.MatchNote = &note
		return result, nil

	case roll < weightExactMatch+weightNearMatch+weightUnavailable:
		avail := "out of stock"
		name := product.Name
		result.FoundName = &name
		result.Availability = &avail
		result.IsExactMatch = true
		return result, nil

	default:
		return nil, fmt.Errorf("synthetic transient failure for %s at %s", product.ID, store.Name)
	}
}

// randomPrice draws a price between 0.50 and 50.49 with cent precision.
func randomPrice(rng *rand.Rand) float64 {
	return float64(rng.Intn(5000)+50) / 100
}

var _ models.ScrapeProvider = (*Provider)(nil)
