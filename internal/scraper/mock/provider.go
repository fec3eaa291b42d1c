// Package mock provides scripted scrape providers for testing.
package mock

import (
	"context"
	"sync"

	"github.com/pricehound/pricehound/pkg/models"
)

// Provider satisfies models.ScrapeProvider for testing.
type Provider struct {
	Name_          string
	NewSessionFunc func(ctx context.Context) (models.ScrapeSession, error)
	LookupFunc     func(ctx context.Context, store models.Store, product models.Product) (*models.Result, error)

	mu       sync.Mutex
	sessions []*Session
}

func (p *Provider) Name() string {
	if p.Name_ != "" {
		return p.Name_
	}
	return "mock"
}

func (p *Provider) NewSession(ctx context.Context) (models.ScrapeSession, error) {
	if p.NewSessionFunc != nil {
		return p.NewSessionFunc(ctx)
	}
	sess := &Session{provider: p}
	p.mu.Lock()
	p.sessions = append(p.sessions, sess)
	p.mu.Unlock()
	return sess, nil
}

// Sessions returns every session handed out so far.
func (p *Provider) Sessions() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Session(nil), p.sessions...)
}

// Session records lookups and delegates to the provider's LookupFunc.
type Session struct {
	provider *Provider

	mu      sync.Mutex
	lookups []Lookup
	closed  bool
}

// Lookup is one recorded call.
type Lookup struct {
	Store   models.Store
	Product models.Product
}

func (s *Session) Lookup(ctx context.Context, store models.Store, product models.Product) (*models.Result, error) {
	s.mu.Lock()
	s.lookups = append(s.lookups, Lookup{Store: store, Product: product})
	s.mu.Unlock()

	if s.provider.LookupFunc != nil {
		return s.provider.LookupFunc(ctx, store, product)
	}
	return OKResult(store, product), nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Lookups returns the recorded calls in order.
func (s *Session) Lookups() []Lookup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Lookup(nil), s.lookups...)
}

// OKResult builds a successful exact-match result with a fixed price.
func OKResult(store models.Store, product models.Product) *models.Result {
	name := product.Name
	price := 9.99
	avail := "in stock"
	return &models.Result{
		ProductID:    product.ID,
		ProductName:  product.Name,
		Brand:        product.Brand,
		StoreName:    store.Name,
		FoundName:    &name,
		Price:        &price,
		Currency:     "EUR",
		Availability: &avail,
		IsExactMatch: true,
	}
}

// NewProvider returns a mock whose lookups always succeed.
func NewProvider() *Provider {
	return &Provider{Name_: "mock"}
}

// NewFailingProvider returns a mock whose lookups always return err.
func NewFailingProvider(err error) *Provider {
	return &Provider{
		Name_: "mock-failing",
		LookupFunc: func(context.Context, models.Store, models.Product) (*models.Result, error) {
			return nil, err
		},
	}
}

// NewBrokenProvider returns a mock whose sessions fail to open with err.
func NewBrokenProvider(err error) *Provider {
	return &Provider{
		Name_: "mock-broken",
		NewSessionFunc: func(context.Context) (models.ScrapeSession, error) {
			return nil, err
		},
	}
}

// Compile-time check that Provider implements ScrapeProvider.
var _ models.ScrapeProvider = (*Provider)(nil)
