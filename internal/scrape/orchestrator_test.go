package scrape

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pricehound/pricehound/internal/config"
	"github.com/pricehound/pricehound/internal/progress"
	"github.com/pricehound/pricehound/internal/scraper/mock"
	"github.com/pricehound/pricehound/internal/store"
	"github.com/pricehound/pricehound/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCache is an in-memory cache.Cache for tests.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	status  map[uuid.UUID]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		entries: make(map[string][]byte),
		status:  make(map[uuid.UUID]string),
	}
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *fakeCache) Ping(context.Context) error { return nil }

func (c *fakeCache) SetJobStatus(_ context.Context, jobID uuid.UUID, status string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status[jobID] = status
	return nil
}

func (c *fakeCache) GetJobStatus(_ context.Context, jobID uuid.UUID) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.status[jobID]
	return s, ok, nil
}

func (c *fakeCache) IncrWithExpiry(context.Context, string, time.Duration) (int64, error) {
	return 0, nil
}

func fastScrapeConfig() config.ScrapeConfig {
	return config.ScrapeConfig{
		MaxConcurrentJobs: 4,
		InterStoreDelay:   5 * time.Millisecond,
		InterProductDelay: 2 * time.Millisecond,
		PerTaskTimeout:    time.Second,
		MaxRetries:        3,
		RetryInitialDelay: time.Microsecond,
		RetryMultiplier:   2.0,
		RetryMaxDelay:     time.Millisecond,
		JitterFraction:    0,
	}
}

type fixture struct {
	orch   *Orchestrator
	store  *store.MemoryStore
	cache  *fakeCache
	pub    *progress.Publisher
	sleeps []time.Duration
}

func newFixture(t *testing.T, provider models.ScrapeProvider, cfg config.ScrapeConfig) *fixture {
	t.Helper()

	f := &fixture{
		store: store.NewMemoryStore(),
		cache: newFakeCache(),
		pub:   progress.NewPublisher(),
	}
	f.orch = NewOrchestrator(f.store, provider, f.cache, f.pub, nil, cfg, time.Hour)
	f.orch.sleep = func(_ context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return nil
	}
	return f
}

func (f *fixture) createJob(t *testing.T, stores []models.Store, products []models.Product) uuid.UUID {
	t.Helper()
	now := time.Now().UTC()
	job := &models.Job{
		ID:        uuid.New(),
		Stores:    stores,
		Products:  products,
		Status:    models.JobStatusUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.store.Create(context.Background(), job))
	return job.ID
}

func stores(n int) []models.Store {
	out := make([]models.Store, n)
	for i := range out {
		out[i] = models.Store{Name: fmt.Sprintf("S%d", i+1), URL: fmt.Sprintf("http://s%d.example", i+1)}
	}
	return out
}

func products(n int) []models.Product {
	out := make([]models.Product, n)
	for i := range out {
		out[i] = models.Product{
			ID:    fmt.Sprintf("P%d", i+1),
			Name:  fmt.Sprintf("Product %d", i+1),
			Brand: "BrandX",
		}
	}
	return out
}

func TestProcess_FullMatrix(t *testing.T) {
	f := newFixture(t, mock.NewProvider(), fastScrapeConfig())
	jobID := f.createJob(t, stores(3), products(4))

	require.NoError(t, f.orch.Process(context.Background(), jobID))

	job, err := f.store.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	require.Len(t, job.Results, 12, "one result per (store, product) pair")

	// Every pair is distinct and iteration is store-major in insertion order.
	seen := make(map[string]bool)
	idx := 0
	for si := 1; si <= 3; si++ {
		for pi := 1; pi <= 4; pi++ {
			r := job.Results[idx]
			assert.Equal(t, fmt.Sprintf("S%d", si), r.StoreName)
			assert.Equal(t, fmt.Sprintf("P%d", pi), r.ProductID)
			key := r.StoreName + "/" + r.ProductID
			assert.False(t, seen[key], "duplicate pair %s", key)
			seen[key] = true
			idx++
		}
	}
}

func TestProcess_PacingDelays(t *testing.T) {
	// Example scenario: one store, two products. Exactly one inter-product
	// delay, zero inter-store delays.
	cfg := fastScrapeConfig()
	f := newFixture(t, mock.NewProvider(), cfg)
	jobID := f.createJob(t,
		[]models.Store{{Name: "A", URL: "http://a"}},
		[]models.Product{
			{ID: "P1", Name: "Milk", Description: "desc", Brand: "BrandX"},
			{ID: "P2", Name: "Bread", Description: "desc", Brand: "BrandY"},
		})

	require.NoError(t, f.orch.Process(context.Background(), jobID))

	job, err := f.store.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Len(t, job.Results, 2)

	require.Len(t, f.sleeps, 1)
	assert.Equal(t, cfg.InterProductDelay, f.sleeps[0])
}

func TestProcess_PacingDelayCounts(t *testing.T) {
	cfg := fastScrapeConfig()
	f := newFixture(t, mock.NewProvider(), cfg)
	jobID := f.createJob(t, stores(3), products(2))

	require.NoError(t, f.orch.Process(context.Background(), jobID))

	// Per store: 1 inter-product delay (2 products). Between stores: 2.
	var interProduct, interStore int
	for _, d := range f.sleeps {
		switch d {
		case cfg.InterProductDelay:
			interProduct++
		case cfg.InterStoreDelay:
			interStore++
		default:
			t.Fatalf("unexpected sleep duration %s", d)
		}
	}
	assert.Equal(t, 3, interProduct)
	assert.Equal(t, 2, interStore)
}

func TestProcess_EmptyMatrix(t *testing.T) {
	f := newFixture(t, mock.NewProvider(), fastScrapeConfig())
	jobID := f.createJob(t, nil, products(5))

	ch, cancel := f.pub.Subscribe(jobID)
	defer cancel()

	require.NoError(t, f.orch.Process(context.Background(), jobID))

	job, err := f.store.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Empty(t, job.Results)
	assert.Empty(t, f.sleeps)

	// A single terminal event at 100%.
	ev := <-ch
	assert.Equal(t, 100, ev.Percent)
	assert.Equal(t, models.JobStatusCompleted, ev.Status)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra event: %+v", extra)
	default:
	}
}

func TestProcess_JobNotFound(t *testing.T) {
	f := newFixture(t, mock.NewProvider(), fastScrapeConfig())
	err := f.orch.Process(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrJobNotFound)
}

func TestProcess_AlreadyTerminal(t *testing.T) {
	f := newFixture(t, mock.NewProvider(), fastScrapeConfig())
	jobID := f.createJob(t, stores(1), products(1))

	require.NoError(t, f.orch.Process(context.Background(), jobID))

	err := f.orch.Process(context.Background(), jobID)
	require.ErrorIs(t, err, ErrInvalidJobState)
}

func TestStart_SecondStartLosesCleanly(t *testing.T) {
	f := newFixture(t, mock.NewProvider(), fastScrapeConfig())
	jobID := f.createJob(t, stores(2), products(2))

	require.NoError(t, f.orch.Start(context.Background(), jobID))
	err := f.orch.Start(context.Background(), jobID)
	require.ErrorIs(t, err, ErrInvalidJobState)

	require.Eventually(t, func() bool {
		job, gerr := f.store.Get(context.Background(), jobID)
		return gerr == nil && job.Status == models.JobStatusCompleted
	}, 5*time.Second, 5*time.Millisecond)

	job, err := f.store.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Len(t, job.Results, 4, "losing start must not duplicate results")
}

func TestProcess_TaskExhaustionDoesNotFailJob(t *testing.T) {
	lookupErr := errors.New("store blocked us")
	provider := mock.NewProvider()
	provider.LookupFunc = func(_ context.Context, st models.Store, p models.Product) (*models.Result, error) {
		if p.ID == "P2" {
			return nil, lookupErr
		}
		return mock.OKResult(st, p), nil
	}

	f := newFixture(t, provider, fastScrapeConfig())
	jobID := f.createJob(t, stores(1), products(3))

	require.NoError(t, f.orch.Process(context.Background(), jobID))

	job, err := f.store.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status, "one task's exhaustion never aborts the job")
	require.Len(t, job.Results, 3)

	failed := job.Results[1]
	assert.Equal(t, "P2", failed.ProductID)
	assert.False(t, failed.IsExactMatch)
	require.NotNil(t, failed.ErrorMessage)
	assert.Contains(t, *failed.ErrorMessage, "store blocked us")

	// The failing pair was attempted MaxRetries times.
	lookups := provider.Sessions()[0].Lookups()
	attempts := 0
	for _, l := range lookups {
		if l.Product.ID == "P2" {
			attempts++
		}
	}
	assert.Equal(t, 3, attempts)
}

func TestProcess_TransientFailureRecovers(t *testing.T) {
	var mu sync.Mutex
	failures := 0
	provider := mock.NewProvider()
	provider.LookupFunc = func(_ context.Context, st models.Store, p models.Product) (*models.Result, error) {
		mu.Lock()
		defer mu.Unlock()
		if failures < 2 {
			failures++
			return nil, errors.New("flaky network")
		}
		return mock.OKResult(st, p), nil
	}

	f := newFixture(t, provider, fastScrapeConfig())
	jobID := f.createJob(t, stores(1), products(1))

	require.NoError(t, f.orch.Process(context.Background(), jobID))

	job, err := f.store.Get(context.Background(), jobID)
	require.NoError(t, err)
	require.Len(t, job.Results, 1)
	assert.Nil(t, job.Results[0].ErrorMessage)
	assert.True(t, job.Results[0].IsExactMatch)
}

func TestProcess_SessionInitFailureIsJobFatal(t *testing.T) {
	bootErr := errors.New("no chromium binary")
	f := newFixture(t, mock.NewBrokenProvider(bootErr), fastScrapeConfig())
	jobID := f.createJob(t, stores(2), products(2))

	ch, cancel := f.pub.Subscribe(jobID)
	defer cancel()

	err := f.orch.Process(context.Background(), jobID)
	require.Error(t, err)
	assert.ErrorIs(t, err, bootErr)

	job, gerr := f.store.Get(context.Background(), jobID)
	require.NoError(t, gerr)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Contains(t, *job.ErrorMessage, "no chromium binary")
	assert.Empty(t, job.Results)

	// Initial event, then the terminal failure event.
	first := <-ch
	assert.Equal(t, 0, first.Percent)
	terminal := <-ch
	assert.Equal(t, models.JobStatusFailed, terminal.Status)
	assert.Contains(t, terminal.Error, "no chromium binary")
}

func TestProcess_SessionClosedOnEveryPath(t *testing.T) {
	provider := mock.NewProvider()
	f := newFixture(t, provider, fastScrapeConfig())
	jobID := f.createJob(t, stores(1), products(1))
	require.NoError(t, f.orch.Process(context.Background(), jobID))
	require.Len(t, provider.Sessions(), 1)
	assert.True(t, provider.Sessions()[0].Closed())

	failing := mock.NewFailingProvider(errors.New("always down"))
	f2 := newFixture(t, failing, fastScrapeConfig())
	jobID2 := f2.createJob(t, stores(1), products(1))
	require.NoError(t, f2.orch.Process(context.Background(), jobID2))
	require.Len(t, failing.Sessions(), 1)
	assert.True(t, failing.Sessions()[0].Closed())
}

func TestProcess_ProgressPercentMonotonic(t *testing.T) {
	f := newFixture(t, mock.NewProvider(), fastScrapeConfig())
	jobID := f.createJob(t, stores(2), products(3))

	ch, cancel := f.pub.Subscribe(jobID)
	defer cancel()

	require.NoError(t, f.orch.Process(context.Background(), jobID))
	cancel()

	var percents []int
	for ev := range ch {
		percents = append(percents, ev.Percent)
	}

	// init + 6 tasks + terminal
	require.Len(t, percents, 8)
	last := -1
	for _, p := range percents {
		assert.GreaterOrEqual(t, p, last, "percent must be non-decreasing")
		last = p
	}
	assert.Equal(t, 100, percents[len(percents)-1])
}

func TestProcess_TerminalEventCarriesResults(t *testing.T) {
	f := newFixture(t, mock.NewProvider(), fastScrapeConfig())
	jobID := f.createJob(t, stores(1), products(2))

	ch, cancel := f.pub.Subscribe(jobID)
	defer cancel()

	require.NoError(t, f.orch.Process(context.Background(), jobID))
	cancel()

	var terminal *models.ProgressEvent
	for ev := range ch {
		if ev.Status == models.JobStatusCompleted {
			terminal = &ev
		}
	}
	require.NotNil(t, terminal)
	assert.Len(t, terminal.Results, 2)
}

func TestProcess_StatusMirroredToCache(t *testing.T) {
	f := newFixture(t, mock.NewProvider(), fastScrapeConfig())
	jobID := f.createJob(t, stores(1), products(1))

	require.NoError(t, f.orch.Process(context.Background(), jobID))

	status, found, err := f.cache.GetJobStatus(context.Background(), jobID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, models.JobStatusCompleted, status)
}

func TestProcess_LookupServedFromCache(t *testing.T) {
	provider := mock.NewProvider()
	f := newFixture(t, provider, fastScrapeConfig())

	st := []models.Store{{Name: "A", URL: "http://a.example"}}
	pr := products(1)

	// First run fills the cache.
	first := f.createJob(t, st, pr)
	require.NoError(t, f.orch.Process(context.Background(), first))
	require.Len(t, provider.Sessions()[0].Lookups(), 1)

	// Second run over the same pair hits the cache; the session sees nothing.
	second := f.createJob(t, st, pr)
	require.NoError(t, f.orch.Process(context.Background(), second))

	job, err := f.store.Get(context.Background(), second)
	require.NoError(t, err)
	require.Len(t, job.Results, 1)
	assert.True(t, job.Results[0].IsExactMatch)
	assert.Empty(t, provider.Sessions()[1].Lookups(), "cached pair must not be re-scraped")
}

func TestProcess_NilCacheIsFine(t *testing.T) {
	provider := mock.NewProvider()
	f := newFixture(t, provider, fastScrapeConfig())
	f.orch.cache = nil

	jobID := f.createJob(t, stores(1), products(1))
	require.NoError(t, f.orch.Process(context.Background(), jobID))

	job, err := f.store.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
}

type fakeArchiver struct {
	mu   sync.Mutex
	jobs []*models.Job
	err  error
}

func (a *fakeArchiver) SaveJob(_ context.Context, job *models.Job) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.jobs = append(a.jobs, job)
	return nil
}

func TestProcess_CompletedJobIsArchived(t *testing.T) {
	provider := mock.NewProvider()
	f := newFixture(t, provider, fastScrapeConfig())
	arc := &fakeArchiver{}
	f.orch.archiver = arc

	jobID := f.createJob(t, stores(2), products(2))
	require.NoError(t, f.orch.Process(context.Background(), jobID))

	require.Len(t, arc.jobs, 1)
	assert.Equal(t, jobID, arc.jobs[0].ID)
	assert.Equal(t, models.JobStatusCompleted, arc.jobs[0].Status)
	assert.Len(t, arc.jobs[0].Results, 4)
}

func TestProcess_ArchiveFailureDoesNotFailJob(t *testing.T) {
	provider := mock.NewProvider()
	f := newFixture(t, provider, fastScrapeConfig())
	f.orch.archiver = &fakeArchiver{err: errors.New("archive down")}

	jobID := f.createJob(t, stores(1), products(1))
	require.NoError(t, f.orch.Process(context.Background(), jobID))

	job, err := f.store.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
}

func TestProcess_FailedJobIsArchivedWithPartials(t *testing.T) {
	provider := mock.NewBrokenProvider(errors.New("browser missing"))
	f := newFixture(t, provider, fastScrapeConfig())
	arc := &fakeArchiver{}
	f.orch.archiver = arc

	jobID := f.createJob(t, stores(1), products(1))
	require.Error(t, f.orch.Process(context.Background(), jobID))

	require.Len(t, arc.jobs, 1)
	assert.Equal(t, models.JobStatusFailed, arc.jobs[0].Status)
}
