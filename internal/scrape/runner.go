package scrape

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pricehound/pricehound/internal/cache"
	"github.com/pricehound/pricehound/pkg/models"
)

// runner executes a single (store, product) lookup attempt: cache first, then
// the scrape session under the per-task timeout. One runner serves one job run.
type runner struct {
	session  models.ScrapeSession
	cache    cache.Cache
	cacheTTL time.Duration
	timeout  time.Duration
}

// lookup performs one attempt. Errors are returned as-is; retry policy lives
// with the caller.
func (r *runner) lookup(ctx context.Context, store models.Store, product models.Product) (*models.Result, error) {
	if res, ok := r.fromCache(ctx, store, product); ok {
		return res, nil
	}

	taskCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.session.Lookup(taskCtx, store, product)
	if err != nil {
		return nil, err
	}

	r.fillCache(ctx, store, res)
	return res, nil
}

func (r *runner) fromCache(ctx context.Context, store models.Store, product models.Product) (*models.Result, bool) {
	if r.cache == nil {
		return nil, false
	}

	raw, found, err := r.cache.Get(ctx, cache.LookupKey(store.URL, product.ID))
	if err != nil {
		slog.Debug("lookup cache read failed", "store", store.Name, "product", product.ID, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}

	var res models.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		slog.Debug("lookup cache entry corrupt, ignoring", "store", store.Name, "product", product.ID, "error", err)
		return nil, false
	}
	return &res, true
}

func (r *runner) fillCache(ctx context.Context, store models.Store, res *models.Result) {
	if r.cache == nil {
		return
	}

	raw, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, cache.LookupKey(store.URL, res.ProductID), raw, r.cacheTTL); err != nil {
		slog.Debug("lookup cache write failed", "store", store.Name, "product", res.ProductID, "error", err)
	}
}
