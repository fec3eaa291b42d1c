// Package scrape implements the job orchestration core: lifecycle ownership,
// sequential scheduling of the store×product matrix with pacing, per-task
// retry, partial-failure aggregation and live progress publication.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pricehound/pricehound/internal/cache"
	"github.com/pricehound/pricehound/internal/config"
	"github.com/pricehound/pricehound/internal/progress"
	"github.com/pricehound/pricehound/internal/retry"
	"github.com/pricehound/pricehound/internal/store"
	"github.com/pricehound/pricehound/pkg/models"
)

// statusTTL bounds how long mirrored job-status keys live in the cache.
const statusTTL = 30 * time.Minute

// Archiver persists a finished job outside the in-memory registry.
type Archiver interface {
	SaveJob(ctx context.Context, job *models.Job) error
}

// Orchestrator owns job execution. A single job is processed as one sequential
// task stream; scraping a store in parallel raises detection risk, so tasks
// within a job are never concurrent. Distinct jobs may run concurrently.
type Orchestrator struct {
	store     store.JobStore
	provider  models.ScrapeProvider
	cache     cache.Cache
	publisher *progress.Publisher
	archiver  Archiver
	cfg       config.ScrapeConfig
	cacheTTL  time.Duration

	// sleep is swappable so tests can observe pacing without real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator wires the orchestration core. cache may be nil to disable
// lookup caching and status mirroring; arc may be nil to disable the
// Postgres export of finished jobs.
func NewOrchestrator(
	st store.JobStore,
	provider models.ScrapeProvider,
	ca cache.Cache,
	pub *progress.Publisher,
	arc Archiver,
	cfg config.ScrapeConfig,
	cacheTTL time.Duration,
) *Orchestrator {
	return &Orchestrator{
		store:     st,
		provider:  provider,
		cache:     ca,
		publisher: pub,
		archiver:  arc,
		cfg:       cfg,
		cacheTTL:  cacheTTL,
		sleep:     retry.Sleep,
	}
}

// Start claims the job and continues processing in a detached goroutine. It
// returns once the claim is decided, so the caller gets ErrJobNotFound or
// ErrInvalidJobState synchronously and never awaits completion. Job-fatal
// errors from the detached run are logged here; the trigger has already
// returned to its own client by then.
func (o *Orchestrator) Start(ctx context.Context, jobID uuid.UUID) error {
	job, err := o.claim(ctx, jobID)
	if err != nil {
		return err
	}

	go func() {
		if err := o.run(context.Background(), job); err != nil {
			slog.Error("job processing failed", "job_id", jobID, "error", err)
		}
	}()

	return nil
}

// Process claims the job and runs it to completion synchronously. It exists
// for callers that want the job-fatal error directly.
func (o *Orchestrator) Process(ctx context.Context, jobID uuid.UUID) error {
	job, err := o.claim(ctx, jobID)
	if err != nil {
		return err
	}
	return o.run(ctx, job)
}

// claim validates preconditions and atomically moves the job to processing.
// The transition check inside the store is the only lock: two concurrent
// claims cannot both win.
func (o *Orchestrator) claim(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	job, err := o.store.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	if err := o.store.UpdateStatus(ctx, jobID, models.JobStatusProcessing); err != nil {
		if errors.Is(err, store.ErrInvalidState) {
			return nil, ErrInvalidJobState
		}
		return nil, err
	}
	job.Status = models.JobStatusProcessing
	o.mirrorStatus(ctx, jobID, models.JobStatusProcessing)

	// An empty matrix completes without any work; it announces itself with the
	// terminal event only.
	if len(job.Stores)*len(job.Products) > 0 {
		o.publisher.Publish(jobID, models.ProgressEvent{
			JobID:   jobID,
			Status:  models.JobStatusProcessing,
			Percent: 0,
			Message: fmt.Sprintf("starting survey: %d stores, %d products", len(job.Stores), len(job.Products)),
		})
	}

	return job, nil
}

// run drives the store×product matrix. Per-task failures are converted into
// failure results and never abort the job; only pre-task initialization or
// control-flow errors are job-fatal.
func (o *Orchestrator) run(ctx context.Context, job *models.Job) (err error) {
	jobID := job.ID
	totalTasks := len(job.Stores) * len(job.Products)
	results := make([]models.Result, 0, totalTasks)
	percent := 0

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during job processing: %v", r)
			o.fail(ctx, jobID, results, percent, err)
		}
	}()

	if totalTasks == 0 {
		o.complete(ctx, jobID, results)
		return nil
	}

	session, err := o.provider.NewSession(ctx)
	if err != nil {
		err = fmt.Errorf("initialize %s session: %w", o.provider.Name(), err)
		o.fail(ctx, jobID, results, percent, err)
		return err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			slog.Warn("closing scrape session failed", "job_id", jobID, "error", cerr)
		}
	}()

	r := &runner{
		session:  session,
		cache:    o.cache,
		cacheTTL: o.cacheTTL,
		timeout:  o.cfg.PerTaskTimeout,
	}

	completed := 0
	for si, st := range job.Stores {
		for pi, product := range job.Products {
			result := o.runTask(ctx, r, st, product)
			results = append(results, *result)
			completed++
			percent = 100 * completed / totalTasks

			o.publisher.Publish(jobID, models.ProgressEvent{
				JobID:        jobID,
				Status:       models.JobStatusProcessing,
				Percent:      percent,
				Message:      fmt.Sprintf("looked up %s at %s (%d/%d)", product.Name, st.Name, completed, totalTasks),
				CurrentStore: st.Name,
				CurrentItem:  product.Name,
			})

			// Pacing comes after a unit of work, never before the first.
			if pi < len(job.Products)-1 {
				if err := o.pace(ctx, o.cfg.InterProductDelay); err != nil {
					o.fail(ctx, jobID, results, percent, err)
					return err
				}
			}
		}

		if si < len(job.Stores)-1 {
			if err := o.pace(ctx, o.cfg.InterStoreDelay); err != nil {
				o.fail(ctx, jobID, results, percent, err)
				return err
			}
		}
	}

	o.complete(ctx, jobID, results)
	return nil
}

// runTask drives one pair through the retry executor. Exhausted retries yield
// a synthesized failure result; a single task's terminal failure is never
// fatal to the job.
func (o *Orchestrator) runTask(ctx context.Context, r *runner, st models.Store, product models.Product) *models.Result {
	retryCfg := retry.Config{
		MaxAttempts:  o.cfg.MaxRetries,
		InitialDelay: o.cfg.RetryInitialDelay,
		Multiplier:   o.cfg.RetryMultiplier,
		MaxDelay:     o.cfg.RetryMaxDelay,
		OnRetry: func(err error, attempt int) {
			slog.Warn("lookup failed, retrying",
				"store", st.Name, "product", product.ID, "attempt", attempt, "error", err)
		},
	}
	if o.cfg.RetryJitter {
		retryCfg.Jitter = o.cfg.JitterFraction
	}

	var result *models.Result
	err := retry.Do(ctx, retryCfg, func() error {
		var lerr error
		result, lerr = r.lookup(ctx, st, product)
		return lerr
	})
	if err == nil {
		return result
	}

	slog.Error("lookup failed permanently, recording failure result",
		"store", st.Name, "product", product.ID, "error", err)

	msg := err.Error()
	return &models.Result{
		ProductID:    product.ID,
		ProductName:  product.Name,
		Brand:        product.Brand,
		StoreName:    st.Name,
		IsExactMatch: false,
		ErrorMessage: &msg,
	}
}

// pace suspends for a jittered anti-detection delay.
func (o *Orchestrator) pace(ctx context.Context, d time.Duration) error {
	return o.sleep(ctx, retry.Jitter(d, o.cfg.JitterFraction))
}

func (o *Orchestrator) complete(ctx context.Context, jobID uuid.UUID, results []models.Result) {
	if err := o.store.SetResults(ctx, jobID, results); err != nil {
		slog.Error("storing results failed", "job_id", jobID, "error", err)
	}
	if err := o.store.UpdateStatus(ctx, jobID, models.JobStatusCompleted); err != nil {
		slog.Error("marking job completed failed", "job_id", jobID, "error", err)
	}
	o.mirrorStatus(ctx, jobID, models.JobStatusCompleted)
	o.export(ctx, jobID)

	o.publisher.Publish(jobID, models.ProgressEvent{
		JobID:   jobID,
		Status:  models.JobStatusCompleted,
		Percent: 100,
		Message: fmt.Sprintf("survey completed: %d results", len(results)),
		Results: results,
	})

	slog.Info("job completed", "job_id", jobID, "results", len(results))
}

func (o *Orchestrator) fail(ctx context.Context, jobID uuid.UUID, partial []models.Result, percent int, cause error) {
	if len(partial) > 0 {
		if err := o.store.SetResults(ctx, jobID, partial); err != nil {
			slog.Error("storing partial results failed", "job_id", jobID, "error", err)
		}
	}
	if err := o.store.UpdateStatus(ctx, jobID, models.JobStatusFailed,
		store.WithErrorMessage(cause.Error())); err != nil {
		slog.Error("marking job failed failed", "job_id", jobID, "error", err)
	}
	o.mirrorStatus(ctx, jobID, models.JobStatusFailed)
	o.export(ctx, jobID)

	o.publisher.Publish(jobID, models.ProgressEvent{
		JobID:   jobID,
		Status:  models.JobStatusFailed,
		Percent: percent,
		Message: "survey failed",
		Error:   cause.Error(),
	})
}

// export copies the finished job into the archive. Best effort: the in-memory
// record stays authoritative and an archive outage never fails the run.
func (o *Orchestrator) export(ctx context.Context, jobID uuid.UUID) {
	if o.archiver == nil {
		return
	}
	job, err := o.store.Get(ctx, jobID)
	if err != nil {
		slog.Error("loading job for archive failed", "job_id", jobID, "error", err)
		return
	}
	if err := o.archiver.SaveJob(ctx, job); err != nil {
		slog.Error("archiving job failed", "job_id", jobID, "error", err)
	}
}

// mirrorStatus keeps a short-lived copy of the status in the cache for
// pollers. Best effort: cache trouble never disturbs the run.
func (o *Orchestrator) mirrorStatus(ctx context.Context, jobID uuid.UUID, status string) {
	if o.cache == nil {
		return
	}
	if err := o.cache.SetJobStatus(ctx, jobID, status, statusTTL); err != nil {
		slog.Debug("mirroring job status failed", "job_id", jobID, "error", err)
	}
}
