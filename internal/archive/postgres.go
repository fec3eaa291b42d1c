package archive

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pricehound/pricehound/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the persistence interface for finished jobs and API keys.
type Store interface {
	Ping(ctx context.Context) error

	SaveJob(ctx context.Context, job *models.Job) error
	ListJobs(ctx context.Context, limit int) ([]*models.ArchivedJob, error)
	GetJob(ctx context.Context, id uuid.UUID) (*models.ArchivedJob, []models.Result, error)

	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
}

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Jobs ---

// SaveJob writes the job header and its results in one transaction.
func (s *PostgresStore) SaveJob(ctx context.Context, job *models.Job) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO archived_jobs (id, status, store_count, product_count, result_count, error_message, created_at, archived_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
		job.ID, job.Status, len(job.Stores), len(job.Products), len(job.Results), job.ErrorMessage, job.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("insert archived job: %w", err)
	}

	for i, r := range job.Results {
		_, err = tx.Exec(ctx,
			`INSERT INTO archived_results
			   (job_id, position, product_id, product_name, brand, store_name, found_name,
			    price, currency, availability, is_exact_match, match_note, error_message)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			job.ID, i, r.ProductID, r.ProductName, r.Brand, r.StoreName, r.FoundName,
			r.Price, r.Currency, r.Availability, r.IsExactMatch, r.MatchNote, r.ErrorMessage)
		if err != nil {
			return fmt.Errorf("insert archived result %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit archive tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, limit int) ([]*models.ArchivedJob, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, status, store_count, product_count, result_count, error_message, created_at, archived_at
		 FROM archived_jobs ORDER BY archived_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list archived jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.ArchivedJob
	for rows.Next() {
		var j models.ArchivedJob
		if err := rows.Scan(&j.ID, &j.Status, &j.StoreCount, &j.ProductCount, &j.ResultCount,
			&j.ErrorMessage, &j.CreatedAt, &j.ArchivedAt); err != nil {
			return nil, fmt.Errorf("scan archived job: %w", err)
		}
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.ArchivedJob, []models.Result, error) {
	var j models.ArchivedJob
	err := s.pool.QueryRow(ctx,
		`SELECT id, status, store_count, product_count, result_count, error_message, created_at, archived_at
		 FROM archived_jobs WHERE id = $1`, id,
	).Scan(&j.ID, &j.Status, &j.StoreCount, &j.ProductCount, &j.ResultCount,
		&j.ErrorMessage, &j.CreatedAt, &j.ArchivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get archived job: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT product_id, product_name, brand, store_name, found_name,
		        price, currency, availability, is_exact_match, match_note, error_message
		 FROM archived_results WHERE job_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("get archived results: %w", err)
	}
	defer rows.Close()

	var results []models.Result
	for rows.Next() {
		var r models.Result
		if err := rows.Scan(&r.ProductID, &r.ProductName, &r.Brand, &r.StoreName, &r.FoundName,
			&r.Price, &r.Currency, &r.Availability, &r.IsExactMatch, &r.MatchNote, &r.ErrorMessage); err != nil {
			return nil, nil, fmt.Errorf("scan archived result: %w", err)
		}
		results = append(results, r)
	}
	return &j, results, rows.Err()
}

// --- API Keys ---

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key_hash, key_prefix, scopes, last_used_at, revoked_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND revoked_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.RevokedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key_hash, key_prefix, scopes, last_used_at, revoked_at, created_at, updated_at
		 FROM api_keys WHERE revoked_at IS NULL ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.RevokedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET revoked_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

var _ Store = (*PostgresStore)(nil)
