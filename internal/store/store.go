// Package store is the persistence layer for tenant accounts and the
// conversion job ledger.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/codemorph/pkg/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrInvalidTransition is returned when a status update would move a
// job backwards. Transitions are strictly forward:
// pending -> processing -> completed | failed.
var ErrInvalidTransition = errors.New("invalid job status transition")

// Store wraps all database access.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateUser inserts a new tenant account.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, github_username, github_token_encrypted, api_key_hash, api_key_prefix, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, NOW(), NOW())
	`, user.ID, user.Email, user.GitHubUsername, user.GitHubTokenEncrypted, user.APIKeyHash, user.APIKeyPrefix)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("user with email %s already exists", user.Email)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByAPIKeyHash resolves an active account from a hashed API key.
func (s *Store) GetUserByAPIKeyHash(ctx context.Context, hash string) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, github_username, github_token_encrypted, api_key_hash, api_key_prefix, is_active, created_at, updated_at
		FROM users
		WHERE api_key_hash = $1 AND is_active = TRUE
	`, hash).Scan(
		&user.ID, &user.Email, &user.GitHubUsername, &user.GitHubTokenEncrypted,
		&user.APIKeyHash, &user.APIKeyPrefix, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return &user, nil
}

// GetUserByID fetches one active account by ID.
func (s *Store) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, github_username, github_token_encrypted, api_key_hash, api_key_prefix, is_active, created_at, updated_at
		FROM users
		WHERE id = $1 AND is_active = TRUE
	`, userID).Scan(
		&user.ID, &user.Email, &user.GitHubUsername, &user.GitHubTokenEncrypted,
		&user.APIKeyHash, &user.APIKeyPrefix, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return &user, nil
}

// UpdateGitHubToken replaces the stored encrypted PAT, and optionally
// the GitHub username, for one account.
func (s *Store) UpdateGitHubToken(ctx context.Context, userID, encryptedToken string, githubUsername *string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET github_token_encrypted = $2,
		    github_username = COALESCE($3, github_username),
		    updated_at = NOW()
		WHERE id = $1
	`, userID, encryptedToken, githubUsername)
	if err != nil {
		return fmt.Errorf("failed to update token: %w", err)
	}
	return requireRow(result, ErrNotFound)
}

// CreateJob records a newly accepted job in pending state.
func (s *Store) CreateJob(ctx context.Context, job *models.ConversionJob) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversion_jobs (id, user_id, repo_owner, repo_name, source_branch, target_branch,
			source_languages, target_language, include_patterns, exclude_patterns, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
	`, job.ID, job.UserID, job.RepoOwner, job.RepoName, job.SourceBranch, job.TargetBranch,
		pq.Array(job.SourceLanguages), job.TargetLanguage,
		pq.Array(job.IncludePatterns), pq.Array(job.ExcludePatterns), models.JobStatusPending)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetJob fetches one job by ID regardless of owner.
func (s *Store) GetJob(ctx context.Context, jobID string) (*models.ConversionJob, error) {
	return s.queryJob(ctx, `WHERE id = $1`, jobID)
}

// GetJobForUser fetches one job only if the given account owns it.
// Other tenants' jobs are indistinguishable from missing ones.
func (s *Store) GetJobForUser(ctx context.Context, jobID, userID string) (*models.ConversionJob, error) {
	return s.queryJob(ctx, `WHERE id = $1 AND user_id = $2`, jobID, userID)
}

func (s *Store) queryJob(ctx context.Context, where string, args ...interface{}) (*models.ConversionJob, error) {
	var job models.ConversionJob
	var sourceLanguages, includePatterns, excludePatterns pq.StringArray

	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, repo_owner, repo_name, source_branch, target_branch,
			source_languages, target_language, include_patterns, exclude_patterns,
			status, error_message, pr_url, files_processed, files_converted,
			created_at, started_at, completed_at
		FROM conversion_jobs `+where, args...).Scan(
		&job.ID, &job.UserID, &job.RepoOwner, &job.RepoName, &job.SourceBranch, &job.TargetBranch,
		&sourceLanguages, &job.TargetLanguage, &includePatterns, &excludePatterns,
		&job.Status, &job.ErrorMessage, &job.PRURL, &job.FilesProcessed, &job.FilesConverted,
		&job.CreatedAt, &job.StartedAt, &job.CompletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch job: %w", err)
	}

	job.SourceLanguages = sourceLanguages
	job.IncludePatterns = includePatterns
	job.ExcludePatterns = excludePatterns
	return &job, nil
}

// MarkProcessing moves a pending job to processing. Any other starting
// state is an invalid transition.
func (s *Store) MarkProcessing(ctx context.Context, jobID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE conversion_jobs
		SET status = $2, started_at = NOW()
		WHERE id = $1 AND status = $3
	`, jobID, models.JobStatusProcessing, models.JobStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark job processing: %w", err)
	}
	return requireRow(result, ErrInvalidTransition)
}

// MarkCompleted finalizes a processing job with its counts and, when a
// pull request was opened, its URL.
func (s *Store) MarkCompleted(ctx context.Context, jobID string, filesProcessed, filesConverted int, prURL *string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE conversion_jobs
		SET status = $2, files_processed = $3, files_converted = $4, pr_url = $5, completed_at = NOW()
		WHERE id = $1 AND status = $6
	`, jobID, models.JobStatusCompleted, filesProcessed, filesConverted, prURL, models.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}
	return requireRow(result, ErrInvalidTransition)
}

// MarkFailed finalizes a processing job with an operator-readable
// error. Counts reflect work done before the failure.
func (s *Store) MarkFailed(ctx context.Context, jobID, errorMessage string, filesProcessed, filesConverted int) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE conversion_jobs
		SET status = $2, error_message = $3, files_processed = $4, files_converted = $5, completed_at = NOW()
		WHERE id = $1 AND status = $6
	`, jobID, models.JobStatusFailed, errorMessage, filesProcessed, filesConverted, models.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return requireRow(result, ErrInvalidTransition)
}

func requireRow(result sql.Result, missing error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return missing
	}
	return nil
}
