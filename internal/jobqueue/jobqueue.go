/*
Package jobqueue provides a River-based job queue for running
conversion jobs in the background.

For worker pool sizing and insert options, see queue_config.go.
*/
package jobqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/rs/zerolog/log"

	"github.com/codemorph/internal/api/auth"
	"github.com/codemorph/internal/config"
	"github.com/codemorph/internal/convert"
	"github.com/codemorph/internal/gateway/github"
	"github.com/codemorph/internal/store"
	"github.com/codemorph/internal/translate"
	"github.com/codemorph/pkg/models"
)

// ConversionJobArgs carries only the ledger job ID; everything else is
// loaded fresh when the job runs.
type ConversionJobArgs struct {
	JobID string `json:"job_id"`
}

// Kind returns the job kind for River
func (ConversionJobArgs) Kind() string {
	return "conversion"
}

// InsertOpts pins MaxAttempts to 1. The ledger owns terminal state, so
// a job must never execute twice.
func (ConversionJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 1}
}

// Ledger is the slice of the persistence layer the worker needs.
type Ledger interface {
	GetJob(ctx context.Context, jobID string) (*models.ConversionJob, error)
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	MarkProcessing(ctx context.Context, jobID string) error
	MarkCompleted(ctx context.Context, jobID string, filesProcessed, filesConverted int, prURL *string) error
	MarkFailed(ctx context.Context, jobID, errorMessage string, filesProcessed, filesConverted int) error
}

// ConversionWorker executes conversion jobs. It resolves per-tenant
// credentials, builds a fresh gateway and engine for each job, and
// records the terminal state in the ledger.
type ConversionWorker struct {
	river.WorkerDefaults[ConversionJobArgs]
	store   Ledger
	secrets *auth.SecretBox
	appAuth *github.AppAuth // nil when no GitHub App is configured
	cfg     *config.Config

	// runJob defaults to the real pipeline; tests substitute it.
	runJob func(ctx context.Context, record *models.ConversionJob) (*convert.Result, error)
}

// Work runs one conversion job to a terminal ledger state. It returns
// an error only when the ledger itself is unreachable; job-level
// failures are recorded as failed and absorbed.
func (w *ConversionWorker) Work(ctx context.Context, job *river.Job[ConversionJobArgs]) error {
	jobID := job.Args.JobID

	record, err := w.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}

	if err := w.store.MarkProcessing(ctx, jobID); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			// Already picked up or finished; nothing to do.
			log.Warn().Str("job_id", jobID).Str("status", record.Status).Msg("job not pending, skipping")
			return nil
		}
		return fmt.Errorf("mark job %s processing: %w", jobID, err)
	}

	log.Info().
		Str("job_id", jobID).
		Str("repo", record.RepoOwner+"/"+record.RepoName).
		Str("target_language", record.TargetLanguage).
		Msg("conversion job started")

	run := w.runJob
	if run == nil {
		run = w.run
	}
	result, runErr := run(ctx, record)
	if runErr != nil {
		log.Error().Err(runErr).Str("job_id", jobID).Msg("conversion job failed")
		processed, converted := 0, 0
		if result != nil {
			processed, converted = result.FilesProcessed, result.FilesConverted
		}
		if err := w.store.MarkFailed(ctx, jobID, runErr.Error(), processed, converted); err != nil {
			return fmt.Errorf("mark job %s failed: %w", jobID, err)
		}
		return nil
	}

	var prURL *string
	if result.PRURL != "" {
		prURL = &result.PRURL
	}
	if err := w.store.MarkCompleted(ctx, jobID, result.FilesProcessed, result.FilesConverted, prURL); err != nil {
		return fmt.Errorf("mark job %s completed: %w", jobID, err)
	}
	return nil
}

func (w *ConversionWorker) run(ctx context.Context, record *models.ConversionJob) (*convert.Result, error) {
	token, err := w.resolveToken(ctx, record.UserID)
	if err != nil {
		return nil, err
	}

	gateway := github.NewClient(w.cfg.GitHub.APIURL, token)

	model, err := translate.NewModel(ctx, translate.ModelOptions{
		Provider: translate.Provider(w.cfg.LLM.Provider),
		APIKey:   w.cfg.LLM.APIKey,
		Model:    w.cfg.LLM.Model,
		BaseURL:  w.cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize llm: %w", err)
	}
	engine := translate.NewEngine(model, w.cfg.LLM.Model, w.cfg.LLM.Temperature, w.cfg.LLM.MaxTokens)

	orchestrator := convert.New(gateway, engine, convert.Limits{
		MaxFileSize: w.cfg.Convert.MaxFileSize,
		MaxFiles:    w.cfg.Convert.MaxFilesPerRepo,
	})
	return orchestrator.Run(ctx, record)
}

// resolveToken picks the GitHub credential for a tenant: their stored
// PAT when one exists, otherwise a short-lived App installation token.
func (w *ConversionWorker) resolveToken(ctx context.Context, userID string) (string, error) {
	user, err := w.store.GetUserByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load user: %w", err)
	}

	if user.GitHubTokenEncrypted != nil && *user.GitHubTokenEncrypted != "" {
		token, err := w.secrets.Decrypt(*user.GitHubTokenEncrypted)
		if err != nil {
			return "", fmt.Errorf("decrypt github token: %w", err)
		}
		return token, nil
	}

	if w.appAuth == nil {
		return "", fmt.Errorf("no github token stored and no github app configured")
	}
	if user.GitHubUsername == nil || *user.GitHubUsername == "" {
		return "", fmt.Errorf("no github token stored and no github username to resolve an installation")
	}

	installation, err := w.appAuth.InstallationForUser(ctx, *user.GitHubUsername)
	if err != nil {
		return "", fmt.Errorf("resolve installation: %w", err)
	}
	if installation == nil {
		return "", fmt.Errorf("github app not installed for %s", *user.GitHubUsername)
	}
	return w.appAuth.InstallationToken(ctx, installation.ID)
}

// JobQueue manages the River job queue
type JobQueue struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
}

// NewJobQueue creates a new job queue instance
func NewJobQueue(databaseURL string, st *store.Store, secrets *auth.SecretBox, appAuth *github.AppAuth, cfg *config.Config) (*JobQueue, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &ConversionWorker{
		store:   st,
		secrets: secrets,
		appAuth: appAuth,
		cfg:     cfg,
	})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:  riverQueueConfig(cfg.Workers.PoolSize),
		Workers: workers,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &JobQueue{client: client, pool: pool}, nil
}

// Start starts the job queue workers
func (jq *JobQueue) Start(ctx context.Context) error {
	return jq.client.Start(ctx)
}

// Stop stops the job queue workers
func (jq *JobQueue) Stop(ctx context.Context) error {
	err := jq.client.Stop(ctx)
	jq.pool.Close()
	return err
}

// EnqueueConversion queues a conversion job by its ledger ID.
func (jq *JobQueue) EnqueueConversion(ctx context.Context, jobID string) error {
	_, err := jq.client.Insert(ctx, ConversionJobArgs{JobID: jobID}, nil)
	if err != nil {
		return fmt.Errorf("failed to queue conversion job: %w", err)
	}
	return nil
}
