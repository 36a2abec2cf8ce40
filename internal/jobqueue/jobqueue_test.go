package jobqueue

import (
	"context"
	"errors"
	"testing"

	"github.com/riverqueue/river"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codemorph/internal/convert"
	"github.com/codemorph/internal/store"
	"github.com/codemorph/pkg/models"
)

type fakeLedger struct {
	job        *models.ConversionJob
	getJobErr  error
	processErr error

	completed     bool
	completedWith struct {
		processed int
		converted int
		prURL     *string
	}
	failed     bool
	failedWith struct {
		message   string
		processed int
		converted int
	}
}

func (f *fakeLedger) GetJob(_ context.Context, jobID string) (*models.ConversionJob, error) {
	if f.getJobErr != nil {
		return nil, f.getJobErr
	}
	return f.job, nil
}

func (f *fakeLedger) GetUserByID(_ context.Context, userID string) (*models.User, error) {
	return &models.User{ID: userID}, nil
}

func (f *fakeLedger) MarkProcessing(_ context.Context, jobID string) error {
	return f.processErr
}

func (f *fakeLedger) MarkCompleted(_ context.Context, jobID string, filesProcessed, filesConverted int, prURL *string) error {
	f.completed = true
	f.completedWith.processed = filesProcessed
	f.completedWith.converted = filesConverted
	f.completedWith.prURL = prURL
	return nil
}

func (f *fakeLedger) MarkFailed(_ context.Context, jobID, errorMessage string, filesProcessed, filesConverted int) error {
	f.failed = true
	f.failedWith.message = errorMessage
	f.failedWith.processed = filesProcessed
	f.failedWith.converted = filesConverted
	return nil
}

func pendingJob() *models.ConversionJob {
	return &models.ConversionJob{
		ID:             "job-1",
		UserID:         "user-1",
		RepoOwner:      "acme",
		RepoName:       "tools",
		TargetLanguage: "python",
		Status:         models.JobStatusPending,
	}
}

func riverJob(jobID string) *river.Job[ConversionJobArgs] {
	return &river.Job[ConversionJobArgs]{Args: ConversionJobArgs{JobID: jobID}}
}

func TestWorkPersistsSuccess(t *testing.T) {
	ledger := &fakeLedger{job: pendingJob()}
	prURL := "https://github.com/acme/tools/pull/7"
	worker := &ConversionWorker{
		store: ledger,
		runJob: func(_ context.Context, record *models.ConversionJob) (*convert.Result, error) {
			assert.Equal(t, "job-1", record.ID)
			return &convert.Result{FilesProcessed: 5, FilesConverted: 3, PRURL: prURL}, nil
		},
	}

	err := worker.Work(context.Background(), riverJob("job-1"))
	require.NoError(t, err)

	assert.True(t, ledger.completed)
	assert.False(t, ledger.failed)
	assert.Equal(t, 5, ledger.completedWith.processed)
	assert.Equal(t, 3, ledger.completedWith.converted)
	require.NotNil(t, ledger.completedWith.prURL)
	assert.Equal(t, prURL, *ledger.completedWith.prURL)
}

func TestWorkAbsorbsPipelineFailure(t *testing.T) {
	ledger := &fakeLedger{job: pendingJob()}
	worker := &ConversionWorker{
		store: ledger,
		runJob: func(_ context.Context, _ *models.ConversionJob) (*convert.Result, error) {
			return &convert.Result{FilesProcessed: 2}, errors.New("repository conversion blew up")
		},
	}

	// Pipeline errors are persisted, not returned; returning them would
	// hand the job back to the queue.
	err := worker.Work(context.Background(), riverJob("job-1"))
	require.NoError(t, err)

	assert.True(t, ledger.failed)
	assert.False(t, ledger.completed)
	assert.Equal(t, "repository conversion blew up", ledger.failedWith.message)
	assert.Equal(t, 2, ledger.failedWith.processed)
	assert.Zero(t, ledger.failedWith.converted)
}

func TestWorkSkipsNonPendingJob(t *testing.T) {
	job := pendingJob()
	job.Status = models.JobStatusCompleted
	ledger := &fakeLedger{job: job, processErr: store.ErrInvalidTransition}

	ran := false
	worker := &ConversionWorker{
		store: ledger,
		runJob: func(_ context.Context, _ *models.ConversionJob) (*convert.Result, error) {
			ran = true
			return nil, nil
		},
	}

	err := worker.Work(context.Background(), riverJob("job-1"))
	require.NoError(t, err)

	assert.False(t, ran)
	assert.False(t, ledger.completed)
	assert.False(t, ledger.failed)
}

func TestWorkReturnsErrorWhenLedgerUnreachable(t *testing.T) {
	ledger := &fakeLedger{getJobErr: errors.New("connection refused")}
	worker := &ConversionWorker{store: ledger}

	err := worker.Work(context.Background(), riverJob("job-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job-1")
}
