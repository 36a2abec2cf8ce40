package models

import (
	"time"
)

// Job lifecycle statuses. Transitions are strictly forward:
// pending -> processing -> completed | failed.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// User represents a tenant account that owns conversion jobs and the
// credentials they run with.
type User struct {
	ID                   string    `json:"id" db:"id"`
	Email                string    `json:"email" db:"email"`
	GitHubUsername       *string   `json:"github_username,omitempty" db:"github_username"`
	GitHubTokenEncrypted *string   `json:"-" db:"github_token_encrypted"` // Never expose the stored PAT
	APIKeyHash           string    `json:"-" db:"api_key_hash"`
	APIKeyPrefix         string    `json:"api_key_prefix" db:"api_key_prefix"`
	IsActive             bool      `json:"is_active" db:"is_active"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}

// ConversionJob tracks one repository conversion request through its
// lifecycle to a terminal state.
type ConversionJob struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`

	RepoOwner    string `json:"repo_owner" db:"repo_owner"`
	RepoName     string `json:"repo_name" db:"repo_name"`
	SourceBranch string `json:"source_branch" db:"source_branch"`
	TargetBranch string `json:"target_branch" db:"target_branch"`

	SourceLanguages []string `json:"source_languages,omitempty" db:"source_languages"`
	TargetLanguage  string   `json:"target_language" db:"target_language"`
	IncludePatterns []string `json:"include_patterns,omitempty" db:"include_patterns"`
	ExcludePatterns []string `json:"exclude_patterns,omitempty" db:"exclude_patterns"`

	Status       string  `json:"status" db:"status"`
	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`
	PRURL        *string `json:"pr_url,omitempty" db:"pr_url"`

	FilesProcessed int `json:"files_processed" db:"files_processed"`
	FilesConverted int `json:"files_converted" db:"files_converted"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// FileConversion is the result record for one successfully converted file.
type FileConversion struct {
	OriginalPath     string `json:"original_path"`
	ConvertedPath    string `json:"converted_path"`
	OriginalContent  string `json:"original_content"`
	ConvertedContent string `json:"converted_content"`
	SourceLanguage   string `json:"source_language"`
	TargetLanguage   string `json:"target_language"`
	ConversionNotes  string `json:"conversion_notes,omitempty"`
}

// ConvertRequest is the job submission payload.
type ConvertRequest struct {
	RepoOwner       string   `json:"repo_owner"`
	RepoName        string   `json:"repo_name"`
	SourceBranch    string   `json:"source_branch,omitempty"`
	TargetBranch    string   `json:"target_branch,omitempty"`
	SourceLanguages []string `json:"source_languages,omitempty"`
	TargetLanguage  string   `json:"target_language,omitempty"`
	IncludePatterns []string `json:"include_patterns,omitempty"`
	ExcludePatterns []string `json:"exclude_patterns,omitempty"`
}

// ConvertResponse acknowledges an accepted job submission.
type ConvertResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// JobStatusResponse is the job status query payload.
type JobStatusResponse struct {
	JobID          string     `json:"job_id"`
	Status         string     `json:"status"`
	FilesProcessed int        `json:"files_processed"`
	FilesConverted int        `json:"files_converted"`
	PRURL          *string    `json:"pr_url,omitempty"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// RegisterRequest creates a tenant account.
type RegisterRequest struct {
	Email          string `json:"email"`
	GitHubUsername string `json:"github_username,omitempty"`
	GitHubToken    string `json:"github_token,omitempty"`
}

// RegisterResponse carries the issued API key. The plaintext key is
// returned exactly once; only its hash is stored.
type RegisterResponse struct {
	UserID       string `json:"user_id"`
	APIKey       string `json:"api_key"`
	APIKeyPrefix string `json:"api_key_prefix"`
}

// UpdateTokenRequest rotates a tenant's stored GitHub token.
type UpdateTokenRequest struct {
	GitHubToken string `json:"github_token"`
}

// HealthResponse reports overall and per-service liveness.
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}
