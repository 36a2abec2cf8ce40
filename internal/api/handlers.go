package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/codemorph/internal/api/auth"
	"github.com/codemorph/internal/langmap"
	"github.com/codemorph/internal/store"
	"github.com/codemorph/pkg/models"
)

// registerUser creates a tenant account and returns its API key. The
// plaintext key appears in this response and nowhere else.
func (s *Server) registerUser(c echo.Context) error {
	var req models.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return echo.NewHTTPError(http.StatusBadRequest, "A valid email is required")
	}

	key, hash, prefix, err := auth.GenerateAPIKey()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate API key")
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		APIKeyHash:   hash,
		APIKeyPrefix: prefix,
	}
	if req.GitHubUsername != "" {
		user.GitHubUsername = &req.GitHubUsername
	}
	if req.GitHubToken != "" {
		encrypted, err := s.secrets.Encrypt(req.GitHubToken)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to store GitHub token")
		}
		user.GitHubTokenEncrypted = &encrypted
	}

	if err := s.store.CreateUser(c.Request().Context(), user); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return echo.NewHTTPError(http.StatusConflict, "Email already registered")
		}
		log.Error().Err(err).Msg("user registration failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create user")
	}

	log.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("user registered")
	return c.JSON(http.StatusCreated, models.RegisterResponse{
		UserID:       user.ID,
		APIKey:       key,
		APIKeyPrefix: prefix,
	})
}

// updateToken rotates the caller's stored GitHub token.
func (s *Server) updateToken(c echo.Context) error {
	user := auth.GetUser(c)

	var req models.UpdateTokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if req.GitHubToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "github_token is required")
	}

	encrypted, err := s.secrets.Encrypt(req.GitHubToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to store GitHub token")
	}
	if err := s.store.UpdateGitHubToken(c.Request().Context(), user.ID, encrypted, nil); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update token")
	}

	log.Info().Str("user_id", user.ID).Msg("github token rotated")
	return c.JSON(http.StatusOK, map[string]string{"status": "updated"})
}

// createConversion accepts a job, records it in the ledger, and hands
// it to the queue. The 202 response carries the job ID for polling.
func (s *Server) createConversion(c echo.Context) error {
	user := auth.GetUser(c)

	var req models.ConvertRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if req.RepoOwner == "" || req.RepoName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "repo_owner and repo_name are required")
	}

	targetLanguage := req.TargetLanguage
	if targetLanguage == "" {
		targetLanguage = "python"
	}
	if !langmap.Supported(targetLanguage) {
		return echo.NewHTTPError(http.StatusBadRequest, "Unsupported target language: "+targetLanguage)
	}
	for _, lang := range req.SourceLanguages {
		if !langmap.Supported(lang) {
			return echo.NewHTTPError(http.StatusBadRequest, "Unsupported source language: "+lang)
		}
	}

	job := &models.ConversionJob{
		ID:              uuid.NewString(),
		UserID:          user.ID,
		RepoOwner:       req.RepoOwner,
		RepoName:        req.RepoName,
		SourceBranch:    req.SourceBranch,
		TargetBranch:    req.TargetBranch,
		SourceLanguages: req.SourceLanguages,
		TargetLanguage:  targetLanguage,
		IncludePatterns: req.IncludePatterns,
		ExcludePatterns: req.ExcludePatterns,
	}
	if err := s.store.CreateJob(c.Request().Context(), job); err != nil {
		log.Error().Err(err).Msg("job creation failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create job")
	}

	if err := s.queue.EnqueueConversion(c.Request().Context(), job.ID); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("job enqueue failed")
		failMsg := "failed to enqueue job"
		// Keep the ledger consistent with what was actually dispatched.
		if terr := s.store.MarkProcessing(c.Request().Context(), job.ID); terr == nil {
			_ = s.store.MarkFailed(c.Request().Context(), job.ID, failMsg, 0, 0)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to enqueue job")
	}

	log.Info().
		Str("job_id", job.ID).
		Str("user_id", user.ID).
		Str("repo", req.RepoOwner+"/"+req.RepoName).
		Msg("conversion job accepted")

	return c.JSON(http.StatusAccepted, models.ConvertResponse{
		JobID:   job.ID,
		Status:  models.JobStatusPending,
		Message: "Conversion job accepted",
	})
}

// getJob reports the status of one of the caller's jobs.
func (s *Server) getJob(c echo.Context) error {
	user := auth.GetUser(c)
	jobID := c.Param("id")

	job, err := s.store.GetJobForUser(c.Request().Context(), jobID, user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Job not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch job")
	}

	return c.JSON(http.StatusOK, models.JobStatusResponse{
		JobID:          job.ID,
		Status:         job.Status,
		FilesProcessed: job.FilesProcessed,
		FilesConverted: job.FilesConverted,
		PRURL:          job.PRURL,
		ErrorMessage:   job.ErrorMessage,
		CreatedAt:      job.CreatedAt,
		StartedAt:      job.StartedAt,
		CompletedAt:    job.CompletedAt,
	})
}

// health aggregates dependency probes. Any failing probe degrades the
// whole response to 503.
func (s *Server) health(c echo.Context) error {
	resp := models.HealthResponse{
		Status:   "healthy",
		Services: make(map[string]string),
	}

	for name, check := range s.checks {
		if check(c.Request().Context()) {
			resp.Services[name] = "healthy"
		} else {
			resp.Services[name] = "unhealthy"
			resp.Status = "degraded"
		}
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, resp)
}
