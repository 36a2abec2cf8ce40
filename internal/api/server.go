// Package api is the HTTP surface: tenant registration, job
// submission, job status, and health.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/codemorph/internal/api/auth"
	"github.com/codemorph/pkg/models"
)

// Enqueuer dispatches accepted jobs to the background workers.
type Enqueuer interface {
	EnqueueConversion(ctx context.Context, jobID string) error
}

// Store is the slice of the persistence layer the API needs.
type Store interface {
	auth.UserResolver
	CreateUser(ctx context.Context, user *models.User) error
	UpdateGitHubToken(ctx context.Context, userID, encryptedToken string, githubUsername *string) error
	CreateJob(ctx context.Context, job *models.ConversionJob) error
	GetJobForUser(ctx context.Context, jobID, userID string) (*models.ConversionJob, error)
	MarkProcessing(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID, errorMessage string, filesProcessed, filesConverted int) error
}

// HealthCheck probes one dependency. False means degraded, never an
// error.
type HealthCheck func(ctx context.Context) bool

// Server represents the API server
type Server struct {
	echo    *echo.Echo
	port    int
	store   Store
	secrets *auth.SecretBox
	queue   Enqueuer
	checks  map[string]HealthCheck
}

// NewServer creates a new API server
func NewServer(port int, st Store, secrets *auth.SecretBox, queue Enqueuer, checks map[string]HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	server := &Server{
		echo:    e,
		port:    port,
		store:   st,
		secrets: secrets,
		queue:   queue,
		checks:  checks,
	}

	server.setupRoutes()

	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.health)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/users", s.registerUser)

	authed := v1.Group("", auth.RequireAPIKey(s.store))
	authed.PUT("/users/token", s.updateToken)
	authed.POST("/convert", s.createConversion)
	authed.GET("/jobs/:id", s.getJob)
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start begins the API server and blocks until interrupted.
func (s *Server) Start() error {
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
			s.echo.Logger.Fatal("shutting down the server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}
