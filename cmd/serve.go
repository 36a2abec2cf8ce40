package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/codemorph/internal/api"
	"github.com/codemorph/internal/api/auth"
	"github.com/codemorph/internal/config"
	"github.com/codemorph/internal/database"
	"github.com/codemorph/internal/gateway/github"
	"github.com/codemorph/internal/jobqueue"
	"github.com/codemorph/internal/store"
	"github.com/codemorph/internal/translate"
)

// ServeCommand returns the CLI command for running the API server and
// background workers.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the CodeMorph API server and conversion workers",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (overrides config)",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if port := c.Int("port"); port != 0 {
		cfg.Server.Port = port
	}

	db, err := database.NewDB(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	st := store.New(db)

	secrets, err := auth.NewSecretBox(cfg.Auth.SecretKey)
	if err != nil {
		return fmt.Errorf("invalid auth secret_key: %w", err)
	}

	var appAuth *github.AppAuth
	if cfg.GitHub.App.AppID != 0 && cfg.GitHub.App.PrivateKeyPath != "" {
		appAuth, err = github.NewAppAuth(cfg.GitHub.App.AppID, cfg.GitHub.App.PrivateKeyPath, cfg.GitHub.APIURL)
		if err != nil {
			return fmt.Errorf("failed to load github app credentials: %w", err)
		}
		log.Info().Int64("app_id", cfg.GitHub.App.AppID).Msg("github app authentication enabled")
	}

	queue, err := jobqueue.NewJobQueue(cfg.Database.URL, st, secrets, appAuth, cfg)
	if err != nil {
		return fmt.Errorf("failed to create job queue: %w", err)
	}
	if err := queue.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start job queue: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := queue.Stop(ctx); err != nil {
			log.Warn().Err(err).Msg("job queue did not stop cleanly")
		}
	}()

	checks, err := buildHealthChecks(cfg)
	if err != nil {
		return err
	}

	log.Info().Int("port", cfg.Server.Port).Msg("starting codemorph server")
	server := api.NewServer(cfg.Server.Port, st, secrets, queue, checks)
	return server.Start()
}

// buildHealthChecks wires the dependency probes served by /health.
func buildHealthChecks(cfg *config.Config) (map[string]api.HealthCheck, error) {
	gateway := github.NewClient(cfg.GitHub.APIURL, "")

	model, err := translate.NewModel(context.Background(), translate.ModelOptions{
		Provider: translate.Provider(cfg.LLM.Provider),
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize llm: %w", err)
	}
	engine := translate.NewEngine(model, cfg.LLM.Model, cfg.LLM.Temperature, cfg.LLM.MaxTokens)

	return map[string]api.HealthCheck{
		"github": gateway.Reachable,
		"llm":    engine.HealthCheck,
	}, nil
}
