package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/codemorph/internal/config"
	"github.com/codemorph/internal/database"
)

const shutdownTimeout = 10 * time.Second

// MigrateCommand returns the CLI command for applying the database
// schema.
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:   "migrate",
		Usage:  "Apply the database schema",
		Action: runMigrate,
	}
}

func runMigrate(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database url is required")
	}

	db, err := database.NewDB(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		return err
	}

	fmt.Println("Database schema applied")
	return nil
}
