package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/nowplaying/internal/keychain"
	"github.com/desertthunder/nowplaying/internal/shared"
	"github.com/urfave/cli/v3"
)

// loadOrCreateConfig reads the --config file, creating it from the template when missing.
func (r *Runner) loadOrCreateConfig(cmd *cli.Command) *shared.Config {
	configPath := cmd.String("config")

	config, err := shared.LoadConfig(configPath)
	switch {
	case err == nil:
	case !errors.Is(err, shared.ErrMissingConfig):
		r.logger.Warn("failed to load config, using defaults", "error", err)
		config = shared.DefaultConfig()
	default:
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
			config = shared.DefaultConfig()
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err = shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
				config = shared.DefaultConfig()
			}
		}
	}

	r.config = config
	r.configPath = configPath
	return config
}

// SetupInit creates the config file, the credential database and the sealing key.
func (r *Runner) SetupInit(ctx context.Context, cmd *cli.Command) error {
	config := r.loadOrCreateConfig(cmd)

	if err := r.initDatabase(config); err != nil {
		return err
	}

	r.logger.Info("preparing sealing key", "path", config.Storage.KeyPath)
	if _, err := keychain.LoadOrCreateKey(config.Storage.KeyPath); err != nil {
		return fmt.Errorf("failed to prepare sealing key: %w", err)
	}

	r.writePlain("✓ Setup complete\n")
	r.writePlain("Config:   %s\n", r.configPath)
	r.writePlain("Database: %s\n", config.Storage.Path)
	r.writePlain("Key:      %s\n", config.Storage.KeyPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set spotify.client_id in %s (or export NP_CLIENT_ID)\n", r.configPath)
	r.writePlain("2. Add %s as a redirect URI of your Spotify app\n", config.Spotify.RedirectURI)
	r.writePlain("3. Run 'np auth login'\n")
	return nil
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	if err := r.initDatabase(r.loadOrCreateConfig(cmd)); err != nil {
		return err
	}
	return r.writePlain("✓ Database ready\n")
}

func (r *Runner) initDatabase(config *shared.Config) error {
	r.logger.Info("initializing database", "path", config.Storage.Path)

	db, err := shared.NewDatabase(config.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Storage.MaxOpenConns, config.Storage.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", config.Storage.Path)
	return nil
}

// SetupRollback reverts the most recent migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	config := r.loadOrCreateConfig(cmd)

	db, err := shared.NewDatabase(config.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := shared.RollbackMigration(db); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	return r.writePlain("✓ Rolled back the latest migration\n")
}
