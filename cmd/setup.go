package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/autoshorts/internal/shared"
)

// SetupConfig writes the default config file when none exists.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if _, err := os.Stat(configPath); err == nil {
		r.logger.Info("config file already exists", "path", configPath)
		return nil
	}

	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", configPath)
	return nil
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	applied, err := shared.AppliedMigrations(db)
	if err != nil {
		return err
	}
	r.logger.Infof("setup complete for database: %v (%d migrations applied)", r.config.Database.Path, len(applied))

	if err := r.requireCipher(); err != nil {
		r.logger.Warn("credentials cannot be stored until ENCRYPTION_KEY is set; run 'autoshorts setup key --write'", "error", err)
	}
	return nil
}

// SetupRollback rolls back the latest migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := shared.RollbackMigration(db); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	r.logger.Info("rolled back latest migration", "path", r.config.Database.Path)
	return nil
}

// SetupKey prints a new ENCRYPTION_KEY, or appends one to the env file with --write.
//
// An existing key is never replaced: credentials sealed with it would become unreadable.
func (r *Runner) SetupKey(ctx context.Context, cmd *cli.Command) error {
	key, err := shared.GenerateKey()
	if err != nil {
		return err
	}

	if !cmd.Bool("write") {
		return r.writePlain("ENCRYPTION_KEY=%s\n", key)
	}

	envFile := cmd.String("env-file")
	existing, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", envFile, err)
	}
	if strings.TrimSpace(existing["ENCRYPTION_KEY"]) != "" {
		return fmt.Errorf("%w: ENCRYPTION_KEY already set in %s", shared.ErrDuplicate, envFile)
	}

	f, err := os.OpenFile(envFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", envFile, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "\nENCRYPTION_KEY=%s\n", key); err != nil {
		return fmt.Errorf("failed to write %s: %w", envFile, err)
	}
	r.logger.Info("encryption key written", "file", envFile)
	return nil
}
