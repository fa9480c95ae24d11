package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/desertthunder/lyx/internal/server"
	"github.com/desertthunder/lyx/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the example configuration to --config.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if err := shared.CreateConfigFile(configPath); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	r.logger.Info("config file created", "path", configPath)
	r.writePlain("✓ Configuration written to %s\n", configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Run 'lyx setup token' to save a Genius access token\n")
	r.writePlain("2. Point harvest.input_path at your artist list and run 'lyx harvest run'\n")
	return nil
}

// SetupDatabase initializes the attempt ledger and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
		}
		config = shared.DefaultConfig()
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if cmd.Bool("rollback") {
		r.logger.Info("rolling back latest migration")
		if err := shared.RollbackMigration(db); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		r.writePlain("✓ Rolled back the latest migration on %s\n", config.Database.Path)
		return nil
	}

	pending, err := shared.PendingMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}

	r.logger.Info("running database migrations", "pending", len(pending))
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	r.writePlain("✓ Database ready at %s (%d migrations applied)\n", config.Database.Path, len(pending))
	return nil
}

// SetupToken opens the Genius API client page and stores the pasted access token in the .env file.
func (r *Runner) SetupToken(ctx context.Context, cmd *cli.Command) error {
	token := strings.TrimSpace(cmd.String("token"))

	if token == "" && cmd.Bool("oauth") {
		authorized, err := r.authorizeGenius(ctx, cmd)
		if err != nil {
			return err
		}
		token = authorized
	}

	if token == "" {
		if !cmd.Bool("no-browser") {
			if err := r.openBrowser(shared.GeniusClientsURL); err != nil {
				r.logger.Warn("failed to open browser", "error", err)
			}
		}

		r.writePlain("Create an API client at %s and generate a client access token.\n", shared.GeniusClientsURL)
		r.writePlain("Paste the token: ")

		line, err := bufio.NewReader(r.input).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("%w: no token entered", shared.ErrMissingCredentials)
		}
		token = strings.TrimSpace(line)
	}

	if token == "" {
		return fmt.Errorf("%w: no token entered", shared.ErrMissingCredentials)
	}

	if err := shared.SaveEnvValue(r.envPath, shared.GeniusTokenEnv, token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	r.logger.Info("token saved", "path", r.envPath)
	r.writePlain("\n✓ %s saved to %s\n", shared.GeniusTokenEnv, r.envPath)
	return nil
}

// authorizeGenius runs the OAuth authorization code flow with the configured API client.
func (r *Runner) authorizeGenius(ctx context.Context, cmd *cli.Command) (string, error) {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return "", err
	}

	g := config.Credentials.Genius
	for flag, value := range map[string]*string{
		"client-id":     &g.ClientID,
		"client-secret": &g.ClientSecret,
		"redirect-url":  &g.RedirectURL,
	} {
		if cmd.IsSet(flag) {
			*value = cmd.String(flag)
		}
	}

	token, err := server.Authorize(ctx, server.AuthorizeOpts{
		ClientID:     g.ClientID,
		ClientSecret: g.ClientSecret,
		RedirectURL:  g.RedirectURL,
		Endpoint:     r.oauthEndpoint,
		HTTPClient:   r.httpClient,
		Logger:       r.logger,
		Timeout:      5 * time.Minute,
		Visit: func(authURL string) error {
			r.writePlain("Authorize lyx in your browser:\n%s\n\n", authURL)
			if cmd.Bool("no-browser") {
				return nil
			}
			return r.openBrowser(authURL)
		},
	})
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}
