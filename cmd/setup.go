package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/dzdedupe/internal/shared"
)

// SetupConfig writes the built-in config template to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", configPath)
	return r.writePlain("✓ Config written to %s\n", configPath)
}

// SetupDatabase initializes the run history database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := r.openDB(r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Database ready at %s\n", r.config.Database.Path)
	if !r.config.Database.Enabled {
		r.writePlain("Set database.enabled = true in %s to record runs\n", r.configFile())
	}
	return nil
}

// SetupSession imports the sid cookie from a "Copy as cURL" request and validates it.
//
// The cURL command is saved with owner-only permissions so credentials.curl_file can point at it.
func (r *Runner) SetupSession(ctx context.Context, cmd *cli.Command) error {
	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")
	outputPath := cmd.String("output")

	if curlCmd == "" && curlFile == "" {
		return fmt.Errorf("%w: either --curl or --curl-file must be provided", shared.ErrMissingArgument)
	}

	if curlCmd != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}

	r.logger.Info("parsing cURL command for the Deezer session")

	if curlFile != "" {
		data, err := os.ReadFile(curlFile)
		if err != nil {
			return fmt.Errorf("failed to read cURL file: %w", err)
		}
		curlCmd = string(data)
		r.logger.Info("read cURL from file", "file", curlFile)
	}

	headers, err := shared.ParseCurlCommand(curlCmd)
	if err != nil {
		return fmt.Errorf("failed to parse cURL command: %w", err)
	}

	sid := headers.SessionID()
	if sid == "" {
		return fmt.Errorf("%w: no sid cookie in cURL command", shared.ErrMissingCredentials)
	}

	if r.service == nil {
		return fmt.Errorf("%w: service not initialized", shared.ErrServiceUnavailable)
	}
	if err := r.service.Authenticate(ctx, shared.StaticCredential(sid)); err != nil {
		return fmt.Errorf("session rejected: %w", err)
	}
	r.logger.Info("session is valid")

	if outputPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		outputPath = filepath.Join(homeDir, ".dzdedupe", "session.curl")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0700); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(outputPath, []byte(curlCmd), 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	r.logger.Info("session saved", "path", outputPath)

	r.writePlain("✓ Deezer session is valid%s\n", userSuffix(r.service))
	r.writePlain("Session saved to: %s\n", outputPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Update %s with: credentials.curl_file = \"%s\"\n", r.configFile(), outputPath)
	r.writePlain("2. Run 'dzdedupe playlists' to test the session\n")

	return nil
}

func (r *Runner) configFile() string {
	if r.configPath != "" {
		return r.configPath
	}
	return defaultConfigPath
}
