package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/urfave/cli/v3"
)

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log level",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
			Action: func(ctx context.Context, cmd *cli.Command, v string) error {
				options := []string{"error", "warn", "info", "debug"}
				if slices.Contains(options, strings.ToLower(v)) {
					return nil
				}
				return cli.Exit(fmt.Errorf("'log-level' must be %v. Received: %v", strings.Join(options, ", "), v), 2)
			},
		},
		&cli.StringFlag{
			Name:    "env",
			Usage:   "build environment description",
			Value:   "development",
			Sources: cli.EnvVars("ENVIRONMENT"),
			Action: func(ctx context.Context, cmd *cli.Command, v string) error {
				options := []string{EnvironmentDevelopment.String(), EnvironmentProduction.String()}
				if slices.Contains(options, strings.ToLower(v)) {
					return nil
				}
				return cli.Exit(fmt.Errorf("'env' must be %v. Received: %v", strings.Join(options, ", "), v), 2)
			},
		},
		&cli.StringFlag{
			Name:    "data-dir",
			Usage:   "Data storage directory, may be relative or absolute",
			Value:   "./tmp",
			Sources: cli.EnvVars("DATA_DIR"),
			Action: func(ctx context.Context, cmd *cli.Command, v string) error {
				if err := validateDirectoryInput(v, 0755); err != nil {
					return cli.Exit(fmt.Errorf("invalid data directory: %v", err), 2)
				}
				return nil
			},
		},
		&cli.StringFlag{
			Name:    "server-url",
			Usage:   "Address the HTTP server listens on",
			Value:   "http://localhost:4300",
			Sources: cli.EnvVars("SERVER_URL"),
			Action: func(ctx context.Context, cmd *cli.Command, v string) error {
				if err := validateURLInput(v); err != nil {
					return cli.Exit(fmt.Errorf("invalid server URL: %v", err), 2)
				}
				return nil
			},
		},
		&cli.StringFlag{
			Name:    "public-url",
			Usage:   "Externally reachable base URL Asana uses for webhook deliveries and the OAuth redirect",
			Sources: cli.EnvVars("PUBLIC_URL"),
		},
		&cli.StringFlag{
			Name:    "settings-file",
			Usage:   "Optional YAML settings file (service-account token, API key, default workspace), reloaded on change",
			Sources: cli.EnvVars("SETTINGS_FILE"),
			Action: func(ctx context.Context, cmd *cli.Command, v string) error {
				if err := validateFileInput(v); err != nil {
					return cli.Exit(fmt.Errorf("invalid settings file: %v", err), 2)
				}
				return nil
			},
		},
		&cli.StringFlag{
			Name:    "slack-token",
			Usage:   "Slack bot token used to post notifications",
			Sources: cli.EnvVars("SLACK_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "slack-signing-secret",
			Usage:   "Slack signing secret used to verify slash command requests",
			Sources: cli.EnvVars("SLACK_SIGNING_SECRET"),
		},
		&cli.BoolFlag{
			Name:    "slack-debug",
			Usage:   "Enable Slack client debug logging",
			Sources: cli.EnvVars("SLACK_DEBUG"),
		},
		&cli.StringFlag{
			Name:    "asana-client-id",
			Usage:   "Asana OAuth application client id",
			Sources: cli.EnvVars("ASANA_CLIENT_ID"),
		},
		&cli.StringFlag{
			Name:    "asana-client-secret",
			Usage:   "Asana OAuth application client secret",
			Sources: cli.EnvVars("ASANA_CLIENT_SECRET"),
		},
		&cli.StringFlag{
			Name:    "asana-api-key",
			Usage:   "Static Asana personal access token, last-resort credential for server-to-server calls",
			Sources: cli.EnvVars("ASANA_API_KEY"),
		},
		&cli.StringFlag{
			Name:    "asana-base-url",
			Usage:   "Override the Asana API base URL",
			Sources: cli.EnvVars("ASANA_BASE_URL"),
		},
	}
}

// Ensures the directory input is valid.
//
// The directory must either exist or the parent directory must exist.
// Will create if the directory doesn't exist.
func validateDirectoryInput(dir string, permissions os.FileMode) error {
	if dir == "" {
		return errors.New("directory is required")
	}
	parent := filepath.Dir(dir)
	if _, err := os.Stat(parent); err != nil {
		return err
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, permissions); err != nil {
			return err
		}
	}
	return nil
}

// Ensures the file input is valid.
func validateFileInput(file string) error {
	if file == "" {
		return errors.New("file is required")
	}
	if _, err := os.Stat(file); err != nil {
		return err
	}
	return nil
}

func validateURLInput(input string) error {
	if input == "" {
		return errors.New("URL is required")
	}
	u, err := url.ParseRequestURI(input)
	if err != nil || u == nil || u.Host == "" {
		return fmt.Errorf("invalid url '%v': %v", input, err)
	}
	return nil
}
