package config

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"asanabot.arpa/bot/asana"
	"asanabot.arpa/bot/http"
	"asanabot.arpa/bot/oauth"
	"asanabot.arpa/bot/slack"
	"asanabot.arpa/bot/webhook"
)

type Environment string

const (
	EnvironmentDevelopment Environment = "development"
	EnvironmentProduction  Environment = "production"

	WebhookPath       = "/webhooks/asana"
	OAuthCallbackPath = "/oauth/callback"
	CommandPath       = "/commands"
)

func (e Environment) String() string {
	return string(e)
}

func environmentFromString(s string) Environment {
	switch s {
	case EnvironmentDevelopment.String():
		return EnvironmentDevelopment
	case EnvironmentProduction.String():
		return EnvironmentProduction
	default:
		return ""
	}
}

// From LDFLAGS
type BuildOpts struct {
	BuildVersion     string
	BuildTime        string
	BuildEnvironment string
}

func (l BuildOpts) MakeConfig(cmd *cli.Command) (Config, error) {
	if l.BuildVersion == "" {
		l.BuildVersion = "dev"
	}

	dataDir := cmd.String("data-dir")
	if dataDir == "" {
		dataDir = "./tmp"
	} else {
		dataDir, _ = relativeToAbsolutePath(dataDir)
	}

	publicURL := strings.TrimSuffix(cmd.String("public-url"), "/")
	if publicURL == "" {
		publicURL = strings.TrimSuffix(cmd.String("server-url"), "/")
	}

	return Config{
		Version:      l.BuildVersion,
		BuildTime:    l.BuildTime,
		LogLevel:     cmd.String("log-level"),
		Environment:  environmentFromString(cmd.String("env")),
		DataDir:      dataDir,
		SettingsFile: cmd.String("settings-file"),
		PublicURL:    publicURL,
		APIKey:       cmd.String("asana-api-key"),
		Server: http.Config{
			ServerURL: cmd.String("server-url"),
		},
		Slack: slack.Config{
			Token:         cmd.String("slack-token"),
			SigningSecret: cmd.String("slack-signing-secret"),
			Debug:         cmd.Bool("slack-debug"),
		},
		Asana: asana.Config{
			BaseURL: cmd.String("asana-base-url"),
		},
		OAuth: oauth.Config{
			ClientID:     cmd.String("asana-client-id"),
			ClientSecret: cmd.String("asana-client-secret"),
			RedirectURL:  publicURL + OAuthCallbackPath,
		},
		Webhook: webhook.Config{
			Path: WebhookPath,
		},
	}, nil
}

type Config struct {
	Version      string
	BuildTime    string
	LogLevel     string
	Environment  Environment
	DataDir      string
	SettingsFile string
	PublicURL    string
	APIKey       string
	Server       http.Config
	Slack        slack.Config
	Asana        asana.Config
	OAuth        oauth.Config
	Webhook      webhook.Config
}

// Relative path from the executable directory.
// Returns the input if it's already absolute.
func relativeToAbsolutePath(input string) (string, error) {
	if path.IsAbs(input) {
		return input, nil
	}
	cwd, err := currentExecutableDirectory()
	if err != nil {
		return input, err
	}
	return path.Clean(path.Join(cwd, input)), nil
}

// Returns the directory of the current executable.
// Not the same as the CWD, this depends on where the executable is instead.
func currentExecutableDirectory() (string, error) {
	ex, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(ex), nil
}

func Default[T comparable](val T, defaultVal T) T {
	var zero T
	if val == zero {
		return defaultVal
	}
	return val
}
