package bot

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"asanabot.arpa/bot/asana"
	"asanabot.arpa/bot/commands"
	"asanabot.arpa/bot/config"
	"asanabot.arpa/bot/http"
	"asanabot.arpa/bot/oauth"
	"asanabot.arpa/bot/slack"
	"asanabot.arpa/bot/store"
	"asanabot.arpa/bot/webhook"
	"asanabot.arpa/logger"
)

type Bot struct {
	BuildOpts  config.BuildOpts
	logger     logger.Logger
	log        *zap.Logger
	config     config.Config
	settings   *config.SettingsWatcher
	store      *store.Store
	asana      *asana.Client
	slack      *slack.Slack
	httpServer *http.Server
	webhook    *webhook.Webhook
	oauth      *oauth.OAuth
	commands   *commands.Commands
}

func NewBot(buildOpts config.BuildOpts) *Bot {
	return &Bot{
		BuildOpts: buildOpts,
	}
}

func (s *Bot) Setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	var err error
	s.config, err = s.BuildOpts.MakeConfig(cmd)
	if err != nil {
		return ctx, fmt.Errorf("config setup: %w", err)
	}

	isProd := s.config.Environment == config.EnvironmentProduction
	s.logger, err = logger.NewLogger(logger.LoggerOpts{
		Level:        s.config.LogLevel,
		IsProduction: isProd,
		JSONConsole:  isProd,
	})
	if err != nil {
		return ctx, err
	}
	s.log = s.logger.Get()

	s.settings = config.NewSettingsWatcher(s.log, s.config.SettingsFile, s.config.APIKey)

	s.store, err = store.NewStore(ctx, s.config.DataDir)
	if err != nil {
		return ctx, fmt.Errorf("store setup: %w", err)
	}

	s.asana = asana.NewClient(s.log, s.config.Asana)
	s.slack = slack.NewSlack(s.log, s.config.Slack)
	s.oauth = oauth.NewOAuth(s.log, s.config.OAuth, s.store)
	s.webhook = webhook.NewWebhook(s.log, s.config.Webhook, s.store, s.asana, s.settings)
	s.commands = commands.NewCommands(s.log, commands.Config{
		PublicURL:   s.config.PublicURL,
		WebhookPath: s.config.Webhook.Path,
	}, s.store, s.asana, s.slack, s.oauth, s.settings)

	s.httpServer = http.NewServer(s.log, s.config.Server)
	s.httpServer.Handle(s.config.Webhook.Path, s.webhook.HandleDelivery)
	s.httpServer.Handle(config.OAuthCallbackPath, s.oauth.HandleCallback)
	s.httpServer.Handle(config.CommandPath, s.commands.HandleSlashCommand)

	return ctx, nil
}

func (s *Bot) Run(runCtx context.Context) error {
	if err := s.settings.Start(runCtx); err != nil {
		return fmt.Errorf("start settings watcher: %w", err)
	}

	if err := s.slack.Start(runCtx); err != nil {
		return fmt.Errorf("start slack: %w", err)
	}

	slackClient := s.slack.Client()
	if slackClient == nil {
		return errors.New("slack client is unavailable")
	}

	if err := s.webhook.Start(slackClient); err != nil {
		return fmt.Errorf("start webhook: %w", err)
	}
	s.oauth.Start(slackClient)

	return s.httpServer.Run(runCtx)
}

func (s *Bot) BeginShutdown(ctx context.Context) error {
	if err := s.httpServer.BeginShutdown(ctx); err != nil {
		return fmt.Errorf("begin shutdown http server: %w", err)
	}
	return nil
}

// Shutdown resources in reverse order of the Setup/Run
func (s *Bot) Shutdown(ctx context.Context) error {
	var errs error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = errors.Join(errs, fmt.Errorf("shutdown http server: %w", err))
	}
	if err := s.slack.Stop(ctx); err != nil {
		errs = errors.Join(errs, fmt.Errorf("stop slack: %w", err))
	}
	s.settings.Stop()
	if err := s.store.Close(); err != nil {
		errs = errors.Join(errs, fmt.Errorf("close store: %w", err))
	}
	// Sync throws an error when logging to console (sync is for buffered file logging)
	// https://github.com/uber-go/zap/issues/991#issuecomment-962098428
	if err := s.log.Sync(); err != nil && !errors.Is(err, syscall.ENOTTY) {
		errs = errors.Join(errs, fmt.Errorf("sync logger: %w", err))
	}
	return errs
}

func (s *Bot) ForceShutdown(ctx context.Context) error {
	return nil
}

func (s *Bot) Logger() *zap.Logger {
	return s.logger.Get()
}
