// Package slack wraps the Slack web API client used to post notifications
// and verify inbound requests from Slack.
package slack

import (
	"context"
	"fmt"
	"net/http"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

type Config struct {
	Token         string
	SigningSecret string
	Debug         bool
}

type Slack struct {
	log    *zap.Logger
	config Config
	client *slack.Client
}

func NewSlack(log *zap.Logger, config Config) *Slack {
	return &Slack{
		log:    log,
		config: config,
	}
}

func (s *Slack) Start(ctx context.Context) error {
	if s.config.Token == "" {
		return fmt.Errorf("no Slack authentication credentials provided")
	}

	clientOpts := []slack.Option{
		slack.OptionDebug(s.config.Debug),
	}

	s.client = slack.New(s.config.Token, clientOpts...)

	if _, err := s.client.AuthTestContext(ctx); err != nil {
		return fmt.Errorf("authenticate with Slack: %w", err)
	}
	return nil
}

func (s *Slack) Stop(ctx context.Context) error {
	return nil
}

func (s *Slack) Client() *slack.Client {
	return s.client
}

// VerifyRequest checks that an inbound request was signed by Slack with our
// signing secret. body must be the exact raw bytes received.
func (s *Slack) VerifyRequest(headers http.Header, body []byte) error {
	if s.config.SigningSecret == "" {
		return fmt.Errorf("no Slack signing secret configured")
	}
	sv, err := slack.NewSecretsVerifier(headers, s.config.SigningSecret)
	if err != nil {
		return fmt.Errorf("create secrets verifier: %w", err)
	}
	if _, err := sv.Write(body); err != nil {
		return fmt.Errorf("write to secrets verifier: %w", err)
	}
	if err := sv.Ensure(); err != nil {
		return fmt.Errorf("verify request signature: %w", err)
	}
	return nil
}
