package bot

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// ensureSlack starts the Slack client for one-shot CLI commands, which skip
// the Run lifecycle.
func (s *Bot) ensureSlack(ctx context.Context) (*slack.Client, error) {
	if s.slack.Client() == nil {
		if err := s.slack.Start(ctx); err != nil {
			return nil, fmt.Errorf("start slack: %w", err)
		}
	}
	client := s.slack.Client()
	if client == nil {
		return nil, fmt.Errorf("slack client is unavailable")
	}
	return client, nil
}

type sendMessageCommandFlags struct {
	Message  string
	Channels []string
}

func newSendMessageCommandFlags(cmd *cli.Command) *sendMessageCommandFlags {
	return &sendMessageCommandFlags{
		Message:  cmd.String("message"),
		Channels: cmd.StringSlice("channels"),
	}
}

func newSendMessageCommand(s *Bot) *cli.Command {
	return &cli.Command{
		Name:   "send-message",
		Usage:  "Send a message to specified channels",
		Action: cmdWithBot(sendMessage, s),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "message",
				Aliases:  []string{"m"},
				Usage:    "Message text to send",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:     "channels",
				Aliases:  []string{"c"},
				Usage:    "Channel IDs to send message to",
				Required: true,
			},
		},
	}
}

func sendMessage(ctx context.Context, cmd *cli.Command, s *Bot) error {
	f := newSendMessageCommandFlags(cmd)
	if f.Message == "" {
		return fmt.Errorf("message text is required")
	}
	if len(f.Channels) == 0 {
		return fmt.Errorf("channel ID is required")
	}

	client, err := s.ensureSlack(ctx)
	if err != nil {
		return err
	}

	var messagesSent int
	for _, channel := range f.Channels {
		_, _, err := client.PostMessageContext(ctx, channel, slack.MsgOptionText(f.Message, false))
		if err != nil {
			s.log.Error("Failed to send message to channel", zap.String("channel", channel), zap.Error(err))
			continue
		}
		messagesSent++
		s.log.Debug("Message sent to channel", zap.String("channel", channel))
	}

	s.log.Info("Finished sending messages", zap.Int("messagesSent", messagesSent), zap.Int("totalChannels", len(f.Channels)))
	return nil
}

func newListWebhooksCommand(s *Bot) *cli.Command {
	return &cli.Command{
		Name:   "list-webhooks",
		Usage:  "List registered webhook mappings",
		Action: cmdWithBot(listWebhooks, s),
	}
}

func listWebhooks(ctx context.Context, cmd *cli.Command, s *Bot) error {
	mappings, err := s.store.ListMappings(ctx)
	if err != nil {
		return fmt.Errorf("list mappings: %w", err)
	}
	if len(mappings) == 0 {
		fmt.Println("no webhook mappings registered")
		return nil
	}
	for _, m := range mappings {
		fmt.Printf("resource=%s webhook=%s room=%s created_by=%s created_at=%s\n",
			m.ResourceID, m.WebhookID, m.RoomID, m.CreatedBy, m.CreatedAt.Format("2006-01-02"))
	}
	return nil
}

type deleteWebhookCommandFlags struct {
	WebhookID string
}

func newDeleteWebhookCommandFlags(cmd *cli.Command) *deleteWebhookCommandFlags {
	return &deleteWebhookCommandFlags{
		WebhookID: cmd.String("webhook-id"),
	}
}

func newDeleteWebhookCommand(s *Bot) *cli.Command {
	return &cli.Command{
		Name:   "delete-webhook",
		Usage:  "Delete a webhook subscription and its local mapping",
		Action: cmdWithBot(deleteWebhook, s),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "webhook-id",
				Usage:    "Asana webhook id to delete",
				Required: true,
			},
		},
	}
}

func deleteWebhook(ctx context.Context, cmd *cli.Command, s *Bot) error {
	f := newDeleteWebhookCommandFlags(cmd)
	if f.WebhookID == "" {
		return fmt.Errorf("webhook ID is required")
	}

	token := s.webhook.Enricher().Token(ctx, "")
	if token == "" {
		return fmt.Errorf("no Asana credential available, configure a service-account token or API key")
	}

	s.log.Info("Deleting webhook", zap.String("webhookID", f.WebhookID))
	if err := s.asana.DeleteWebhook(ctx, token, f.WebhookID); err != nil {
		return fmt.Errorf("delete webhook upstream: %w", err)
	}
	if err := s.store.DeleteMappingByWebhookID(ctx, f.WebhookID); err != nil {
		// The upstream subscription is already gone, local cleanup can retry.
		s.log.Error("Failed to delete local mapping", zap.String("webhookID", f.WebhookID), zap.Error(err))
	}

	s.log.Info("Webhook deleted", zap.String("webhookID", f.WebhookID))
	return nil
}
