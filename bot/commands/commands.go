// Package commands serves the /asana slash command: authorization, task and
// project browsing, and webhook subscription management.
package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"asanabot.arpa/bot/asana"
	"asanabot.arpa/bot/store"
)

const maxCommandBytes = 64 << 10

type Config struct {
	// PublicURL is the externally reachable base URL; the webhook target is
	// derived from it.
	PublicURL   string
	WebhookPath string
}

// RequestVerifier authenticates inbound requests from Slack.
type RequestVerifier interface {
	VerifyRequest(headers http.Header, body []byte) error
}

// Authorizer builds per-user OAuth authorize URLs.
type Authorizer interface {
	AuthorizeURL(userID, roomID string) string
}

// WorkspaceSettings supplies the default workspace for browsing commands.
type WorkspaceSettings interface {
	DefaultWorkspace() string
}

type Commands struct {
	log        *zap.Logger
	config     Config
	store      *store.Store
	api        *asana.Client
	verifier   RequestVerifier
	authorizer Authorizer
	settings   WorkspaceSettings
}

func NewCommands(log *zap.Logger, config Config, st *store.Store, api *asana.Client, verifier RequestVerifier, authorizer Authorizer, settings WorkspaceSettings) *Commands {
	return &Commands{
		log:        log,
		config:     config,
		store:      st,
		api:        api,
		verifier:   verifier,
		authorizer: authorizer,
		settings:   settings,
	}
}

type response struct {
	ResponseType string `json:"response_type"`
	Text         string `json:"text"`
}

func ephemeral(text string) response {
	return response{ResponseType: "ephemeral", Text: text}
}

func inChannel(text string) response {
	return response{ResponseType: "in_channel", Text: text}
}

// HandleSlashCommand is the POST endpoint Slack calls for /asana.
func (c *Commands) HandleSlashCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBytes))
	if err != nil {
		c.log.Error("Failed to read command body.", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	_ = r.Body.Close()

	if err := c.verifier.VerifyRequest(r.Header, body); err != nil {
		c.log.Warn("Rejected slash command with invalid signature.", zap.Error(err))
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	// SlashCommandParse consumes the form body, restore it after reading.
	r.Body = io.NopCloser(bytes.NewReader(body))
	cmd, err := slack.SlashCommandParse(r)
	if err != nil {
		c.log.Error("Failed to parse slash command.", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	resp := c.route(r.Context(), cmd)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

func (c *Commands) route(ctx context.Context, cmd slack.SlashCommand) response {
	args := strings.Fields(cmd.Text)
	sub := "help"
	if len(args) > 0 {
		sub = strings.ToLower(args[0])
	}

	c.log.Debug("Handling slash command.",
		zap.String("subcommand", sub),
		zap.String("user", cmd.UserID),
		zap.String("channel", cmd.ChannelID),
	)

	switch sub {
	case "auth":
		return c.auth(cmd)
	case "logout":
		return c.logout(ctx, cmd)
	case "tasks":
		return c.tasks(ctx, cmd)
	case "projects":
		return c.projects(ctx, cmd)
	case "task":
		if len(args) < 2 {
			return ephemeral("Usage: `/asana task <task-id>`")
		}
		return c.task(ctx, cmd, args[1])
	case "summary":
		return c.summary(ctx, cmd)
	case "webhook":
		return c.webhook(ctx, cmd, args[1:])
	case "debug":
		return c.debug(ctx, cmd)
	case "help":
		return c.help()
	default:
		return ephemeral(fmt.Sprintf("Unknown subcommand `%s`.\n%s", sub, helpText))
	}
}

const helpText = "Available commands:\n" +
	"• `/asana auth` — connect your Asana account\n" +
	"• `/asana tasks` — your open tasks\n" +
	"• `/asana projects` — projects in the workspace\n" +
	"• `/asana task <id>` — task detail\n" +
	"• `/asana summary` — overdue and upcoming tasks\n" +
	"• `/asana webhook create <project-id>` — notify this channel about a project\n" +
	"• `/asana webhook list` — registered notifications\n" +
	"• `/asana webhook delete <webhook-id>` — stop notifications\n" +
	"• `/asana logout` — disconnect your account"

func (c *Commands) help() response {
	return ephemeral(helpText)
}

func (c *Commands) auth(cmd slack.SlashCommand) response {
	url := c.authorizer.AuthorizeURL(cmd.UserID, cmd.ChannelID)
	return ephemeral(fmt.Sprintf("<%s|Click here to connect your Asana account>.", url))
}

func (c *Commands) logout(ctx context.Context, cmd slack.SlashCommand) response {
	if err := c.store.DeleteToken(ctx, cmd.UserID); err != nil {
		c.log.Error("Failed to delete user token.", zap.String("user", cmd.UserID), zap.Error(err))
		return ephemeral("Something went wrong while disconnecting your account.")
	}
	return ephemeral("Your Asana account has been disconnected.")
}

// userToken returns the caller's stored access token, or an instruction
// response when the user never authorized.
func (c *Commands) userToken(ctx context.Context, userID string) (string, *response) {
	token, err := c.store.TokenByUserID(ctx, userID)
	if err != nil {
		c.log.Error("Failed to read user token.", zap.String("user", userID), zap.Error(err))
		resp := ephemeral("Something went wrong while reading your credentials.")
		return "", &resp
	}
	if token == nil {
		resp := ephemeral("You are not connected to Asana yet. Run `/asana auth` first.")
		return "", &resp
	}
	return token.AccessToken, nil
}

// workspace picks the configured default workspace, falling back to the
// first workspace visible to the token.
func (c *Commands) workspace(ctx context.Context, token string) (string, error) {
	if ws := c.settings.DefaultWorkspace(); ws != "" {
		return ws, nil
	}
	workspaces, err := c.api.ListWorkspaces(ctx, token)
	if err != nil {
		return "", err
	}
	if len(workspaces) == 0 {
		return "", fmt.Errorf("no workspaces visible to this account")
	}
	return workspaces[0].GID, nil
}

func (c *Commands) tasks(ctx context.Context, cmd slack.SlashCommand) response {
	token, errResp := c.userToken(ctx, cmd.UserID)
	if errResp != nil {
		return *errResp
	}
	workspaceID, err := c.workspace(ctx, token)
	if err != nil {
		c.log.Warn("Failed to determine workspace.", zap.Error(err))
		return ephemeral("Could not determine your Asana workspace.")
	}
	tasks, err := c.api.ListMyTasks(ctx, token, workspaceID)
	if err != nil {
		c.log.Warn("Failed to list tasks.", zap.Error(err))
		return ephemeral("Could not fetch your tasks from Asana.")
	}
	if len(tasks) == 0 {
		return ephemeral("You have no open tasks. 🎉")
	}
	return ephemeral("*Your open tasks:*\n" + formatTaskList(tasks, 20))
}

func (c *Commands) projects(ctx context.Context, cmd slack.SlashCommand) response {
	token, errResp := c.userToken(ctx, cmd.UserID)
	if errResp != nil {
		return *errResp
	}
	workspaceID, err := c.workspace(ctx, token)
	if err != nil {
		c.log.Warn("Failed to determine workspace.", zap.Error(err))
		return ephemeral("Could not determine your Asana workspace.")
	}
	projects, err := c.api.ListProjects(ctx, token, workspaceID)
	if err != nil {
		c.log.Warn("Failed to list projects.", zap.Error(err))
		return ephemeral("Could not fetch projects from Asana.")
	}
	if len(projects) == 0 {
		return ephemeral("No projects found in this workspace.")
	}
	var b strings.Builder
	b.WriteString("*Projects:*\n")
	for _, p := range projects {
		fmt.Fprintf(&b, "• %s (`%s`)\n", p.Name, p.GID)
	}
	return ephemeral(b.String())
}

func (c *Commands) task(ctx context.Context, cmd slack.SlashCommand, taskID string) response {
	token, errResp := c.userToken(ctx, cmd.UserID)
	if errResp != nil {
		return *errResp
	}
	task, err := c.api.GetTask(ctx, token, taskID)
	if err != nil {
		c.log.Warn("Failed to fetch task.", zap.String("task", taskID), zap.Error(err))
		return ephemeral(fmt.Sprintf("Could not fetch task `%s`.", taskID))
	}
	return ephemeral(formatTaskDetail(task))
}

func (c *Commands) summary(ctx context.Context, cmd slack.SlashCommand) response {
	token, errResp := c.userToken(ctx, cmd.UserID)
	if errResp != nil {
		return *errResp
	}
	workspaceID, err := c.workspace(ctx, token)
	if err != nil {
		c.log.Warn("Failed to determine workspace.", zap.Error(err))
		return ephemeral("Could not determine your Asana workspace.")
	}
	tasks, err := c.api.ListMyTasks(ctx, token, workspaceID)
	if err != nil {
		c.log.Warn("Failed to list tasks.", zap.Error(err))
		return ephemeral("Could not fetch your tasks from Asana.")
	}
	return ephemeral(formatSummary(tasks))
}

func (c *Commands) webhook(ctx context.Context, cmd slack.SlashCommand, args []string) response {
	if len(args) == 0 {
		return ephemeral("Usage: `/asana webhook create <project-id>` | `list` | `delete <webhook-id>`")
	}
	switch strings.ToLower(args[0]) {
	case "create":
		if len(args) < 2 {
			return ephemeral("Usage: `/asana webhook create <project-id>`")
		}
		return c.webhookCreate(ctx, cmd, args[1])
	case "list":
		return c.webhookList(ctx)
	case "delete":
		if len(args) < 2 {
			return ephemeral("Usage: `/asana webhook delete <webhook-id>`")
		}
		return c.webhookDelete(ctx, cmd, args[1])
	default:
		return ephemeral("Usage: `/asana webhook create <project-id>` | `list` | `delete <webhook-id>`")
	}
}

func (c *Commands) webhookCreate(ctx context.Context, cmd slack.SlashCommand, resourceID string) response {
	token, errResp := c.userToken(ctx, cmd.UserID)
	if errResp != nil {
		return *errResp
	}
	if c.config.PublicURL == "" {
		return ephemeral("The bot has no public URL configured, webhooks cannot be registered.")
	}

	target := c.config.PublicURL + c.config.WebhookPath
	webhook, err := c.api.CreateWebhook(ctx, token, resourceID, target)
	if err != nil {
		c.log.Warn("Failed to create webhook.", zap.String("resource", resourceID), zap.Error(err))
		return ephemeral(fmt.Sprintf("Asana rejected the webhook for `%s`. Check the id and your access.", resourceID))
	}

	err = c.store.PutMapping(ctx, store.WebhookMapping{
		ResourceID: resourceID,
		WebhookID:  webhook.GID,
		RoomID:     cmd.ChannelID,
		CreatedBy:  cmd.UserID,
	})
	if err != nil {
		// The subscription exists upstream even when local bookkeeping fails.
		c.log.Error("Failed to persist webhook mapping.",
			zap.String("resource", resourceID),
			zap.String("webhook", webhook.GID),
			zap.Error(err),
		)
		return ephemeral(fmt.Sprintf("Webhook `%s` was created in Asana but could not be registered locally. Delete and retry.", webhook.GID))
	}

	return inChannel(fmt.Sprintf("🔔 This channel now receives notifications for `%s` (webhook `%s`).", resourceID, webhook.GID))
}

func (c *Commands) webhookList(ctx context.Context) response {
	mappings, err := c.store.ListMappings(ctx)
	if err != nil {
		c.log.Error("Failed to list webhook mappings.", zap.Error(err))
		return ephemeral("Could not read registered webhooks.")
	}
	if len(mappings) == 0 {
		return ephemeral("No webhooks registered.")
	}
	var b strings.Builder
	b.WriteString("*Registered webhooks:*\n")
	for _, m := range mappings {
		fmt.Fprintf(&b, "• resource `%s` → <#%s> (webhook `%s`)\n", m.ResourceID, m.RoomID, m.WebhookID)
	}
	return ephemeral(b.String())
}

func (c *Commands) webhookDelete(ctx context.Context, cmd slack.SlashCommand, webhookID string) response {
	token, errResp := c.userToken(ctx, cmd.UserID)
	if errResp != nil {
		return *errResp
	}
	if err := c.api.DeleteWebhook(ctx, token, webhookID); err != nil {
		c.log.Warn("Failed to delete webhook.", zap.String("webhook", webhookID), zap.Error(err))
		return ephemeral(fmt.Sprintf("Asana rejected deleting webhook `%s`.", webhookID))
	}
	if err := c.store.DeleteMappingByWebhookID(ctx, webhookID); err != nil {
		c.log.Error("Failed to delete webhook mapping.", zap.String("webhook", webhookID), zap.Error(err))
	}
	return ephemeral(fmt.Sprintf("Webhook `%s` deleted.", webhookID))
}

func (c *Commands) debug(ctx context.Context, cmd slack.SlashCommand) response {
	mappings, err := c.store.ListMappings(ctx)
	if err != nil {
		return ephemeral("Could not read store state.")
	}
	token, err := c.store.TokenByUserID(ctx, cmd.UserID)
	if err != nil {
		return ephemeral("Could not read store state.")
	}
	connected := "not connected"
	if token != nil {
		connected = "connected since " + token.UpdatedAt.Format("2006-01-02")
	}
	return ephemeral(fmt.Sprintf("Mappings: %d\nYour account: %s", len(mappings), connected))
}
