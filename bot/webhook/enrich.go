package webhook

import (
	"context"

	"go.uber.org/zap"

	"asanabot.arpa/bot/asana"
	"asanabot.arpa/bot/store"
)

// TokenSource provides stored user credentials.
type TokenSource interface {
	TokenByUserID(ctx context.Context, userID string) (*store.UserToken, error)
	AnyToken(ctx context.Context) (*store.UserToken, error)
}

// ServiceCredentials provides the non-interactive credentials used when no
// user token can be recovered: the service-account token from the settings
// file and the statically configured API key.
type ServiceCredentials interface {
	ServiceAccountToken() string
	APIKey() string
}

// TaskAPI is the slice of the Asana client the enricher consumes.
type TaskAPI interface {
	GetTask(ctx context.Context, token, taskID string) (*asana.Task, error)
	GetProject(ctx context.Context, token, projectID string) (*asana.Project, error)
	GetUser(ctx context.Context, token, userID string) (*asana.User, error)
}

// Detail is everything the dispatcher may render about one event. Any field
// may be nil when its lookup failed; rendering degrades to placeholders.
type Detail struct {
	Task    *asana.Task
	Project *asana.Project
	User    *asana.User
}

// Enricher fetches task/project/user detail for routed events. Lookups are
// read-through with no cache; a failed call degrades that one notification,
// never the batch.
type Enricher struct {
	log    *zap.Logger
	api    TaskAPI
	tokens TokenSource
	creds  ServiceCredentials
}

func NewEnricher(log *zap.Logger, api TaskAPI, tokens TokenSource, creds ServiceCredentials) *Enricher {
	return &Enricher{log: log, api: api, tokens: tokens, creds: creds}
}

// Token recovers an access token for a server-to-server call. Order: the
// preferred user's stored token, any stored token, the service-account token,
// the configured API key. Empty when nothing is available.
func (e *Enricher) Token(ctx context.Context, preferredUser string) string {
	if preferredUser != "" {
		if t, err := e.tokens.TokenByUserID(ctx, preferredUser); err != nil {
			e.log.Warn("Failed to read stored token.", zap.String("user", preferredUser), zap.Error(err))
		} else if t != nil {
			return t.AccessToken
		}
	}
	if t, err := e.tokens.AnyToken(ctx); err != nil {
		e.log.Warn("Failed to read any stored token.", zap.Error(err))
	} else if t != nil {
		return t.AccessToken
	}
	if token := e.creds.ServiceAccountToken(); token != "" {
		return token
	}
	return e.creds.APIKey()
}

// Enrich fetches the detail for one event. token may be empty, in which case
// every lookup degrades immediately.
func (e *Enricher) Enrich(ctx context.Context, token string, ev asana.Event) Detail {
	var detail Detail
	if token == "" {
		return detail
	}

	switch ev.Resource.ResourceType {
	case "task":
		task, err := e.api.GetTask(ctx, token, ev.Resource.GID)
		if err != nil {
			e.log.Debug("Task enrichment failed.", zap.String("task", ev.Resource.GID), zap.Error(err))
		}
		detail.Task = task
		if task != nil && len(task.Projects) > 0 {
			detail.Project = &task.Projects[0]
		}
	case "project":
		project, err := e.api.GetProject(ctx, token, ev.Resource.GID)
		if err != nil {
			e.log.Debug("Project enrichment failed.", zap.String("project", ev.Resource.GID), zap.Error(err))
		}
		detail.Project = project
	}

	if ev.User != nil && ev.User.GID != "" {
		user, err := e.api.GetUser(ctx, token, ev.User.GID)
		if err != nil {
			e.log.Debug("User enrichment failed.", zap.String("user", ev.User.GID), zap.Error(err))
		}
		detail.User = user
	}
	return detail
}

// TaskProjects returns the project ids a task belongs to, for resolution
// fallback. Empty on any failure.
func (e *Enricher) TaskProjects(ctx context.Context, token, taskID string) []string {
	if token == "" {
		return nil
	}
	task, err := e.api.GetTask(ctx, token, taskID)
	if err != nil || task == nil {
		return nil
	}
	projectIDs := make([]string, 0, len(task.Projects))
	for _, p := range task.Projects {
		projectIDs = append(projectIDs, p.GID)
	}
	return projectIDs
}
