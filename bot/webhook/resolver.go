package webhook

import (
	"context"

	"go.uber.org/zap"

	"asanabot.arpa/bot/asana"
	"asanabot.arpa/bot/store"
)

// MappingSource provides the registered resource/webhook/room associations.
type MappingSource interface {
	MappingByResourceID(ctx context.Context, resourceID string) (*store.WebhookMapping, error)
	MappingByWebhookID(ctx context.Context, webhookID string) (*store.WebhookMapping, error)
}

// Resolver maps an event to the chat room registered for its resource.
// Lookup order, first hit wins:
//  1. mapping keyed by the event's resource id
//  2. mapping owned by the delivery's webhook id
//  3. for tasks, mappings keyed by the task's owning project ids
//  4. mapping keyed by the parent resource carried on the event
//
// Unresolved events are dropped by the caller; there is no best-effort scan
// over unrelated mappings.
type Resolver struct {
	log      *zap.Logger
	mappings MappingSource
	enricher *Enricher
}

func NewResolver(log *zap.Logger, mappings MappingSource, enricher *Enricher) *Resolver {
	return &Resolver{log: log, mappings: mappings, enricher: enricher}
}

func (r *Resolver) Resolve(ctx context.Context, ev asana.Event) (*store.WebhookMapping, error) {
	mapping, err := r.mappings.MappingByResourceID(ctx, ev.Resource.GID)
	if err != nil {
		return nil, err
	}
	if mapping != nil {
		return mapping, nil
	}

	if ev.Webhook != nil && ev.Webhook.GID != "" {
		mapping, err = r.mappings.MappingByWebhookID(ctx, ev.Webhook.GID)
		if err != nil {
			return nil, err
		}
		if mapping != nil {
			return mapping, nil
		}
	}

	if ev.Resource.ResourceType == "task" {
		token := r.enricher.Token(ctx, "")
		for _, projectID := range r.enricher.TaskProjects(ctx, token, ev.Resource.GID) {
			mapping, err = r.mappings.MappingByResourceID(ctx, projectID)
			if err != nil {
				return nil, err
			}
			if mapping != nil {
				r.log.Debug("Resolved room via owning project.",
					zap.String("resource", ev.Resource.GID),
					zap.String("project", projectID),
				)
				return mapping, nil
			}
		}
	}

	if ev.Parent != nil && ev.Parent.GID != "" {
		mapping, err = r.mappings.MappingByResourceID(ctx, ev.Parent.GID)
		if err != nil {
			return nil, err
		}
		if mapping != nil {
			r.log.Debug("Resolved room via event parent.",
				zap.String("resource", ev.Resource.GID),
				zap.String("parent", ev.Parent.GID),
			)
			return mapping, nil
		}
	}

	return nil, nil
}
