package asana

import (
	"context"
	"net/http"
	"net/url"
)

// CreateWebhook registers a webhook subscription on a resource. Asana opens
// the handshake against target before this call returns, so the receiving
// endpoint must already be reachable.
func (c *Client) CreateWebhook(ctx context.Context, token, resourceID, target string) (*Webhook, error) {
	var webhook Webhook
	body := map[string]string{
		"resource": resourceID,
		"target":   target,
	}
	if err := c.do(ctx, http.MethodPost, "/webhooks", token, nil, body, &webhook); err != nil {
		return nil, err
	}
	return &webhook, nil
}

// ListWebhooks lists webhook subscriptions owned by the token in a workspace.
func (c *Client) ListWebhooks(ctx context.Context, token, workspaceID string) ([]Webhook, error) {
	var webhooks []Webhook
	q := url.Values{"workspace": {workspaceID}, "opt_fields": {"active,resource.name,target"}}
	if err := c.do(ctx, http.MethodGet, "/webhooks", token, q, nil, &webhooks); err != nil {
		return nil, err
	}
	return webhooks, nil
}

// DeleteWebhook removes a webhook subscription.
func (c *Client) DeleteWebhook(ctx context.Context, token, webhookID string) error {
	return c.do(ctx, http.MethodDelete, "/webhooks/"+webhookID, token, nil, nil, nil)
}
