package webhook

import (
	"strings"

	"asanabot.arpa/bot/asana"
)

type eventKey struct {
	userGID     string
	action      string
	resourceGID string
	changeField string
}

// Asana reports a due-date edit as separate changes to due_on and due_at.
// Both collapse to one key so a single edit produces a single notification.
func normalizeChangeField(action string, change *asana.EventChange) string {
	if action != "changed" || change == nil {
		return ""
	}
	switch change.Field {
	case "due_on", "due_at":
		return "due"
	default:
		return change.Field
	}
}

func keyOf(ev asana.Event) eventKey {
	key := eventKey{
		userGID:     "unknown",
		action:      ev.Action,
		resourceGID: "unknown",
		changeField: normalizeChangeField(ev.Action, ev.Change),
	}
	if ev.User != nil && ev.User.GID != "" {
		key.userGID = ev.User.GID
	}
	if ev.Resource.GID != "" {
		key.resourceGID = ev.Resource.GID
	}
	return key
}

// Dedupe collapses near-duplicate events within one delivery batch. Order is
// preserved and the first occurrence of each key wins.
func Dedupe(events []asana.Event) []asana.Event {
	if len(events) < 2 {
		return events
	}
	seen := make(map[eventKey]struct{}, len(events))
	deduped := make([]asana.Event, 0, len(events))
	for _, ev := range events {
		key := keyOf(ev)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, ev)
	}
	return deduped
}

// ChangeSummary names what changed for rendering, e.g. "due date" instead of
// the raw field name.
func ChangeSummary(ev asana.Event) string {
	if ev.Change == nil {
		return ""
	}
	switch ev.Change.Field {
	case "due_on", "due_at":
		return "due date"
	default:
		return strings.ReplaceAll(ev.Change.Field, "_", " ")
	}
}
