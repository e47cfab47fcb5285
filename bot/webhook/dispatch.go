package webhook

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"asanabot.arpa/bot/asana"
)

const descriptionExcerptLimit = 200

const (
	colorGreen  = "#36a64f"
	colorRed    = "#dc3545"
	colorBlue   = "#3498db"
	colorPurple = "#6f42c1"
)

// actionVerbs maps Asana event actions to the verb rendered in the title.
// Unknown actions pass through verbatim.
var actionVerbs = map[string]string{
	"added":       "created",
	"changed":     "updated",
	"removed":     "deleted",
	"completed":   "completed",
	"uncompleted": "uncompleted",
	"assigned":    "assigned",
	"due":         "due",
}

var actionEmojis = map[string]string{
	"added":       "🆕",
	"changed":     "✏️",
	"removed":     "🗑️",
	"completed":   "✅",
	"uncompleted": "↩️",
	"assigned":    "👤",
	"due":         "📅",
}

// MessagePoster is the slice of the Slack client the dispatcher consumes.
type MessagePoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Dispatcher formats a routed event into a chat message and posts it as the
// bot identity. Posting is fire-and-forget; a failed post is logged and the
// event is gone.
type Dispatcher struct {
	log    *zap.Logger
	poster MessagePoster
}

func NewDispatcher(log *zap.Logger, poster MessagePoster) *Dispatcher {
	return &Dispatcher{log: log, poster: poster}
}

// Dispatch posts one notification for the event to the resolved room.
func (d *Dispatcher) Dispatch(ctx context.Context, ev asana.Event, detail Detail, roomID string) error {
	title := FormatTitle(ev, detail)
	attachment := buildAttachment(ev, detail)

	_, _, err := d.poster.PostMessageContext(ctx, roomID,
		slack.MsgOptionText(title, false),
		slack.MsgOptionAttachments(attachment),
	)
	if err != nil {
		d.log.Error("Failed to post notification.",
			zap.String("room", roomID),
			zap.String("resource", ev.Resource.GID),
			zap.Error(err),
		)
		return fmt.Errorf("post notification: %w", err)
	}
	return nil
}

// FormatTitle builds the short title line, e.g. "✅ Task completed: Ship v2".
func FormatTitle(ev asana.Event, detail Detail) string {
	verb := ev.Action
	if v, ok := actionVerbs[ev.Action]; ok {
		verb = v
	}
	emoji, ok := actionEmojis[ev.Action]
	if !ok {
		emoji = "🔔"
	}

	label := resourceLabel(ev.Resource.ResourceType)
	name := resourceName(ev, detail)
	if ev.Action == "changed" {
		if change := ChangeSummary(ev); change != "" {
			return fmt.Sprintf("%s %s %s (%s): %s", emoji, label, verb, change, name)
		}
	}
	return fmt.Sprintf("%s %s %s: %s", emoji, label, verb, name)
}

func resourceLabel(resourceType string) string {
	switch resourceType {
	case "task":
		return "Task"
	case "project":
		return "Project"
	case "section":
		return "Section"
	case "story":
		return "Comment"
	default:
		if resourceType == "" {
			return "Resource"
		}
		return strings.ToUpper(resourceType[:1]) + resourceType[1:]
	}
}

func resourceName(ev asana.Event, detail Detail) string {
	switch ev.Resource.ResourceType {
	case "task":
		if detail.Task != nil && detail.Task.Name != "" {
			return detail.Task.Name
		}
	case "project":
		if detail.Project != nil && detail.Project.Name != "" {
			return detail.Project.Name
		}
	}
	if ev.Resource.Name != "" {
		return ev.Resource.Name
	}
	return "unknown " + resourceLabel(ev.Resource.ResourceType)
}

func attachmentColor(ev asana.Event) string {
	if ev.Resource.ResourceType == "section" {
		return colorPurple
	}
	switch ev.Action {
	case "completed", "added":
		return colorGreen
	case "removed":
		return colorRed
	default:
		return colorBlue
	}
}

func buildAttachment(ev asana.Event, detail Detail) slack.Attachment {
	attachment := slack.Attachment{
		Color: attachmentColor(ev),
	}

	var fields []slack.AttachmentField
	if detail.Task != nil {
		status := "Open"
		if detail.Task.Completed {
			status = "Completed"
		}
		fields = append(fields, slack.AttachmentField{Title: "Status", Value: status, Short: true})
		fields = append(fields, slack.AttachmentField{Title: "Due date", Value: dueDate(detail.Task), Short: true})
		fields = append(fields, slack.AttachmentField{Title: "Assignee", Value: assigneeName(detail.Task), Short: true})
		attachment.Text = excerpt(detail.Task.Notes)
		if detail.Task.Permalink != "" {
			attachment.TitleLink = detail.Task.Permalink
			attachment.Title = detail.Task.Name
		}
	} else if detail.Project != nil {
		attachment.Text = excerpt(detail.Project.Notes)
	}

	if detail.Project != nil {
		fields = append(fields, slack.AttachmentField{Title: "Project", Value: detail.Project.Name, Short: true})
	}
	if detail.User != nil {
		attachment.Footer = "by " + detail.User.Name
	}

	attachment.Fields = fields
	return attachment
}

func dueDate(task *asana.Task) string {
	if task.DueAt != "" {
		return task.DueAt
	}
	if task.DueOn != "" {
		return task.DueOn
	}
	return "no due date"
}

func assigneeName(task *asana.Task) string {
	if task.Assignee != nil && task.Assignee.Name != "" {
		return task.Assignee.Name
	}
	return "unassigned"
}

// excerpt bounds free-form notes to a renderable length.
func excerpt(notes string) string {
	notes = strings.TrimSpace(notes)
	if utf8.RuneCountInString(notes) <= descriptionExcerptLimit {
		return notes
	}
	runes := []rune(notes)
	return string(runes[:descriptionExcerptLimit]) + "…"
}
