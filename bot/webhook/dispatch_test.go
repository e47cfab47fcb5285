package webhook

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/slack-go/slack"
	"go.uber.org/zap/zaptest"

	"asanabot.arpa/bot/asana"
)

type recordingPoster struct {
	channels []string
	texts    []string
	err      error
}

func (p *recordingPoster) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	if p.err != nil {
		return "", "", p.err
	}
	p.channels = append(p.channels, channelID)
	_, values, err := slack.UnsafeApplyMsgOptions("token", channelID, "https://slack.test/api/", options...)
	if err != nil {
		return "", "", err
	}
	p.texts = append(p.texts, values.Get("text"))
	return channelID, "1.0", nil
}

func TestFormatTitle(t *testing.T) {
	tests := []struct {
		name   string
		event  asana.Event
		detail Detail
		want   string
	}{
		{
			name:   "completed task",
			event:  asana.Event{Action: "completed", Resource: asana.EventResource{GID: "1", ResourceType: "task"}},
			detail: Detail{Task: &asana.Task{Name: "Ship v2"}},
			want:   "✅ Task completed: Ship v2",
		},
		{
			name: "due date change includes summary",
			event: asana.Event{
				Action:   "changed",
				Resource: asana.EventResource{GID: "1", ResourceType: "task"},
				Change:   &asana.EventChange{Field: "due_on"},
			},
			detail: Detail{Task: &asana.Task{Name: "Ship v2"}},
			want:   "✏️ Task updated (due date): Ship v2",
		},
		{
			name:  "unknown action and missing detail",
			event: asana.Event{Action: "resynced", Resource: asana.EventResource{GID: "1", ResourceType: "task"}},
			want:  "🔔 Task resynced: unknown Task",
		},
		{
			name:   "project added",
			event:  asana.Event{Action: "added", Resource: asana.EventResource{GID: "2", ResourceType: "project"}},
			detail: Detail{Project: &asana.Project{Name: "Roadmap"}},
			want:   "🆕 Project created: Roadmap",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatTitle(tc.event, tc.detail); got != tc.want {
				t.Errorf("FormatTitle() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAttachmentColor(t *testing.T) {
	tests := []struct {
		action       string
		resourceType string
		want         string
	}{
		{"completed", "task", colorGreen},
		{"added", "task", colorGreen},
		{"removed", "task", colorRed},
		{"changed", "task", colorBlue},
		{"added", "section", colorPurple},
	}
	for _, tc := range tests {
		ev := asana.Event{Action: tc.action, Resource: asana.EventResource{ResourceType: tc.resourceType}}
		if got := attachmentColor(ev); got != tc.want {
			t.Errorf("attachmentColor(%s %s) = %s, want %s", tc.action, tc.resourceType, got, tc.want)
		}
	}
}

func TestExcerpt(t *testing.T) {
	if got := excerpt("  short note  "); got != "short note" {
		t.Errorf("excerpt() = %q, want trimmed input", got)
	}

	long := strings.Repeat("й", descriptionExcerptLimit+50)
	got := excerpt(long)
	if !strings.HasSuffix(got, "…") {
		t.Errorf("excerpt() of a long note should end with an ellipsis, got %q", got)
	}
	if utf8.RuneCountInString(got) != descriptionExcerptLimit+1 {
		t.Errorf("excerpt() length = %d runes, want %d", utf8.RuneCountInString(got), descriptionExcerptLimit+1)
	}
}

func TestBuildAttachment_TaskFields(t *testing.T) {
	ev := asana.Event{Action: "completed", Resource: asana.EventResource{GID: "1", ResourceType: "task"}}
	detail := Detail{
		Task: &asana.Task{
			Name:      "Ship v2",
			Completed: true,
			DueOn:     "2026-09-01",
			Notes:     "Release notes draft",
			Permalink: "https://app.asana.com/0/1/1",
			Assignee:  &asana.User{GID: "u1", Name: "Sam"},
		},
		Project: &asana.Project{GID: "p1", Name: "Roadmap"},
		User:    &asana.User{GID: "u2", Name: "Alex"},
	}

	attachment := buildAttachment(ev, detail)
	if attachment.Color != colorGreen {
		t.Errorf("attachment color = %s, want %s", attachment.Color, colorGreen)
	}
	if attachment.TitleLink != "https://app.asana.com/0/1/1" {
		t.Errorf("attachment title link = %s", attachment.TitleLink)
	}
	if attachment.Footer != "by Alex" {
		t.Errorf("attachment footer = %q, want 'by Alex'", attachment.Footer)
	}

	fields := map[string]string{}
	for _, f := range attachment.Fields {
		fields[f.Title] = f.Value
	}
	want := map[string]string{
		"Status":   "Completed",
		"Due date": "2026-09-01",
		"Assignee": "Sam",
		"Project":  "Roadmap",
	}
	for title, value := range want {
		if fields[title] != value {
			t.Errorf("field %s = %q, want %q", title, fields[title], value)
		}
	}
}

func TestBuildAttachment_Placeholders(t *testing.T) {
	ev := asana.Event{Action: "added", Resource: asana.EventResource{GID: "1", ResourceType: "task"}}
	attachment := buildAttachment(ev, Detail{Task: &asana.Task{Name: "Bare"}})

	fields := map[string]string{}
	for _, f := range attachment.Fields {
		fields[f.Title] = f.Value
	}
	if fields["Due date"] != "no due date" {
		t.Errorf("due date placeholder = %q", fields["Due date"])
	}
	if fields["Assignee"] != "unassigned" {
		t.Errorf("assignee placeholder = %q", fields["Assignee"])
	}
}

func TestDispatcher_PostsToRoom(t *testing.T) {
	poster := &recordingPoster{}
	d := NewDispatcher(zaptest.NewLogger(t), poster)

	ev := asana.Event{Action: "completed", Resource: asana.EventResource{GID: "1", ResourceType: "task"}}
	detail := Detail{Task: &asana.Task{Name: "Ship v2"}}

	if err := d.Dispatch(context.Background(), ev, detail, "C123"); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if len(poster.channels) != 1 || poster.channels[0] != "C123" {
		t.Fatalf("Dispatch() posted to %v, want [C123]", poster.channels)
	}
	if poster.texts[0] != "✅ Task completed: Ship v2" {
		t.Errorf("Dispatch() text = %q", poster.texts[0])
	}
}
