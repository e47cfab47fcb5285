package webhook

import (
	"testing"

	"asanabot.arpa/bot/asana"
)

func changedEvent(user, resource, field string) asana.Event {
	return asana.Event{
		Action:   "changed",
		Resource: asana.EventResource{GID: resource, ResourceType: "task"},
		User:     &asana.EventResource{GID: user},
		Change:   &asana.EventChange{Field: field},
	}
}

func TestDedupe_CollapsesDueDateVariants(t *testing.T) {
	events := []asana.Event{
		changedEvent("u1", "t1", "due_on"),
		changedEvent("u1", "t1", "due_at"),
	}

	deduped := Dedupe(events)
	if len(deduped) != 1 {
		t.Fatalf("Dedupe() returned %d events, want 1", len(deduped))
	}
	if deduped[0].Change.Field != "due_on" {
		t.Errorf("Dedupe() should keep the first occurrence, got field %q", deduped[0].Change.Field)
	}
}

func TestDedupe_KeepsDistinctChanges(t *testing.T) {
	events := []asana.Event{
		changedEvent("u1", "t1", "name"),
		changedEvent("u1", "t1", "notes"),
		changedEvent("u2", "t1", "name"),
		changedEvent("u1", "t2", "name"),
	}

	deduped := Dedupe(events)
	if len(deduped) != 4 {
		t.Errorf("Dedupe() returned %d events, want 4", len(deduped))
	}
}

func TestDedupe_Idempotent(t *testing.T) {
	events := []asana.Event{
		changedEvent("u1", "t1", "due_on"),
		changedEvent("u1", "t1", "due_at"),
		{Action: "completed", Resource: asana.EventResource{GID: "t2", ResourceType: "task"}},
		{Action: "completed", Resource: asana.EventResource{GID: "t2", ResourceType: "task"}},
	}

	once := Dedupe(events)
	twice := Dedupe(once)

	if len(once) > len(events) {
		t.Errorf("Dedupe() grew the batch: %d > %d", len(once), len(events))
	}
	if len(once) != len(twice) {
		t.Fatalf("Dedupe() is not idempotent: %d != %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].Resource.GID != twice[i].Resource.GID {
			t.Errorf("Dedupe() reordered events at %d", i)
		}
	}
}

func TestDedupe_MissingUserTreatedAsUnknown(t *testing.T) {
	events := []asana.Event{
		{Action: "added", Resource: asana.EventResource{GID: "t1", ResourceType: "task"}},
		{Action: "added", Resource: asana.EventResource{GID: "t1", ResourceType: "task"}},
	}

	deduped := Dedupe(events)
	if len(deduped) != 1 {
		t.Errorf("Dedupe() returned %d events, want 1", len(deduped))
	}
}

func TestDedupe_PreservesOrder(t *testing.T) {
	events := []asana.Event{
		{Action: "added", Resource: asana.EventResource{GID: "t1"}},
		{Action: "completed", Resource: asana.EventResource{GID: "t2"}},
		{Action: "added", Resource: asana.EventResource{GID: "t1"}},
		{Action: "removed", Resource: asana.EventResource{GID: "t3"}},
	}

	deduped := Dedupe(events)
	want := []string{"t1", "t2", "t3"}
	if len(deduped) != len(want) {
		t.Fatalf("Dedupe() returned %d events, want %d", len(deduped), len(want))
	}
	for i, gid := range want {
		if deduped[i].Resource.GID != gid {
			t.Errorf("Dedupe()[%d] = %s, want %s", i, deduped[i].Resource.GID, gid)
		}
	}
}

func TestNormalizeChangeField_OnlyForChangedAction(t *testing.T) {
	change := &asana.EventChange{Field: "due_on"}
	if got := normalizeChangeField("completed", change); got != "" {
		t.Errorf("normalizeChangeField(completed) = %q, want empty", got)
	}
	if got := normalizeChangeField("changed", change); got != "due" {
		t.Errorf("normalizeChangeField(changed, due_on) = %q, want 'due'", got)
	}
	if got := normalizeChangeField("changed", &asana.EventChange{Field: "assignee"}); got != "assignee" {
		t.Errorf("normalizeChangeField(changed, assignee) = %q, want 'assignee'", got)
	}
}
