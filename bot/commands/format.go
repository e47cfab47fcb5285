package commands

import (
	"fmt"
	"strings"
	"time"

	"asanabot.arpa/bot/asana"
)

// formatTaskList renders tasks as a bullet list, bounded to limit entries.
func formatTaskList(tasks []asana.Task, limit int) string {
	var b strings.Builder
	for i, t := range tasks {
		if i == limit {
			fmt.Fprintf(&b, "…and %d more\n", len(tasks)-limit)
			break
		}
		line := "• " + t.Name
		if due := taskDue(t); due != "" {
			line += " (due " + due + ")"
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func formatTaskDetail(task *asana.Task) string {
	status := "Open"
	if task.Completed {
		status = "Completed ✅"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", task.Name)
	fmt.Fprintf(&b, "Status: %s\n", status)
	if due := taskDue(*task); due != "" {
		fmt.Fprintf(&b, "Due: %s\n", due)
	}
	if task.Assignee != nil {
		fmt.Fprintf(&b, "Assignee: %s\n", task.Assignee.Name)
	}
	if len(task.Projects) > 0 {
		names := make([]string, len(task.Projects))
		for i, p := range task.Projects {
			names[i] = p.Name
		}
		fmt.Fprintf(&b, "Projects: %s\n", strings.Join(names, ", "))
	}
	if task.Notes != "" {
		notes := task.Notes
		if len(notes) > 300 {
			notes = notes[:300] + "…"
		}
		fmt.Fprintf(&b, "\n%s\n", notes)
	}
	if task.Permalink != "" {
		fmt.Fprintf(&b, "<%s|Open in Asana>", task.Permalink)
	}
	return b.String()
}

// formatSummary partitions open tasks into overdue, due today, and upcoming.
func formatSummary(tasks []asana.Task) string {
	today := time.Now().Format("2006-01-02")

	var overdue, dueToday, upcoming []asana.Task
	for _, t := range tasks {
		switch {
		case t.DueOn == "":
			upcoming = append(upcoming, t)
		case t.DueOn < today:
			overdue = append(overdue, t)
		case t.DueOn == today:
			dueToday = append(dueToday, t)
		default:
			upcoming = append(upcoming, t)
		}
	}

	var b strings.Builder
	b.WriteString("*Task summary*\n")
	if len(overdue) > 0 {
		fmt.Fprintf(&b, "\n🔴 *Overdue (%d)*\n%s", len(overdue), formatTaskList(overdue, 10))
	}
	if len(dueToday) > 0 {
		fmt.Fprintf(&b, "\n🟡 *Due today (%d)*\n%s", len(dueToday), formatTaskList(dueToday, 10))
	}
	if len(upcoming) > 0 {
		fmt.Fprintf(&b, "\n🟢 *Upcoming (%d)*\n%s", len(upcoming), formatTaskList(upcoming, 10))
	}
	if len(overdue)+len(dueToday)+len(upcoming) == 0 {
		b.WriteString("\nNothing on your plate. 🎉")
	}
	return b.String()
}

func taskDue(t asana.Task) string {
	if t.DueAt != "" {
		return t.DueAt
	}
	return t.DueOn
}
