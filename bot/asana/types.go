package asana

// User is an Asana user record.
type User struct {
	GID   string `json:"gid"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Workspace is a top-level Asana organization container.
type Workspace struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

// Project is an Asana project record.
type Project struct {
	GID   string `json:"gid"`
	Name  string `json:"name"`
	Notes string `json:"notes,omitempty"`
	Color string `json:"color,omitempty"`
}

// Task is an Asana task record with the fields the bot renders.
type Task struct {
	GID       string    `json:"gid"`
	Name      string    `json:"name"`
	Notes     string    `json:"notes,omitempty"`
	Completed bool      `json:"completed"`
	DueOn     string    `json:"due_on,omitempty"`
	DueAt     string    `json:"due_at,omitempty"`
	Assignee  *User     `json:"assignee,omitempty"`
	Projects  []Project `json:"projects,omitempty"`
	Permalink string    `json:"permalink_url,omitempty"`
}

// Webhook is an Asana webhook subscription.
type Webhook struct {
	GID      string `json:"gid"`
	Active   bool   `json:"active"`
	Resource struct {
		GID          string `json:"gid"`
		Name         string `json:"name"`
		ResourceType string `json:"resource_type"`
	} `json:"resource"`
	Target string `json:"target"`
}

// EventResource identifies the entity an event happened to.
type EventResource struct {
	GID          string `json:"gid"`
	Name         string `json:"name,omitempty"`
	ResourceType string `json:"resource_type"`
}

// EventChange describes which field changed on a "changed" event.
type EventChange struct {
	Field  string `json:"field"`
	Action string `json:"action,omitempty"`
}

// Event is one entry of a webhook delivery batch. Events are transient and
// consumed once per delivery.
type Event struct {
	Action   string         `json:"action"`
	Resource EventResource  `json:"resource"`
	User     *EventResource `json:"user,omitempty"`
	Parent   *EventResource `json:"parent,omitempty"`
	Change   *EventChange   `json:"change,omitempty"`
	Webhook  *EventResource `json:"webhook,omitempty"`
}

// EventPayload is the body of an Asana webhook delivery.
type EventPayload struct {
	Events []Event `json:"events"`
}
