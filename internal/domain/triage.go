package domain

// Assignee hints a triage driver may propose.
const (
	AssigneeHintAgent      = "agent"
	AssigneeHintAdmin      = "admin"
	AssigneeHintUnassigned = "unassigned"
	AssigneeHintReporter   = "reporter"
)

// TriageSuggestion is the normalized output of the triage engine. It is
// transient: produced per request, never persisted. Every instance returned
// by the triage service satisfies the documented defaults and bounds.
type TriageSuggestion struct {
	Priority     TicketPriority `json:"priority"`
	Tags         []string       `json:"tags"`
	AssigneeHint *string        `json:"assignee_hint"`
	Reasoning    string         `json:"reasoning"`
	Confidence   float64        `json:"confidence"`
	Driver       string         `json:"driver"`
}
