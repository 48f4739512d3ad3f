package events

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTriageAccepted      EventType = "triage_accepted"
	EventTriageRejected      EventType = "triage_rejected"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Priority domain.TicketPriority `json:"priority"`
	Title    string                `json:"title"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TriageAcceptedPayload payload.
type TriageAcceptedPayload struct {
	Priority      domain.TicketPriority `json:"priority"`
	Tags          []string              `json:"tags,omitempty"`
	AssigneeID    *string               `json:"assignee_id,omitempty"`
	CorrelationID string                `json:"correlation_id"`
}

// TriageRejectedPayload payload.
type TriageRejectedPayload struct {
	CorrelationID string `json:"correlation_id"`
	Reason        string `json:"reason,omitempty"`
}
