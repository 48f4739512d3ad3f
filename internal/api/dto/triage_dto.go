package dto

import (
	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// SuggestTriageRequest payload. The correlation id is optional; one is
// generated when absent.
type SuggestTriageRequest struct {
	CorrelationID string `json:"correlation_id" validate:"omitempty,max=64"`
}

// AcceptTriageRequest applies a suggestion to the ticket. AssigneeID uses a
// pointer so an explicit null clears the assignee; whether the key was
// present at all is detected from the raw body by the handler.
type AcceptTriageRequest struct {
	Priority      domain.TicketPriority `json:"priority" validate:"required,oneof=low medium high"`
	Tags          []string              `json:"tags" validate:"omitempty,dive,min=1,max=30"`
	AssigneeID    *string               `json:"assignee_id"`
	Status        *domain.TicketStatus  `json:"status" validate:"omitempty,oneof=open in_progress resolved closed"`
	CorrelationID string                `json:"correlation_id" validate:"omitempty,max=64"`
}

// RejectTriageRequest payload.
type RejectTriageRequest struct {
	Reason        string `json:"reason" validate:"omitempty,max=1000"`
	CorrelationID string `json:"correlation_id" validate:"omitempty,max=64"`
}
