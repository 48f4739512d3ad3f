package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title" validate:"required,min=1,max=200"`
	Description string                `json:"description" validate:"required,min=1"`
	Priority    domain.TicketPriority `json:"priority" validate:"omitempty,oneof=low medium high"`
	Tags        []string              `json:"tags" validate:"omitempty,dive,min=1,max=30"`
}

// UpdateTicketRequest is a partial update; nil fields are left untouched.
type UpdateTicketRequest struct {
	Title       *string                `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string                `json:"description" validate:"omitempty,min=1"`
	Priority    *domain.TicketPriority `json:"priority" validate:"omitempty,oneof=low medium high"`
	Status      *domain.TicketStatus   `json:"status" validate:"omitempty,oneof=open in_progress resolved closed"`
	Tags        []string               `json:"tags" validate:"omitempty,dive,min=1,max=30"`
	AssigneeID  *string                `json:"assignee_id"`
}

// TicketResponse is the full ticket representation.
type TicketResponse struct {
	ID          string                `json:"id"`
	ExternalKey string                `json:"external_key"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Status      domain.TicketStatus   `json:"status"`
	Priority    domain.TicketPriority `json:"priority"`
	Tags        []string              `json:"tags"`
	AssigneeID  *string               `json:"assignee_id"`
	ReporterID  string                `json:"reporter_id"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// StatusChangeResponse is one status-history row.
type StatusChangeResponse struct {
	ID              string              `json:"id"`
	OldStatus       domain.TicketStatus `json:"old_status"`
	NewStatus       domain.TicketStatus `json:"new_status"`
	ChangedByUserID string              `json:"changed_by_user_id"`
	ChangedAt       time.Time           `json:"changed_at"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(ticket *domain.Ticket) TicketResponse {
	tags := ticket.Tags
	if tags == nil {
		tags = []string{}
	}
	return TicketResponse{
		ID:          ticket.ID,
		ExternalKey: ticket.ExternalKey,
		Title:       ticket.Title,
		Description: ticket.Description,
		Status:      ticket.Status,
		Priority:    ticket.Priority,
		Tags:        tags,
		AssigneeID:  ticket.AssigneeID,
		ReporterID:  ticket.ReporterID,
		CreatedAt:   ticket.CreatedAt,
		UpdatedAt:   ticket.UpdatedAt,
	}
}

// NewStatusChangeResponses maps history rows.
func NewStatusChangeResponses(changes []domain.TicketStatusChange) []StatusChangeResponse {
	resp := make([]StatusChangeResponse, 0, len(changes))
	for _, change := range changes {
		resp = append(resp, StatusChangeResponse{
			ID:              change.ID,
			OldStatus:       change.OldStatus,
			NewStatus:       change.NewStatus,
			ChangedByUserID: change.ChangedByUserID,
			ChangedAt:       change.ChangedAt,
		})
	}
	return resp
}
