package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// ValidStatus reports whether the value is a known ticket status.
func ValidStatus(value string) bool {
	switch TicketStatus(value) {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// ValidPriority reports whether the value is a known ticket priority.
func ValidPriority(value string) bool {
	switch TicketPriority(value) {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID          string
	ExternalKey string
	Title       string
	Description string
	Status      TicketStatus
	Priority    TicketPriority
	Tags        []string
	AssigneeID  *string
	ReporterID  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
