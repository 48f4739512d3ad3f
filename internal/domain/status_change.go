package domain

import "time"

// TicketStatusChange is an append-only audit entry recorded whenever a
// ticket's status transitions.
type TicketStatusChange struct {
	ID              string
	TicketID        string
	OldStatus       TicketStatus
	NewStatus       TicketStatus
	ChangedByUserID string
	ChangedAt       time.Time
}
