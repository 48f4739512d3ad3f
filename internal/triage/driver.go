package triage

import (
	"context"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// Driver produces a raw triage suggestion for a ticket. Implementations may
// emit arbitrary keys and value types; the Service is the single place that
// normalizes output. Drivers never fail: remote variants absorb their own
// errors by falling back to the heuristic driver.
type Driver interface {
	Name() string
	Suggest(ctx context.Context, ticket *domain.Ticket, user *domain.User) map[string]any
}
