package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// Suggester produces normalized triage suggestions. Implemented by
// triage.Service.
type Suggester interface {
	SuggestFor(ctx context.Context, ticket *domain.Ticket, user *domain.User) domain.TriageSuggestion
	DriverName() string
}

// AcceptInput is the patch applied when a suggestion is accepted. Tags,
// AssigneeID and Status are optional; AssigneeIDSet distinguishes an
// explicit null (clear assignee) from the field being absent.
type AcceptInput struct {
	Priority      domain.TicketPriority
	Tags          []string
	AssigneeID    *string
	AssigneeIDSet bool
	Status        *domain.TicketStatus
	CorrelationID string
}

// RejectInput records why a suggestion was declined.
type RejectInput struct {
	Reason        string
	CorrelationID string
}

// TriageWorkflow coordinates the suggest/accept/reject triage episode for a
// ticket. Accept mutates the ticket and its status history atomically;
// Reject only records an observability event.
type TriageWorkflow struct {
	tickets       repository.TicketRepository
	statusChanges repository.StatusChangeRepository
	txManager     repository.TxManager
	suggester     Suggester
	dispatcher    events.Dispatcher
	logger        *zap.Logger
}

// TriageWorkflowDependencies bundles collaborators for the workflow.
type TriageWorkflowDependencies struct {
	TicketRepo       repository.TicketRepository
	StatusChangeRepo repository.StatusChangeRepository
	TxManager        repository.TxManager
	Suggester        Suggester
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
}

// NewTriageWorkflow constructs the workflow.
func NewTriageWorkflow(deps TriageWorkflowDependencies) *TriageWorkflow {
	return &TriageWorkflow{
		tickets:       deps.TicketRepo,
		statusChanges: deps.StatusChangeRepo,
		txManager:     deps.TxManager,
		suggester:     deps.Suggester,
		dispatcher:    deps.Dispatcher,
		logger:        deps.Logger,
	}
}

// Suggest returns a normalized suggestion for the ticket. The suggester
// itself never fails; an error here means the ticket could not be loaded.
func (w *TriageWorkflow) Suggest(ctx context.Context, ticketID string, user *domain.User, correlationID string) (domain.TriageSuggestion, error) {
	correlationID = orNewCorrelationID(correlationID)

	w.logger.Info("triage.suggest.start",
		zap.String("ticket_id", ticketID),
		zap.String("user_id", user.ID),
		zap.String("correlation_id", correlationID),
		zap.String("driver", w.suggester.DriverName()),
	)

	ticket, err := w.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return domain.TriageSuggestion{}, err
	}

	suggestion := w.suggester.SuggestFor(ctx, ticket, user)

	w.logger.Info("triage.suggest.success",
		zap.String("ticket_id", ticketID),
		zap.String("user_id", user.ID),
		zap.String("correlation_id", correlationID),
		zap.String("driver", suggestion.Driver),
	)
	return suggestion, nil
}

// Accept applies the patch to the ticket inside one transaction: priority
// unconditionally, tags sanitized when present, assignee only for agents and
// admins (silently dropped otherwise), and a status change with exactly one
// history row when the status actually differs from the pre-image.
func (w *TriageWorkflow) Accept(ctx context.Context, ticketID string, user *domain.User, input AcceptInput) (*domain.Ticket, error) {
	correlationID := orNewCorrelationID(input.CorrelationID)

	if !domain.ValidPriority(string(input.Priority)) {
		return nil, apperrors.NewValidationError("priority must be one of: low, medium, high", nil)
	}
	if input.Status != nil && !domain.ValidStatus(string(*input.Status)) {
		return nil, apperrors.NewValidationError("status must be one of: open, in_progress, resolved, closed", nil)
	}

	w.logger.Info("triage.accept.start",
		zap.String("ticket_id", ticketID),
		zap.String("user_id", user.ID),
		zap.String("correlation_id", correlationID),
	)

	var updated *domain.Ticket
	err := w.txManager.RunInTx(ctx, func(ctx context.Context) error {
		ticket, err := w.tickets.GetByID(ctx, ticketID)
		if err != nil {
			return err
		}
		oldStatus := ticket.Status

		ticket.Priority = input.Priority

		if input.Tags != nil {
			ticket.Tags = sanitizeTags(input.Tags)
		}

		// Field-level ACL: the route already restricts Accept to agents and
		// admins, but the assignee field is re-checked here so a future
		// relaxation of the route policy cannot leak assignee writes.
		if input.AssigneeIDSet && user.HasRole(domain.RoleAgent, domain.RoleAdmin) {
			ticket.AssigneeID = input.AssigneeID
		}

		var change *domain.TicketStatusChange
		if input.Status != nil {
			newStatus := *input.Status
			ticket.Status = newStatus
			if newStatus != oldStatus {
				change = &domain.TicketStatusChange{
					TicketID:        ticket.ID,
					OldStatus:       oldStatus,
					NewStatus:       newStatus,
					ChangedByUserID: user.ID,
					ChangedAt:       time.Now().UTC(),
				}
			}
		}

		if err := w.tickets.Update(ctx, ticket); err != nil {
			return err
		}
		if change != nil {
			if err := w.statusChanges.Create(ctx, change); err != nil {
				return err
			}
		}
		updated = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.publishEvent(ctx, events.Event{
		Type:     events.EventTriageAccepted,
		TicketID: updated.ID,
		Actor:    events.Actor{UserID: user.ID, Role: user.Role},
		Payload: events.TriageAcceptedPayload{
			Priority:      updated.Priority,
			Tags:          updated.Tags,
			AssigneeID:    updated.AssigneeID,
			CorrelationID: correlationID,
		},
	})

	w.logger.Info("triage.accept.success",
		zap.String("ticket_id", ticketID),
		zap.String("user_id", user.ID),
		zap.String("correlation_id", correlationID),
	)
	return updated, nil
}

// Reject records the rejection for observability and leaves the ticket and
// its history untouched.
func (w *TriageWorkflow) Reject(ctx context.Context, ticketID string, user *domain.User, input RejectInput) error {
	correlationID := orNewCorrelationID(input.CorrelationID)

	ticket, err := w.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return err
	}

	w.logger.Info("triage.reject",
		zap.String("ticket_id", ticket.ID),
		zap.String("user_id", user.ID),
		zap.String("correlation_id", correlationID),
		zap.String("reason", input.Reason),
	)

	w.publishEvent(ctx, events.Event{
		Type:     events.EventTriageRejected,
		TicketID: ticket.ID,
		Actor:    events.Actor{UserID: user.ID, Role: user.Role},
		Payload: events.TriageRejectedPayload{
			CorrelationID: correlationID,
			Reason:        input.Reason,
		},
	})
	return nil
}

func (w *TriageWorkflow) publishEvent(ctx context.Context, event events.Event) {
	if w.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = w.dispatcher.Publish(ctx, event)
}

func orNewCorrelationID(correlationID string) string {
	if correlationID == "" {
		return uuid.NewString()
	}
	return correlationID
}

func sanitizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, exists := seen[tag]; exists {
			continue
		}
		seen[tag] = struct{}{}
		result = append(result, tag)
	}
	return result
}
