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

// TicketService coordinates ticket CRUD workflows.
type TicketService struct {
	tickets       repository.TicketRepository
	statusChanges repository.StatusChangeRepository
	txManager     repository.TxManager
	dispatcher    events.Dispatcher
	logger        *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo       repository.TicketRepository
	StatusChangeRepo repository.StatusChangeRepository
	TxManager        repository.TxManager
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
	Tags        []string
}

// TicketUpdateInput describes a partial ticket update.
type TicketUpdateInput struct {
	Title         *string
	Description   *string
	Priority      *domain.TicketPriority
	Status        *domain.TicketStatus
	Tags          []string
	AssigneeID    *string
	AssigneeIDSet bool
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	AssigneeID *string
	Tag        *string
	Limit      int
	Offset     int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:       deps.TicketRepo,
		statusChanges: deps.StatusChangeRepo,
		txManager:     deps.TxManager,
		dispatcher:    deps.Dispatcher,
		logger:        deps.Logger,
	}
}

// CreateTicket creates a ticket reported by the given user.
func (s *TicketService) CreateTicket(ctx context.Context, user *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	ticket := &domain.Ticket{
		ExternalKey: generateTicketKey(),
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusOpen,
		Priority:    input.Priority,
		Tags:        sanitizeTags(input.Tags),
		ReporterID:  user.ID,
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.Actor{UserID: user.ID, Role: user.Role},
		Payload: events.TicketCreatedPayload{
			Priority: ticket.Priority,
			Title:    ticket.Title,
		},
	})
	return ticket, nil
}

// ListTickets returns tickets visible to the user: agents and admins see
// the full set, reporters only their own.
func (s *TicketService) ListTickets(ctx context.Context, user *domain.User, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		AssigneeID: filter.AssigneeID,
		Tag:        filter.Tag,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	if !user.HasRole(domain.RoleAdmin, domain.RoleAgent) {
		reporterID := user.ID
		repoFilter.ReporterID = &reporterID
	}
	return s.tickets.ListWithFilter(ctx, repoFilter)
}

// GetTicket fetches a ticket, enforcing visibility for reporters.
func (s *TicketService) GetTicket(ctx context.Context, user *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !s.canView(user, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

// StatusHistory returns the chronological status changes for a ticket.
func (s *TicketService) StatusHistory(ctx context.Context, user *domain.User, ticketID string) ([]domain.TicketStatusChange, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !s.canView(user, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return s.statusChanges.ListByTicket(ctx, ticket.ID)
}

// UpdateTicket applies a partial update, recording a status-change history
// row in the same transaction when the status transitions.
func (s *TicketService) UpdateTicket(ctx context.Context, user *domain.User, ticketID string, input TicketUpdateInput) (*domain.Ticket, error) {
	if input.Priority != nil && !domain.ValidPriority(string(*input.Priority)) {
		return nil, apperrors.NewValidationError("priority must be one of: low, medium, high", nil)
	}
	if input.Status != nil && !domain.ValidStatus(string(*input.Status)) {
		return nil, apperrors.NewValidationError("status must be one of: open, in_progress, resolved, closed", nil)
	}

	var updated *domain.Ticket
	err := s.txManager.RunInTx(ctx, func(ctx context.Context) error {
		ticket, err := s.tickets.GetByID(ctx, ticketID)
		if err != nil {
			return err
		}
		oldStatus := ticket.Status

		if input.Title != nil {
			ticket.Title = strings.TrimSpace(*input.Title)
		}
		if input.Description != nil {
			ticket.Description = strings.TrimSpace(*input.Description)
		}
		if input.Priority != nil {
			ticket.Priority = *input.Priority
		}
		if input.Tags != nil {
			ticket.Tags = sanitizeTags(input.Tags)
		}
		if input.AssigneeIDSet {
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

		if err := s.tickets.Update(ctx, ticket); err != nil {
			return err
		}
		if change != nil {
			if err := s.statusChanges.Create(ctx, change); err != nil {
				return err
			}
			s.publishEvent(ctx, events.Event{
				Type:     events.EventTicketStatusChanged,
				TicketID: ticket.ID,
				Actor:    events.Actor{UserID: user.ID, Role: user.Role},
				Payload: events.TicketStatusChangedPayload{
					OldStatus: change.OldStatus,
					NewStatus: change.NewStatus,
				},
			})
		}
		updated = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteTicket removes a ticket. Route policy restricts this to admins.
func (s *TicketService) DeleteTicket(ctx context.Context, ticketID string) error {
	return s.tickets.Delete(ctx, ticketID)
}

func (s *TicketService) canView(user *domain.User, ticket *domain.Ticket) bool {
	if user.HasRole(domain.RoleAdmin, domain.RoleAgent) {
		return true
	}
	return ticket.ReporterID == user.ID
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
