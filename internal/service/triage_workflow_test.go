package service

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

type fakeTicketRepo struct {
	tickets map[string]*domain.Ticket
	updates int
}

func newFakeTicketRepo(tickets ...*domain.Ticket) *fakeTicketRepo {
	repo := &fakeTicketRepo{tickets: map[string]*domain.Ticket{}}
	for _, ticket := range tickets {
		copied := *ticket
		repo.tickets[ticket.ID] = &copied
	}
	return repo
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	if ticket.ID == "" {
		ticket.ID = "generated-id"
	}
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

func (r *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	r.updates++
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	for _, ticket := range r.tickets {
		if filter.ReporterID != nil && ticket.ReporterID != *filter.ReporterID {
			continue
		}
		result = append(result, *ticket)
	}
	return result, nil
}

func (r *fakeTicketRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.tickets, id)
	return nil
}

type fakeStatusChangeRepo struct {
	changes []domain.TicketStatusChange
}

func (r *fakeStatusChangeRepo) Create(_ context.Context, change *domain.TicketStatusChange) error {
	r.changes = append(r.changes, *change)
	return nil
}

func (r *fakeStatusChangeRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketStatusChange, error) {
	result := []domain.TicketStatusChange{}
	for _, change := range r.changes {
		if change.TicketID == ticketID {
			result = append(result, change)
		}
	}
	return result, nil
}

type passthroughTxManager struct{}

func (passthroughTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recordingDispatcher struct {
	published []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.published = append(d.published, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

type stubSuggester struct {
	suggestion domain.TriageSuggestion
}

func (s stubSuggester) SuggestFor(context.Context, *domain.Ticket, *domain.User) domain.TriageSuggestion {
	return s.suggestion
}

func (s stubSuggester) DriverName() string { return s.suggestion.Driver }

func newWorkflow(tickets *fakeTicketRepo, changes *fakeStatusChangeRepo, dispatcher *recordingDispatcher) *TriageWorkflow {
	return NewTriageWorkflow(TriageWorkflowDependencies{
		TicketRepo:       tickets,
		StatusChangeRepo: changes,
		TxManager:        passthroughTxManager{},
		Suggester:        stubSuggester{suggestion: domain.TriageSuggestion{Priority: domain.TicketPriorityHigh, Tags: []string{"crash"}, Reasoning: "r", Confidence: 0.8, Driver: "mock"}},
		Dispatcher:       dispatcher,
		Logger:           zap.NewNop(),
	})
}

func agentUser() *domain.User    { return &domain.User{ID: "agent-1", Role: domain.RoleAgent} }
func reporterUser() *domain.User { return &domain.User{ID: "rep-1", Role: domain.RoleReporter} }

func openTicket() *domain.Ticket {
	return &domain.Ticket{
		ID:         "t-1",
		Title:      "App crash",
		Status:     domain.TicketStatusOpen,
		Priority:   domain.TicketPriorityLow,
		ReporterID: "rep-1",
	}
}

func TestTriageWorkflow_SuggestReturnsNormalizedSuggestion(t *testing.T) {
	tickets := newFakeTicketRepo(openTicket())
	workflow := newWorkflow(tickets, &fakeStatusChangeRepo{}, &recordingDispatcher{})

	suggestion, err := workflow.Suggest(context.Background(), "t-1", agentUser(), "")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityHigh, suggestion.Priority)
	assert.Equal(t, "mock", suggestion.Driver)
}

func TestTriageWorkflow_SuggestUnknownTicket(t *testing.T) {
	workflow := newWorkflow(newFakeTicketRepo(), &fakeStatusChangeRepo{}, &recordingDispatcher{})

	_, err := workflow.Suggest(context.Background(), "missing", agentUser(), "")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestTriageWorkflow_AcceptAppliesPatch(t *testing.T) {
	tickets := newFakeTicketRepo(openTicket())
	changes := &fakeStatusChangeRepo{}
	dispatcher := &recordingDispatcher{}
	workflow := newWorkflow(tickets, changes, dispatcher)

	assignee := "agent-1"
	status := domain.TicketStatusInProgress
	updated, err := workflow.Accept(context.Background(), "t-1", agentUser(), AcceptInput{
		Priority:      domain.TicketPriorityHigh,
		Tags:          []string{" Crash ", "crash", "Billing"},
		AssigneeID:    &assignee,
		AssigneeIDSet: true,
		Status:        &status,
		CorrelationID: "corr-1",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TicketPriorityHigh, updated.Priority)
	assert.Equal(t, []string{"crash", "billing"}, updated.Tags)
	require.NotNil(t, updated.AssigneeID)
	assert.Equal(t, "agent-1", *updated.AssigneeID)
	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)

	// Exactly one history row for the open -> in_progress transition.
	require.Len(t, changes.changes, 1)
	change := changes.changes[0]
	assert.Equal(t, domain.TicketStatusOpen, change.OldStatus)
	assert.Equal(t, domain.TicketStatusInProgress, change.NewStatus)
	assert.Equal(t, "agent-1", change.ChangedByUserID)

	require.Len(t, dispatcher.published, 1)
	assert.Equal(t, events.EventTriageAccepted, dispatcher.published[0].Type)
}

func TestTriageWorkflow_AcceptSameStatusWritesNoHistory(t *testing.T) {
	tickets := newFakeTicketRepo(openTicket())
	changes := &fakeStatusChangeRepo{}
	workflow := newWorkflow(tickets, changes, &recordingDispatcher{})

	status := domain.TicketStatusOpen
	_, err := workflow.Accept(context.Background(), "t-1", agentUser(), AcceptInput{
		Priority: domain.TicketPriorityMedium,
		Status:   &status,
	})
	require.NoError(t, err)
	assert.Empty(t, changes.changes)
}

func TestTriageWorkflow_AcceptWithoutStatusWritesNoHistory(t *testing.T) {
	tickets := newFakeTicketRepo(openTicket())
	changes := &fakeStatusChangeRepo{}
	workflow := newWorkflow(tickets, changes, &recordingDispatcher{})

	_, err := workflow.Accept(context.Background(), "t-1", agentUser(), AcceptInput{
		Priority: domain.TicketPriorityMedium,
	})
	require.NoError(t, err)
	assert.Empty(t, changes.changes)
}

func TestTriageWorkflow_AcceptDropsAssigneeForReporter(t *testing.T) {
	tickets := newFakeTicketRepo(openTicket())
	workflow := newWorkflow(tickets, &fakeStatusChangeRepo{}, &recordingDispatcher{})

	assignee := "somebody"
	updated, err := workflow.Accept(context.Background(), "t-1", reporterUser(), AcceptInput{
		Priority:      domain.TicketPriorityHigh,
		AssigneeID:    &assignee,
		AssigneeIDSet: true,
	})
	require.NoError(t, err)

	// Priority applies, the assignee write is silently dropped.
	assert.Equal(t, domain.TicketPriorityHigh, updated.Priority)
	assert.Nil(t, updated.AssigneeID)
}

func TestTriageWorkflow_AcceptExplicitNullClearsAssignee(t *testing.T) {
	ticket := openTicket()
	existing := "agent-2"
	ticket.AssigneeID = &existing
	tickets := newFakeTicketRepo(ticket)
	workflow := newWorkflow(tickets, &fakeStatusChangeRepo{}, &recordingDispatcher{})

	updated, err := workflow.Accept(context.Background(), "t-1", agentUser(), AcceptInput{
		Priority:      domain.TicketPriorityLow,
		AssigneeID:    nil,
		AssigneeIDSet: true,
	})
	require.NoError(t, err)
	assert.Nil(t, updated.AssigneeID)
}

func TestTriageWorkflow_AcceptAbsentAssigneeLeavesExisting(t *testing.T) {
	ticket := openTicket()
	existing := "agent-2"
	ticket.AssigneeID = &existing
	tickets := newFakeTicketRepo(ticket)
	workflow := newWorkflow(tickets, &fakeStatusChangeRepo{}, &recordingDispatcher{})

	updated, err := workflow.Accept(context.Background(), "t-1", agentUser(), AcceptInput{
		Priority: domain.TicketPriorityLow,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.AssigneeID)
	assert.Equal(t, "agent-2", *updated.AssigneeID)
}

func TestTriageWorkflow_AcceptRejectsInvalidPriority(t *testing.T) {
	tickets := newFakeTicketRepo(openTicket())
	workflow := newWorkflow(tickets, &fakeStatusChangeRepo{}, &recordingDispatcher{})

	_, err := workflow.Accept(context.Background(), "t-1", agentUser(), AcceptInput{
		Priority: domain.TicketPriority("critical"),
	})
	assert.Error(t, err)

	stored, getErr := tickets.GetByID(context.Background(), "t-1")
	require.NoError(t, getErr)
	assert.Equal(t, domain.TicketPriorityLow, stored.Priority)
}

func TestTriageWorkflow_RejectLeavesTicketUntouched(t *testing.T) {
	tickets := newFakeTicketRepo(openTicket())
	changes := &fakeStatusChangeRepo{}
	dispatcher := &recordingDispatcher{}
	workflow := newWorkflow(tickets, changes, dispatcher)

	err := workflow.Reject(context.Background(), "t-1", agentUser(), RejectInput{Reason: "wrong tags"})
	require.NoError(t, err)

	assert.Zero(t, tickets.updates)
	assert.Empty(t, changes.changes)

	require.Len(t, dispatcher.published, 1)
	assert.Equal(t, events.EventTriageRejected, dispatcher.published[0].Type)
	payload, ok := dispatcher.published[0].Payload.(events.TriageRejectedPayload)
	require.True(t, ok)
	assert.Equal(t, "wrong tags", payload.Reason)
	assert.NotEmpty(t, payload.CorrelationID)
}

func TestTriageWorkflow_RejectUnknownTicket(t *testing.T) {
	workflow := newWorkflow(newFakeTicketRepo(), &fakeStatusChangeRepo{}, &recordingDispatcher{})

	err := workflow.Reject(context.Background(), "missing", agentUser(), RejectInput{})
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}
