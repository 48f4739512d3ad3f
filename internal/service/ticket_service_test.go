package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

func newTicketService(tickets *fakeTicketRepo, changes *fakeStatusChangeRepo, dispatcher *recordingDispatcher) *TicketService {
	return NewTicketService(TicketDependencies{
		TicketRepo:       tickets,
		StatusChangeRepo: changes,
		TxManager:        passthroughTxManager{},
		Dispatcher:       dispatcher,
		Logger:           zap.NewNop(),
	})
}

func TestTicketService_CreateTicketDefaults(t *testing.T) {
	tickets := newFakeTicketRepo()
	dispatcher := &recordingDispatcher{}
	svc := newTicketService(tickets, &fakeStatusChangeRepo{}, dispatcher)

	ticket, err := svc.CreateTicket(context.Background(), reporterUser(), TicketCreateInput{
		Title:       "  Login broken  ",
		Description: "Cannot sign in",
		Tags:        []string{"Auth", "auth", " login "},
	})
	require.NoError(t, err)

	assert.Equal(t, "Login broken", ticket.Title)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	assert.Equal(t, []string{"auth", "login"}, ticket.Tags)
	assert.Equal(t, "rep-1", ticket.ReporterID)
	assert.True(t, strings.HasPrefix(ticket.ExternalKey, "TCK-"))

	require.Len(t, dispatcher.published, 1)
	assert.Equal(t, events.EventTicketCreated, dispatcher.published[0].Type)
}

func TestTicketService_ListTicketsScopesReporters(t *testing.T) {
	mine := openTicket()
	other := openTicket()
	other.ID = "t-2"
	other.ReporterID = "someone-else"
	tickets := newFakeTicketRepo(mine, other)
	svc := newTicketService(tickets, &fakeStatusChangeRepo{}, &recordingDispatcher{})

	visible, err := svc.ListTickets(context.Background(), reporterUser(), TicketListFilter{Limit: 20})
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "t-1", visible[0].ID)

	all, err := svc.ListTickets(context.Background(), agentUser(), TicketListFilter{Limit: 20})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestTicketService_GetTicketForbiddenForOtherReporter(t *testing.T) {
	ticket := openTicket()
	ticket.ReporterID = "someone-else"
	tickets := newFakeTicketRepo(ticket)
	svc := newTicketService(tickets, &fakeStatusChangeRepo{}, &recordingDispatcher{})

	_, err := svc.GetTicket(context.Background(), reporterUser(), "t-1")
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", apperrors.ToDomainError(err).Code)

	got, err := svc.GetTicket(context.Background(), agentUser(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, "t-1", got.ID)
}

func TestTicketService_UpdateTicketRecordsStatusChange(t *testing.T) {
	tickets := newFakeTicketRepo(openTicket())
	changes := &fakeStatusChangeRepo{}
	dispatcher := &recordingDispatcher{}
	svc := newTicketService(tickets, changes, dispatcher)

	status := domain.TicketStatusResolved
	updated, err := svc.UpdateTicket(context.Background(), agentUser(), "t-1", TicketUpdateInput{
		Status: &status,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, updated.Status)

	require.Len(t, changes.changes, 1)
	assert.Equal(t, domain.TicketStatusOpen, changes.changes[0].OldStatus)
	assert.Equal(t, domain.TicketStatusResolved, changes.changes[0].NewStatus)

	require.Len(t, dispatcher.published, 1)
	assert.Equal(t, events.EventTicketStatusChanged, dispatcher.published[0].Type)
}

func TestTicketService_UpdateTicketRejectsInvalidStatus(t *testing.T) {
	tickets := newFakeTicketRepo(openTicket())
	svc := newTicketService(tickets, &fakeStatusChangeRepo{}, &recordingDispatcher{})

	status := domain.TicketStatus("archived")
	_, err := svc.UpdateTicket(context.Background(), agentUser(), "t-1", TicketUpdateInput{
		Status: &status,
	})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}

func TestTicketService_StatusHistoryOrdering(t *testing.T) {
	tickets := newFakeTicketRepo(openTicket())
	changes := &fakeStatusChangeRepo{}
	svc := newTicketService(tickets, changes, &recordingDispatcher{})

	inProgress := domain.TicketStatusInProgress
	resolved := domain.TicketStatusResolved
	_, err := svc.UpdateTicket(context.Background(), agentUser(), "t-1", TicketUpdateInput{Status: &inProgress})
	require.NoError(t, err)
	_, err = svc.UpdateTicket(context.Background(), agentUser(), "t-1", TicketUpdateInput{Status: &resolved})
	require.NoError(t, err)

	history, err := svc.StatusHistory(context.Background(), agentUser(), "t-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.TicketStatusInProgress, history[0].NewStatus)
	assert.Equal(t, domain.TicketStatusResolved, history[1].NewStatus)
}
