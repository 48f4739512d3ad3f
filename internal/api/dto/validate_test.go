package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

func TestValidate_AcceptTriageRequest(t *testing.T) {
	valid := AcceptTriageRequest{Priority: domain.TicketPriorityHigh, Tags: []string{"crash"}}
	assert.NoError(t, Validate(valid))

	missingPriority := AcceptTriageRequest{}
	err := Validate(missingPriority)
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)

	badPriority := AcceptTriageRequest{Priority: domain.TicketPriority("critical")}
	assert.Error(t, Validate(badPriority))

	badStatus := domain.TicketStatus("archived")
	assert.Error(t, Validate(AcceptTriageRequest{Priority: domain.TicketPriorityLow, Status: &badStatus}))
}

func TestValidate_RegisterRequest(t *testing.T) {
	assert.NoError(t, Validate(RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "long-enough-pw"}))
	assert.Error(t, Validate(RegisterRequest{Name: "Ada", Email: "not-an-email", Password: "long-enough-pw"}))
	assert.Error(t, Validate(RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "short"}))
}

func TestValidate_SyncExternalUsersRequest(t *testing.T) {
	assert.NoError(t, Validate(SyncExternalUsersRequest{IDs: []int{1, 2, 3}}))
	assert.Error(t, Validate(SyncExternalUsersRequest{}))
	assert.Error(t, Validate(SyncExternalUsersRequest{IDs: []int{0}}))
}
