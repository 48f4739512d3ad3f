package triage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

func TestHeuristicDriver_HighPriorityKeywords(t *testing.T) {
	driver := NewHeuristicDriver()
	ticket := &domain.Ticket{
		ID:          "t-1",
		Title:       "App crash on payment",
		Description: "User reports crash and urgent error during billing payment flow",
	}

	raw := driver.Suggest(context.Background(), ticket, nil)

	assert.Equal(t, "high", raw["priority"])
	assert.Equal(t, "agent", raw["assignee_hint"])
	assert.Equal(t, "mock", raw["driver"])

	tags, ok := raw["tags"].([]string)
	require.True(t, ok)
	assert.Contains(t, tags, "crash")
	assert.Contains(t, tags, "error")
	assert.Contains(t, tags, "urgent")
	assert.Contains(t, tags, "billing")

	confidence, ok := raw["confidence"].(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, confidence, 0.55)
	assert.LessOrEqual(t, confidence, 1.0)
}

func TestHeuristicDriver_MediumKeywordDoesNotDowngradeHigh(t *testing.T) {
	driver := NewHeuristicDriver()
	ticket := &domain.Ticket{
		Title:       "Crash when dashboard is slow",
		Description: "",
	}

	raw := driver.Suggest(context.Background(), ticket, nil)

	assert.Equal(t, "high", raw["priority"])
	tags := raw["tags"].([]string)
	assert.Contains(t, tags, "crash")
	assert.Contains(t, tags, "performance")
}

func TestHeuristicDriver_NoKeywordsDefaultsToGeneral(t *testing.T) {
	driver := NewHeuristicDriver()
	ticket := &domain.Ticket{
		Title:       "Minor UI issue",
		Description: "",
	}

	raw := driver.Suggest(context.Background(), ticket, nil)

	assert.Equal(t, "low", raw["priority"])
	assert.Equal(t, []string{"general"}, raw["tags"])
	assert.Nil(t, raw["assignee_hint"])
	assert.Equal(t, 0.55, raw["confidence"])
	assert.Contains(t, raw["reasoning"], "No strong keywords found")
}

func TestHeuristicDriver_Deterministic(t *testing.T) {
	driver := NewHeuristicDriver()
	ticket := &domain.Ticket{
		Title:       "Timeout during billing export",
		Description: "The export endpoint is slow and eventually times out",
	}

	first := driver.Suggest(context.Background(), ticket, nil)
	second := driver.Suggest(context.Background(), ticket, nil)

	assert.Equal(t, first, second)
	assert.Equal(t, "medium", first["priority"])
}

func TestHeuristicDriver_ConfidenceIsCapped(t *testing.T) {
	driver := NewHeuristicDriver()
	ticket := &domain.Ticket{
		Title:       "crash error urgent billing payment slow timeout",
		Description: "",
	}

	raw := driver.Suggest(context.Background(), ticket, nil)

	confidence := raw["confidence"].(float64)
	assert.LessOrEqual(t, confidence, 1.0)
}
