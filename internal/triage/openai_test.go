package triage

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

type stubCompleter struct {
	content string
	err     error
	calls   int
}

func (s *stubCompleter) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.calls++
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: s.content}},
		},
	}, nil
}

func TestOpenAIDriver_SuccessfulCompletion(t *testing.T) {
	stub := &stubCompleter{content: `{
		"priority": "high",
		"tags": ["crash", "database"],
		"assignee_hint": "agent",
		"reasoning": "Multiple users affected by data loss.",
		"confidence": 0.9
	}`}
	driver := NewOpenAIDriver(stub, "gpt-4o-mini", time.Second, zap.NewNop())

	raw := driver.Suggest(context.Background(), &domain.Ticket{ID: "t-1", Title: "DB down"}, nil)

	assert.Equal(t, "high", raw["priority"])
	assert.Equal(t, []string{"crash", "database"}, raw["tags"])
	assert.Equal(t, "agent", raw["assignee_hint"])
	assert.Equal(t, "Multiple users affected by data loss.", raw["reasoning"])
	assert.Equal(t, 0.9, raw["confidence"])
	assert.Equal(t, "openai", raw["driver"])
	assert.Equal(t, 1, stub.calls)
}

func TestOpenAIDriver_MissingFieldsGetDefaults(t *testing.T) {
	stub := &stubCompleter{content: `{"priority": "low", "tags": ["general"]}`}
	driver := NewOpenAIDriver(stub, "gpt-4o-mini", time.Second, zap.NewNop())

	raw := driver.Suggest(context.Background(), &domain.Ticket{ID: "t-2"}, nil)

	assert.Nil(t, raw["assignee_hint"])
	assert.Equal(t, "LLM response missing reasoning.", raw["reasoning"])
	assert.Equal(t, 0.65, raw["confidence"])
}

func TestOpenAIDriver_TransportErrorFallsBackToHeuristics(t *testing.T) {
	stub := &stubCompleter{err: errors.New("connection refused")}
	driver := NewOpenAIDriver(stub, "gpt-4o-mini", time.Second, zap.NewNop())
	ticket := &domain.Ticket{ID: "t-3", Title: "Billing page crash", Description: "urgent"}

	raw := driver.Suggest(context.Background(), ticket, nil)

	// Heuristic result carries the fallback marker in its reasoning.
	reasoning, ok := raw["reasoning"].(string)
	require.True(t, ok)
	assert.Contains(t, reasoning, "(Fallback after LLM error: connection refused)")
	assert.Equal(t, "high", raw["priority"])
	assert.Equal(t, "mock", raw["driver"])
}

func TestOpenAIDriver_MalformedJSONFallsBack(t *testing.T) {
	stub := &stubCompleter{content: `{"priority": "high"`}
	driver := NewOpenAIDriver(stub, "gpt-4o-mini", time.Second, zap.NewNop())
	ticket := &domain.Ticket{ID: "t-4", Title: "Nothing special"}

	raw := driver.Suggest(context.Background(), ticket, nil)

	reasoning := raw["reasoning"].(string)
	assert.Contains(t, reasoning, "Fallback after LLM error")
	assert.Equal(t, "mock", raw["driver"])
	assert.Equal(t, []string{"general"}, raw["tags"])
}

func TestOpenAIDriver_FallbackOutputNormalizesCleanly(t *testing.T) {
	stub := &stubCompleter{err: errors.New("boom")}
	driver := NewOpenAIDriver(stub, "gpt-4o-mini", time.Second, zap.NewNop())

	raw := driver.Suggest(context.Background(), &domain.Ticket{ID: "t-5", Title: "slow report"}, nil)
	suggestion := Normalize(raw)

	assert.True(t, domain.ValidPriority(string(suggestion.Priority)))
	assert.NotEmpty(t, suggestion.Tags)
	assert.GreaterOrEqual(t, suggestion.Confidence, 0.0)
	assert.LessOrEqual(t, suggestion.Confidence, 1.0)
	assert.Contains(t, suggestion.Reasoning, "Fallback after LLM error: boom")
}
