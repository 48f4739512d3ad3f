package triage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// triageSchema constrains the model to the suggestion shape.
const triageSchema = `{
  "type": "object",
  "properties": {
    "priority": {"type": "string", "enum": ["low", "medium", "high"]},
    "tags": {"type": "array", "items": {"type": "string"}},
    "assignee_hint": {"type": ["string", "null"], "enum": ["agent", "admin", "unassigned", "reporter", null]},
    "reasoning": {"type": "string"},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1}
  },
  "required": ["priority", "tags", "reasoning", "confidence"],
  "additionalProperties": false
}`

// ChatCompleter abstracts the chat completion API. *openai.Client satisfies
// it; tests substitute a stub.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIDriver asks a structured-output-capable model for a suggestion. Any
// failure (transport error, timeout, empty choices, malformed JSON) falls
// back to the heuristic driver with the error appended to the reasoning, so
// Suggest never surfaces the failure.
type OpenAIDriver struct {
	client   ChatCompleter
	model    string
	timeout  time.Duration
	fallback *HeuristicDriver
	logger   *zap.Logger
}

// NewOpenAIDriver builds the driver.
func NewOpenAIDriver(client ChatCompleter, model string, timeout time.Duration, logger *zap.Logger) *OpenAIDriver {
	return &OpenAIDriver{
		client:   client,
		model:    model,
		timeout:  timeout,
		fallback: NewHeuristicDriver(),
		logger:   logger,
	}
}

// Name identifies the driver in suggestion payloads and logs.
func (d *OpenAIDriver) Name() string { return "openai" }

// Suggest queries the model, falling back to heuristics on any failure.
func (d *OpenAIDriver) Suggest(ctx context.Context, ticket *domain.Ticket, user *domain.User) map[string]any {
	raw, err := d.complete(ctx, ticket, user)
	if err == nil {
		return raw
	}

	d.logger.Warn("triage.llm.fallback",
		zap.String("ticket_id", ticket.ID),
		zap.Error(err),
	)
	suggestion := d.fallback.Suggest(ctx, ticket, user)
	if reasoning, ok := suggestion["reasoning"].(string); ok {
		suggestion["reasoning"] = reasoning + " (Fallback after LLM error: " + err.Error() + ")"
	}
	return suggestion
}

func (d *OpenAIDriver) complete(ctx context.Context, ticket *domain.Ticket, user *domain.User) (map[string]any, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a helpdesk triage assistant. Analyze the ticket and propose priority, tags, assignee hint, reasoning and confidence. Return ONLY structured JSON per the provided schema."},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(ticket, user)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "triage_suggestion",
				Schema: json.RawMessage(triageSchema),
				Strict: true,
			},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("model returned no choices")
	}

	var parsed struct {
		Priority     string   `json:"priority"`
		Tags         []string `json:"tags"`
		AssigneeHint *string  `json:"assignee_hint"`
		Reasoning    string   `json:"reasoning"`
		Confidence   *float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return nil, fmt.Errorf("malformed model response: %w", err)
	}

	raw := map[string]any{
		"priority": parsed.Priority,
		"tags":     parsed.Tags,
		"driver":   d.Name(),
	}
	if parsed.AssigneeHint != nil {
		raw["assignee_hint"] = *parsed.AssigneeHint
	} else {
		raw["assignee_hint"] = nil
	}
	if parsed.Reasoning != "" {
		raw["reasoning"] = parsed.Reasoning
	} else {
		raw["reasoning"] = "LLM response missing reasoning."
	}
	if parsed.Confidence != nil {
		raw["confidence"] = *parsed.Confidence
	} else {
		raw["confidence"] = 0.65
	}
	return raw, nil
}

func buildPrompt(ticket *domain.Ticket, user *domain.User) string {
	assignee := "none"
	if ticket.AssigneeID != nil {
		assignee = *ticket.AssigneeID
	}
	requester := ""
	if user != nil {
		requester = user.ID
	}

	return fmt.Sprintf(`Ticket ID: %s
Title: %s
Description: %s
Current Priority: %s
Current Status: %s
Reporter ID: %s
Assignee ID: %s
Requested by: %s

Guidelines:
- High priority if affecting many users, data loss, crash, security or payment failure.
- Tags should be concise lowercase words (1-2 words each).
- assignee_hint may be 'agent', 'admin', 'unassigned', or 'reporter'. Use 'agent' for complex or high priority items.
- Confidence 0..1; be conservative without strong indicators.`,
		ticket.ID,
		ticket.Title,
		ticket.Description,
		ticket.Priority,
		ticket.Status,
		ticket.ReporterID,
		assignee,
		requester,
	)
}
