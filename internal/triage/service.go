package triage

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// Service wraps a Driver and guarantees a well-formed suggestion regardless
// of what the driver emitted. It is the single enforcement point for the
// suggestion invariants: priority in {low,medium,high}, non-empty lowercase
// tags, confidence in [0,1].
type Service struct {
	driver Driver
	logger *zap.Logger
}

// NewService builds the orchestrator around the given driver.
func NewService(driver Driver, logger *zap.Logger) *Service {
	return &Service{driver: driver, logger: logger}
}

// DriverName reports the configured driver.
func (s *Service) DriverName() string {
	return s.driver.Name()
}

// SuggestFor invokes the driver and normalizes its raw output. It never
// fails: driver failures are absorbed by driver-level fallback, and this
// layer additionally guards against wrong-typed values.
func (s *Service) SuggestFor(ctx context.Context, ticket *domain.Ticket, user *domain.User) domain.TriageSuggestion {
	raw := s.driver.Suggest(ctx, ticket, user)
	suggestion := Normalize(raw)

	s.logger.Debug("triage.suggest.normalized",
		zap.String("ticket_id", ticket.ID),
		zap.String("driver", suggestion.Driver),
		zap.Float64("confidence", suggestion.Confidence),
	)
	return suggestion
}

// Normalize merges a raw driver map over the documented defaults and
// sanitizes every field. Driver values win over defaults when present and
// valid. Applying Normalize to an already-normalized map is a fixed point.
func Normalize(raw map[string]any) domain.TriageSuggestion {
	suggestion := domain.TriageSuggestion{
		Priority:     domain.TicketPriorityMedium,
		Tags:         []string{"general"},
		AssigneeHint: nil,
		Reasoning:    "No reasoning provided.",
		Confidence:   0.5,
		Driver:       "unknown",
	}

	if value, ok := raw["priority"].(string); ok && domain.ValidPriority(value) {
		suggestion.Priority = domain.TicketPriority(value)
	}

	if tags, ok := normalizeTags(raw["tags"]); ok {
		suggestion.Tags = tags
	}

	if hint, ok := raw["assignee_hint"].(string); ok && hint != "" {
		suggestion.AssigneeHint = &hint
	}

	if reasoning, ok := raw["reasoning"].(string); ok {
		suggestion.Reasoning = reasoning
	}

	if confidence, ok := toFloat(raw["confidence"]); ok {
		suggestion.Confidence = clamp(confidence, 0.0, 1.0)
	}

	if driver, ok := raw["driver"].(string); ok && driver != "" {
		suggestion.Driver = driver
	}

	return suggestion
}

// normalizeTags lower-cases entries, drops non-strings and empties, and
// deduplicates preserving first-seen order. It reports false when the value
// is not a usable tag list, leaving the caller on the default.
func normalizeTags(value any) ([]string, bool) {
	var entries []any
	switch typed := value.(type) {
	case []string:
		entries = make([]any, len(typed))
		for i, tag := range typed {
			entries[i] = tag
		}
	case []any:
		entries = typed
	default:
		return nil, false
	}

	seen := make(map[string]struct{}, len(entries))
	result := make([]string, 0, len(entries))
	for _, entry := range entries {
		tag, ok := entry.(string)
		if !ok {
			continue
		}
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
	if len(result) == 0 {
		return nil, false
	}
	return result, true
}

func toFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	}
	return 0, false
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
