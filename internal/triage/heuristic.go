package triage

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// keywordRule maps a substring match to a priority vote, a tag and a
// confidence boost. Rules are evaluated in order.
type keywordRule struct {
	keyword  string
	priority domain.TicketPriority
	tag      string
	boost    float64
}

var keywordRules = []keywordRule{
	{keyword: "crash", priority: domain.TicketPriorityHigh, tag: "crash", boost: 0.25},
	{keyword: "error", priority: domain.TicketPriorityHigh, tag: "error", boost: 0.15},
	{keyword: "urgent", priority: domain.TicketPriorityHigh, tag: "urgent", boost: 0.2},
	{keyword: "billing", priority: domain.TicketPriorityMedium, tag: "billing", boost: 0.15},
	{keyword: "payment", priority: domain.TicketPriorityMedium, tag: "billing", boost: 0.15},
	{keyword: "slow", priority: domain.TicketPriorityMedium, tag: "performance", boost: 0.1},
	{keyword: "timeout", priority: domain.TicketPriorityMedium, tag: "performance", boost: 0.1},
}

// HeuristicDriver derives suggestions from keyword matching on the ticket
// text. It is deterministic, offline and never fails, which also makes it
// the fallback for remote drivers.
type HeuristicDriver struct{}

// NewHeuristicDriver builds the driver.
func NewHeuristicDriver() *HeuristicDriver {
	return &HeuristicDriver{}
}

// Name identifies the driver in suggestion payloads and logs.
func (d *HeuristicDriver) Name() string { return "mock" }

// Suggest scans the lower-cased title and description for known keywords,
// upgrading priority and accumulating tags, confidence and reasoning.
func (d *HeuristicDriver) Suggest(_ context.Context, ticket *domain.Ticket, _ *domain.User) map[string]any {
	text := strings.ToLower(ticket.Title + " " + ticket.Description)

	priority := domain.TicketPriorityLow
	confidence := 0.55
	tags := []string{}
	reasonParts := []string{}

	for _, rule := range keywordRules {
		if !strings.Contains(text, rule.keyword) {
			continue
		}
		if rule.priority == domain.TicketPriorityHigh {
			priority = domain.TicketPriorityHigh
		} else if priority != domain.TicketPriorityHigh {
			priority = rule.priority
		}
		tags = append(tags, rule.tag)
		confidence = math.Min(1.0, confidence+rule.boost)
		reasonParts = append(reasonParts, fmt.Sprintf("Keyword '%s' suggests %s priority.", rule.keyword, rule.priority))
	}

	tags = dedupeTags(tags)
	if len(tags) == 0 {
		tags = append(tags, "general")
		reasonParts = append(reasonParts, "No strong keywords found; defaulting to general low-impact.")
	}

	var assigneeHint any
	if priority == domain.TicketPriorityHigh {
		assigneeHint = domain.AssigneeHintAgent
	}

	return map[string]any{
		"priority":      string(priority),
		"tags":          tags,
		"assignee_hint": assigneeHint,
		"reasoning":     strings.Join(reasonParts, " "),
		"confidence":    math.Round(confidence*100) / 100,
		"driver":        d.Name(),
	}
}

func dedupeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		if _, exists := seen[tag]; exists {
			continue
		}
		seen[tag] = struct{}{}
		result = append(result, tag)
	}
	return result
}
