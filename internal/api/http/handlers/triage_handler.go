package handlers

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// TriageHandler exposes the suggest/accept/reject triage endpoints.
type TriageHandler struct {
	workflow *service.TriageWorkflow
	logger   *zap.Logger
}

// NewTriageHandler constructs handler.
func NewTriageHandler(workflow *service.TriageWorkflow, logger *zap.Logger) *TriageHandler {
	return &TriageHandler{workflow: workflow, logger: logger}
}

// Suggest POST /tickets/:id/triage-suggest.
//
// The suggestion engine itself does not fail, so under the current drivers
// the only error here is a missing ticket. The timeout/unavailable split is
// kept at this boundary for drivers that may surface transport errors.
func (h *TriageHandler) Suggest(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.SuggestTriageRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
		if err := dto.Validate(req); err != nil {
			return err
		}
	}
	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	suggestion, err := h.workflow.Suggest(c.Context(), c.Params("id"), principal.User, correlationID)
	if err != nil {
		return h.classifySuggestError(c, err, correlationID)
	}

	return c.JSON(fiber.Map{
		"data":           suggestion,
		"correlation_id": correlationID,
	})
}

// Accept POST /tickets/:id/triage-accept.
func (h *TriageHandler) Accept(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.AcceptTriageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	input := service.AcceptInput{
		Priority:      req.Priority,
		Tags:          req.Tags,
		AssigneeID:    req.AssigneeID,
		AssigneeIDSet: bodyHasKey(c.Body(), "assignee_id"),
		Status:        req.Status,
		CorrelationID: req.CorrelationID,
	}

	ticket, err := h.workflow.Accept(c.Context(), c.Params("id"), principal.User, input)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Reject POST /tickets/:id/triage-reject.
func (h *TriageHandler) Reject(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.RejectTriageRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
		if err := dto.Validate(req); err != nil {
			return err
		}
	}

	err := h.workflow.Reject(c.Context(), c.Params("id"), principal.User, service.RejectInput{
		Reason:        req.Reason,
		CorrelationID: req.CorrelationID,
	})
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// classifySuggestError maps suggestion failures onto the wire contract:
// timeout-flavored errors become 504 triage_timeout, anything else that is
// not already a domain error becomes 503 triage_unavailable.
func (h *TriageHandler) classifySuggestError(c *fiber.Ctx, err error, correlationID string) error {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) || errors.Is(err, pgx.ErrNoRows) {
		return apperrors.MapError(err)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		h.logger.Warn("triage.suggest.timeout",
			zap.String("ticket_id", c.Params("id")),
			zap.String("correlation_id", correlationID),
			zap.Error(err),
		)
		return c.Status(http.StatusGatewayTimeout).JSON(fiber.Map{
			"error":          "triage_timeout",
			"message":        "The triage service timed out.",
			"correlation_id": correlationID,
		})
	}

	h.logger.Error("triage.suggest.error",
		zap.String("ticket_id", c.Params("id")),
		zap.String("correlation_id", correlationID),
		zap.Error(err),
	)
	return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{
		"error":          "triage_unavailable",
		"message":        "The triage service is currently unavailable.",
		"correlation_id": correlationID,
	})
}
