package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// ExternalHandler fronts the external data proxy and the user directory sync.
type ExternalHandler struct {
	external      *service.ExternalAPIService
	externalUsers *service.ExternalUserService
}

// NewExternalHandler constructs handler.
func NewExternalHandler(external *service.ExternalAPIService, externalUsers *service.ExternalUserService) *ExternalHandler {
	return &ExternalHandler{external: external, externalUsers: externalUsers}
}

// CurrentWeather GET /external-data?city=...
func (h *ExternalHandler) CurrentWeather(c *fiber.Ctx) error {
	city := strings.TrimSpace(c.Query("city"))
	if city == "" {
		return apperrors.NewValidationError("city query parameter required", nil)
	}
	if len(city) > 120 {
		return apperrors.NewValidationError("city must be at most 120 characters", nil)
	}

	result := h.external.CurrentWeather(c.Context(), city)
	return c.Status(externalStatus(result)).JSON(result)
}

// ListUsers GET /external-users.
func (h *ExternalHandler) ListUsers(c *fiber.Ctx) error {
	users, fromCache, err := h.externalUsers.GetUsers(c.Context())
	if err != nil {
		return err
	}
	source := "remote"
	if fromCache {
		source = "cache"
	}
	return c.JSON(fiber.Map{
		"data":   users,
		"source": source,
	})
}

// SyncUsers POST /external-users/sync.
func (h *ExternalHandler) SyncUsers(c *fiber.Ctx) error {
	var req dto.SyncExternalUsersRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	synced, err := h.externalUsers.SyncByIDs(c.Context(), req.IDs)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"synced": len(synced),
		"users":  synced,
	})
}

func externalStatus(result service.ExternalResult) int {
	if result.Error == "" {
		return http.StatusOK
	}
	switch result.Error {
	case service.ExternalErrUpstreamTimeout:
		return http.StatusGatewayTimeout
	case service.ExternalErrUpstreamUnavailable, service.ExternalErrUpstreamFailure, service.ExternalErrUnexpected:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
