package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
)

// NotificationService emits notifications for domain events. Delivery is
// best-effort: failures are logged and never affect the originating request.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	client     HTTPDoer
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketStatusChanged,
		events.EventTriageAccepted,
		events.EventTriageRejected,
	} {
		n.dispatcher.Subscribe(eventType, n.notify)
	}
}

func (n *NotificationService) notify(ctx context.Context, event events.Event) error {
	n.logger.Info("notification",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.String("actor_user_id", event.Actor.UserID),
	)

	if n.cfg.WebhookURL == "" {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		n.logger.Warn("notification webhook marshal failed", zap.Error(err))
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		n.logger.Warn("notification webhook request failed", zap.Error(err))
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("notification webhook delivery failed", zap.Error(err))
		return nil
	}
	defer resp.Body.Close()
	return nil
}
