package notify

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/tickit/guild-ticket-service/internal/config"
	"github.com/tickit/guild-ticket-service/internal/events"
)

// Notifier relays ticket lifecycle events to the configured webhook.
// Delivery is a stub: events are logged; the webhook call is left to
// the Discord bot integration.
type Notifier struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotifyConfig
}

// NewNotifier creates the notifier.
func NewNotifier(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotifyConfig) *Notifier {
	return &Notifier{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *Notifier) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleEvent)
	n.dispatcher.Subscribe(events.EventTicketUpdated, n.handleEvent)
	n.dispatcher.Subscribe(events.EventTicketArchived, n.handleEvent)
	n.dispatcher.Subscribe(events.EventConfigUpdated, n.handleEvent)
}

func (n *Notifier) handleEvent(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("guild_id", event.GuildID),
		zap.String("ticket_id", event.TicketID),
		zap.Any("payload", event.Payload))
	n.sendWebhookStub(ctx, event)
	return nil
}

func (n *Notifier) sendWebhookStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("guild_id", event.GuildID),
		zap.String("event_type", string(event.Type)))
}
