package events

import (
	"time"

	"github.com/tickit/guild-ticket-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated  EventType = "ticket_created"
	EventTicketUpdated  EventType = "ticket_updated"
	EventTicketArchived EventType = "ticket_archived"
	EventConfigUpdated  EventType = "config_updated"
)

// Event represents a domain event emitted by job handlers and services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	GuildID   string      `json:"guild_id"`
	TicketID  string      `json:"ticket_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	CreatedBy string `json:"created_by"`
	Subject   string `json:"subject"`
}

// TicketUpdatedPayload payload.
type TicketUpdatedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status,omitempty"`
	NewStatus domain.TicketStatus `json:"new_status,omitempty"`
	Commented bool                `json:"commented"`
}

// TicketArchivedPayload payload.
type TicketArchivedPayload struct {
	PreviousStatus domain.TicketStatus `json:"previous_status"`
}

// ConfigUpdatedPayload payload.
type ConfigUpdatedPayload struct {
	Hosting domain.HostingMode `json:"hosting"`
}
