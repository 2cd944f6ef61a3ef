package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "open"
	TicketStatusClosed   TicketStatus = "closed"
	TicketStatusArchived TicketStatus = "archived"
)

var statusRank = map[TicketStatus]int{
	TicketStatusOpen:     0,
	TicketStatusClosed:   1,
	TicketStatusArchived: 2,
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransitionTo enforces the monotonic lifecycle
// open -> closed -> archived; no reverse transitions.
func (s TicketStatus) CanTransitionTo(next TicketStatus) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to > from
}

// TicketMessage is one entry in a ticket's ordered conversation.
type TicketMessage struct {
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Ticket is the support-request aggregate scoped to one guild.
// TicketID is assigned once at creation and never changes.
type Ticket struct {
	TicketID  string
	CreatedBy string
	Subject   string
	Status    TicketStatus
	Messages  []TicketMessage
	CreatedAt time.Time
	ClosedAt  *time.Time
}
