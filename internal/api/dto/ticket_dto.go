package dto

import (
	"time"

	"github.com/tickit/guild-ticket-service/internal/domain"
	"github.com/tickit/guild-ticket-service/internal/service"
)

// CreateTicketRequest is the accepted creation payload.
type CreateTicketRequest struct {
	CreatedBy      string `json:"createdBy"`
	Subject        string `json:"subject"`
	InitialMessage string `json:"initialMessage,omitempty"`
}

// UpdateTicketRequest is the accepted partial update payload. Absent
// fields leave the stored value unchanged.
type UpdateTicketRequest struct {
	Subject *string         `json:"subject,omitempty"`
	Status  *string         `json:"status,omitempty"`
	Message *MessageRequest `json:"message,omitempty"`
}

// MessageRequest appends one conversation entry.
type MessageRequest struct {
	AuthorID string `json:"authorId"`
	Content  string `json:"content"`
}

// EnqueuedResponse acknowledges an accepted async mutation.
type EnqueuedResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	TicketID string `json:"ticketId"`
	JobID    string `json:"jobId"`
}

// MessageDTO is the wire form of a ticket message.
type MessageDTO struct {
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// TicketResponse is the wire form of a ticket.
type TicketResponse struct {
	TicketID  string       `json:"ticketId"`
	CreatedBy string       `json:"createdBy"`
	Subject   string       `json:"subject"`
	Status    string       `json:"status"`
	Messages  []MessageDTO `json:"messages"`
	CreatedAt time.Time    `json:"createdAt"`
	ClosedAt  *time.Time   `json:"closedAt,omitempty"`
}

// PaginationDTO mirrors service.Pagination.
type PaginationDTO struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

// ListTicketsResponse is one page of tickets.
type ListTicketsResponse struct {
	Tickets    []TicketResponse `json:"tickets"`
	Pagination PaginationDTO    `json:"pagination"`
}

// JobStatusResponse reports the state of an accepted job.
type JobStatusResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// NewTicketResponse maps a domain ticket to its wire form.
func NewTicketResponse(ticket *domain.Ticket) TicketResponse {
	messages := make([]MessageDTO, 0, len(ticket.Messages))
	for _, m := range ticket.Messages {
		messages = append(messages, MessageDTO{
			AuthorID:  m.AuthorID,
			Content:   m.Content,
			Timestamp: m.Timestamp,
		})
	}
	return TicketResponse{
		TicketID:  ticket.TicketID,
		CreatedBy: ticket.CreatedBy,
		Subject:   ticket.Subject,
		Status:    string(ticket.Status),
		Messages:  messages,
		CreatedAt: ticket.CreatedAt,
		ClosedAt:  ticket.ClosedAt,
	}
}

// NewListTicketsResponse maps one listing page to its wire form.
func NewListTicketsResponse(tickets []domain.Ticket, page service.Pagination) ListTicketsResponse {
	items := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, NewTicketResponse(&tickets[i]))
	}
	return ListTicketsResponse{
		Tickets: items,
		Pagination: PaginationDTO{
			Total: page.Total,
			Page:  page.Page,
			Limit: page.Limit,
			Pages: page.Pages,
		},
	}
}
