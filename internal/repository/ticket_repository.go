package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tickit/guild-ticket-service/internal/domain"
	"github.com/tickit/guild-ticket-service/pkg/util"
)

// ErrDuplicateTicket is returned by Create when the ticket id is
// already taken. The creation handler relies on it to converge when a
// job is retried after the insert already landed.
var ErrDuplicateTicket = errors.New("ticket already exists")

// TicketFilter captures listing parameters.
type TicketFilter struct {
	Status *domain.TicketStatus
	Limit  int
	Offset int
}

// TicketRepository encapsulates ticket persistence scoped to one guild's
// store. Update and archive paths are only ever driven by job handlers.
type TicketRepository interface {
	Get(ctx context.Context, ticketID string) (*domain.Ticket, error)
	// List returns tickets ordered by creation time descending plus the
	// total count of tickets matching the filter.
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error)
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
}

type ticketRepository struct {
	pool    *pgxpool.Pool
	guildID string
}

// NewTicketRepository instantiates a repository bound to one guild.
func NewTicketRepository(pool *pgxpool.Pool, guildID string) TicketRepository {
	return &ticketRepository{pool: pool, guildID: guildID}
}

const ticketColumns = `ticket_id, created_by, subject, status, messages, created_at, closed_at`

func (r *ticketRepository) Get(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE guild_id=$1 AND ticket_id=$2`

	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, r.guildID, ticketID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, util.NewStoreUnavailable(err)
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	clause := `WHERE guild_id=$1`
	args := []any{r.guildID}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clause += fmt.Sprintf(" AND status=$%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets `+clause, args...).Scan(&total); err != nil {
		return nil, 0, util.NewStoreUnavailable(err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, clause, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, util.NewStoreUnavailable(err)
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, 0, util.NewStoreUnavailable(err)
		}
		result = append(result, *ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, util.NewStoreUnavailable(err)
	}
	return result, total, nil
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	messagesRaw, err := marshalMessages(ticket.Messages)
	if err != nil {
		return util.NewInternalError(err)
	}
	const query = `
        INSERT INTO tickets (guild_id, ticket_id, created_by, subject, status, messages, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err = r.pool.Exec(ctx, query,
		r.guildID,
		ticket.TicketID,
		ticket.CreatedBy,
		ticket.Subject,
		ticket.Status,
		messagesRaw,
		ticket.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateTicket
		}
		return util.NewStoreUnavailable(err)
	}
	return nil
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	messagesRaw, err := marshalMessages(ticket.Messages)
	if err != nil {
		return util.NewInternalError(err)
	}
	const query = `
        UPDATE tickets SET subject=$1, status=$2, messages=$3, closed_at=$4
        WHERE guild_id=$5 AND ticket_id=$6`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Subject,
		ticket.Status,
		messagesRaw,
		ticket.ClosedAt,
		r.guildID,
		ticket.TicketID,
	)
	if err != nil {
		return util.NewStoreUnavailable(err)
	}
	if cmd.RowsAffected() == 0 {
		return util.NewNotFound("ticket", map[string]any{"ticket_id": ticket.TicketID})
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		ticket      domain.Ticket
		messagesRaw []byte
	)
	if err := row.Scan(
		&ticket.TicketID,
		&ticket.CreatedBy,
		&ticket.Subject,
		&ticket.Status,
		&messagesRaw,
		&ticket.CreatedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	if len(messagesRaw) > 0 {
		if err := json.Unmarshal(messagesRaw, &ticket.Messages); err != nil {
			return nil, err
		}
	}
	return &ticket, nil
}

func marshalMessages(messages []domain.TicketMessage) ([]byte, error) {
	if messages == nil {
		messages = []domain.TicketMessage{}
	}
	return json.Marshal(messages)
}
