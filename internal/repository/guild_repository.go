package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tickit/guild-ticket-service/internal/domain"
	"github.com/tickit/guild-ticket-service/pkg/util"
)

// GuildRepository encapsulates guild configuration and stats persistence
// on the platform store.
type GuildRepository interface {
	Get(ctx context.Context, guildID string) (*domain.Guild, error)
	Create(ctx context.Context, guild *domain.Guild) error
	UpdateConfig(ctx context.Context, guildID string, cfg domain.GuildConfig) (*domain.Guild, error)
	// NextTicketSeq atomically increments and returns the guild's ticket
	// sequence counter, so concurrent creates never mint the same number.
	NextTicketSeq(ctx context.Context, guildID string) (int, error)
	// AdjustStats applies a delta to the stats counters in one statement.
	// Counters are floored at zero.
	AdjustStats(ctx context.Context, guildID string, delta domain.StatsDelta) error
}

type guildRepository struct {
	pool *pgxpool.Pool
}

// NewGuildRepository instantiates repository.
func NewGuildRepository(pool *pgxpool.Pool) GuildRepository {
	return &guildRepository{pool: pool}
}

const guildColumns = `guild_id, name, owner_id, config,
       stats_total_tickets, stats_open_tickets, stats_resolved_tickets,
       ticket_seq, created_at`

func (r *guildRepository) Get(ctx context.Context, guildID string) (*domain.Guild, error) {
	query := `SELECT ` + guildColumns + ` FROM guilds WHERE guild_id=$1`

	var (
		guild     domain.Guild
		configRaw []byte
	)
	err := r.pool.QueryRow(ctx, query, guildID).Scan(
		&guild.GuildID,
		&guild.Name,
		&guild.OwnerID,
		&configRaw,
		&guild.Stats.TotalTickets,
		&guild.Stats.OpenTickets,
		&guild.Stats.ResolvedTickets,
		&guild.TicketSeq,
		&guild.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("guild", map[string]any{"guild_id": guildID})
		}
		return nil, util.NewStoreUnavailable(err)
	}

	if len(configRaw) > 0 {
		if err := json.Unmarshal(configRaw, &guild.Config); err != nil {
			return nil, util.NewInternalError(err)
		}
	}
	return &guild, nil
}

func (r *guildRepository) Create(ctx context.Context, guild *domain.Guild) error {
	configRaw, err := json.Marshal(guild.Config)
	if err != nil {
		return util.NewInternalError(err)
	}
	const query = `
        INSERT INTO guilds (guild_id, name, owner_id, config)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (guild_id) DO NOTHING
        RETURNING created_at`
	err = r.pool.QueryRow(ctx, query, guild.GuildID, guild.Name, guild.OwnerID, configRaw).
		Scan(&guild.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return util.NewConflict("guild already exists", map[string]any{"guild_id": guild.GuildID})
	}
	if err != nil {
		return util.NewStoreUnavailable(err)
	}
	return nil
}

func (r *guildRepository) UpdateConfig(ctx context.Context, guildID string, cfg domain.GuildConfig) (*domain.Guild, error) {
	configRaw, err := json.Marshal(cfg)
	if err != nil {
		return nil, util.NewInternalError(err)
	}
	query := `UPDATE guilds SET config=$1 WHERE guild_id=$2 RETURNING ` + guildColumns

	var (
		guild  domain.Guild
		rawOut []byte
	)
	err = r.pool.QueryRow(ctx, query, configRaw, guildID).Scan(
		&guild.GuildID,
		&guild.Name,
		&guild.OwnerID,
		&rawOut,
		&guild.Stats.TotalTickets,
		&guild.Stats.OpenTickets,
		&guild.Stats.ResolvedTickets,
		&guild.TicketSeq,
		&guild.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("guild", map[string]any{"guild_id": guildID})
		}
		return nil, util.NewStoreUnavailable(err)
	}
	if err := json.Unmarshal(rawOut, &guild.Config); err != nil {
		return nil, util.NewInternalError(err)
	}
	return &guild, nil
}

func (r *guildRepository) NextTicketSeq(ctx context.Context, guildID string) (int, error) {
	const query = `UPDATE guilds SET ticket_seq = ticket_seq + 1 WHERE guild_id=$1 RETURNING ticket_seq`
	var seq int
	err := r.pool.QueryRow(ctx, query, guildID).Scan(&seq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, util.NewNotFound("guild", map[string]any{"guild_id": guildID})
		}
		return 0, util.NewStoreUnavailable(err)
	}
	return seq, nil
}

func (r *guildRepository) AdjustStats(ctx context.Context, guildID string, delta domain.StatsDelta) error {
	const query = `
        UPDATE guilds SET
            stats_total_tickets    = GREATEST(0, stats_total_tickets    + $1),
            stats_open_tickets     = GREATEST(0, stats_open_tickets     + $2),
            stats_resolved_tickets = GREATEST(0, stats_resolved_tickets + $3)
        WHERE guild_id=$4`
	cmd, err := r.pool.Exec(ctx, query, delta.Total, delta.Open, delta.Resolved, guildID)
	if err != nil {
		return util.NewStoreUnavailable(err)
	}
	if cmd.RowsAffected() == 0 {
		return util.NewNotFound("guild", map[string]any{"guild_id": guildID})
	}
	return nil
}
