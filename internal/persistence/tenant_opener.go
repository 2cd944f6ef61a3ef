package persistence

import (
	"context"

	"go.uber.org/zap"

	"github.com/tickit/guild-ticket-service/internal/config"
	"github.com/tickit/guild-ticket-service/internal/repository"
	"github.com/tickit/guild-ticket-service/internal/tenant"
)

// NewSelfHostedOpener returns the opener the tenant resolver uses to
// dial guild-operated databases. The shared pool limits apply and the
// ticket schema is ensured on first connect.
func NewSelfHostedOpener(cfg config.PostgresConfig, logger *zap.Logger) tenant.SelfHostedOpener {
	return func(ctx context.Context, guildID, dsn string) (repository.TicketRepository, func(), error) {
		pool, err := OpenPool(ctx, dsn, cfg)
		if err != nil {
			return nil, nil, err
		}
		if _, err := pool.Exec(ctx, TicketSchema); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("connected to self-hosted database", zap.String("guild_id", guildID))
		return repository.NewTicketRepository(pool, guildID), pool.Close, nil
	}
}
