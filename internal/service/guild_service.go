package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tickit/guild-ticket-service/internal/crypto"
	"github.com/tickit/guild-ticket-service/internal/domain"
	"github.com/tickit/guild-ticket-service/internal/events"
	"github.com/tickit/guild-ticket-service/internal/repository"
	"github.com/tickit/guild-ticket-service/pkg/util"
)

// GuildView is the read model returned by config operations. The
// self-hosting password is always masked, never the stored ciphertext.
type GuildView struct {
	GuildID string             `json:"guildId"`
	Name    string             `json:"name"`
	Config  domain.GuildConfig `json:"config"`
	Stats   domain.GuildStats  `json:"stats"`
}

// GuildServiceDependencies bundles dependencies.
type GuildServiceDependencies struct {
	Guilds     repository.GuildRepository
	Cipher     *crypto.Cipher
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// GuildService manages per-guild configuration.
type GuildService struct {
	deps GuildServiceDependencies
}

// NewGuildService creates a guild service instance.
func NewGuildService(deps GuildServiceDependencies) *GuildService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &GuildService{deps: deps}
}

// GetConfig returns the guild's configuration with secrets masked.
func (s *GuildService) GetConfig(ctx context.Context, guildID string) (*GuildView, error) {
	guild, err := s.deps.Guilds.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return s.view(guild), nil
}

// PutConfig validates and stores the guild's configuration. A password
// equal to the mask placeholder keeps the previously stored secret.
func (s *GuildService) PutConfig(ctx context.Context, guildID string, cfg domain.GuildConfig) (*GuildView, error) {
	mode, ok := domain.ParseHostingMode(string(cfg.Hosting))
	if !ok {
		return nil, util.NewValidationError("unknown hosting mode", map[string]any{
			"hosting": string(cfg.Hosting),
		})
	}
	cfg.Hosting = mode

	if cfg.TicketPrefix == "" {
		cfg.TicketPrefix = domain.DefaultTicketPrefix
	}
	if cfg.TicketTimeout <= 0 {
		cfg.TicketTimeout = domain.DefaultTicketTimeout
	}

	current, err := s.deps.Guilds.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}

	if mode == domain.HostingSelf {
		if cfg.SelfHosting == nil || strings.TrimSpace(cfg.SelfHosting.ConnString) == "" {
			return nil, util.NewValidationError("self hosting requires a connection string", nil)
		}
		sh := *cfg.SelfHosting
		switch sh.Password {
		case "":
			// no secret configured
		case domain.MaskedSecret:
			// keep whatever ciphertext is already stored
			if current.Config.SelfHosting != nil {
				sh.Password = current.Config.SelfHosting.Password
			} else {
				sh.Password = ""
			}
		default:
			encrypted, err := s.deps.Cipher.Encrypt(sh.Password)
			if err != nil {
				return nil, util.NewInternalError(err)
			}
			sh.Password = encrypted
		}
		cfg.SelfHosting = &sh
	} else {
		cfg.SelfHosting = nil
	}

	updated, err := s.deps.Guilds.UpdateConfig(ctx, guildID, cfg)
	if err != nil {
		return nil, err
	}

	s.deps.Logger.Info("guild config updated",
		zap.String("guild_id", guildID),
		zap.String("hosting", string(cfg.Hosting)))

	if s.deps.Dispatcher != nil {
		_ = s.deps.Dispatcher.Publish(ctx, events.Event{
			ID:        uuid.New().String(),
			Type:      events.EventConfigUpdated,
			GuildID:   guildID,
			Timestamp: time.Now().UTC(),
			Payload:   events.ConfigUpdatedPayload{Hosting: cfg.Hosting},
		})
	}
	return s.view(updated), nil
}

// view copies the guild into a response shape with secrets masked.
func (s *GuildService) view(guild *domain.Guild) *GuildView {
	cfg := guild.Config
	if cfg.SelfHosting != nil {
		sh := *cfg.SelfHosting
		if sh.Password != "" {
			sh.Password = domain.MaskedSecret
		}
		cfg.SelfHosting = &sh
	}
	return &GuildView{
		GuildID: guild.GuildID,
		Name:    guild.Name,
		Config:  cfg,
		Stats:   guild.Stats,
	}
}
