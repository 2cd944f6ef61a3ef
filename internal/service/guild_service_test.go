package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tickit/guild-ticket-service/internal/config"
	"github.com/tickit/guild-ticket-service/internal/crypto"
	"github.com/tickit/guild-ticket-service/internal/domain"
	"github.com/tickit/guild-ticket-service/internal/events"
	"github.com/tickit/guild-ticket-service/internal/repository/memory"
)

type configEventRecorder struct {
	published []events.Event
}

func (r *configEventRecorder) Publish(ctx context.Context, event events.Event) error {
	r.published = append(r.published, event)
	return nil
}

func (r *configEventRecorder) Subscribe(eventType events.EventType, handler events.EventHandler) {}

func newGuildServiceFixture(t *testing.T, guild domain.Guild) (*GuildService, *memory.GuildStore, *crypto.Cipher) {
	t.Helper()

	cipher, err := crypto.NewCipher(config.EncryptionConfig{Key: "test-encryption-key"})
	require.NoError(t, err)

	guilds := memory.NewGuildStore()
	guilds.Seed(guild)

	svc := NewGuildService(GuildServiceDependencies{Guilds: guilds, Cipher: cipher})
	return svc, guilds, cipher
}

func TestGetConfigMasksPassword(t *testing.T) {
	cipher, err := crypto.NewCipher(config.EncryptionConfig{Key: "test-encryption-key"})
	require.NoError(t, err)
	encrypted, err := cipher.Encrypt("s3cret")
	require.NoError(t, err)

	svc, _, _ := newGuildServiceFixture(t, domain.Guild{
		GuildID: "guild-1",
		Config: domain.GuildConfig{
			Hosting: domain.HostingSelf,
			SelfHosting: &domain.SelfHostingConfig{
				ConnString: "postgres://db.example.com:5432/tickets",
				Username:   "guild",
				Password:   encrypted,
			},
		},
	})

	view, err := svc.GetConfig(context.Background(), "guild-1")
	require.NoError(t, err)
	require.Equal(t, domain.MaskedSecret, view.Config.SelfHosting.Password)
}

func TestPutConfigEncryptsPassword(t *testing.T) {
	svc, guilds, cipher := newGuildServiceFixture(t, domain.Guild{GuildID: "guild-1"})

	view, err := svc.PutConfig(context.Background(), "guild-1", domain.GuildConfig{
		Hosting: domain.HostingSelf,
		SelfHosting: &domain.SelfHostingConfig{
			ConnString: "postgres://db.example.com:5432/tickets",
			Username:   "guild",
			Password:   "s3cret",
		},
	})
	require.NoError(t, err)
	// The response never carries the ciphertext, only the mask.
	require.Equal(t, domain.MaskedSecret, view.Config.SelfHosting.Password)

	stored, err := guilds.Get(context.Background(), "guild-1")
	require.NoError(t, err)
	require.NotEqual(t, "s3cret", stored.Config.SelfHosting.Password)

	plain, err := cipher.Decrypt(stored.Config.SelfHosting.Password)
	require.NoError(t, err)
	require.Equal(t, "s3cret", plain)
}

func TestPutConfigKeepsSecretOnMaskedWrite(t *testing.T) {
	svc, guilds, cipher := newGuildServiceFixture(t, domain.Guild{GuildID: "guild-1"})

	_, err := svc.PutConfig(context.Background(), "guild-1", domain.GuildConfig{
		Hosting: domain.HostingSelf,
		SelfHosting: &domain.SelfHostingConfig{
			ConnString: "postgres://db.example.com:5432/tickets",
			Username:   "guild",
			Password:   "s3cret",
		},
	})
	require.NoError(t, err)

	// Round-tripping the masked form must not overwrite the stored secret.
	_, err = svc.PutConfig(context.Background(), "guild-1", domain.GuildConfig{
		Hosting: domain.HostingSelf,
		SelfHosting: &domain.SelfHostingConfig{
			ConnString: "postgres://db.example.com:5432/tickets",
			Username:   "guild",
			Password:   domain.MaskedSecret,
		},
	})
	require.NoError(t, err)

	stored, err := guilds.Get(context.Background(), "guild-1")
	require.NoError(t, err)
	plain, err := cipher.Decrypt(stored.Config.SelfHosting.Password)
	require.NoError(t, err)
	require.Equal(t, "s3cret", plain)
}

func TestPutConfigNormalizesLegacyHosting(t *testing.T) {
	svc, _, _ := newGuildServiceFixture(t, domain.Guild{GuildID: "guild-1"})

	view, err := svc.PutConfig(context.Background(), "guild-1", domain.GuildConfig{
		Hosting: domain.HostingMode("tickit"),
	})
	require.NoError(t, err)
	require.Equal(t, domain.HostingPlatform, view.Config.Hosting)
	require.Equal(t, domain.DefaultTicketPrefix, view.Config.TicketPrefix)
	require.Equal(t, 24*time.Hour, view.Config.TicketTimeout)
}

func TestPutConfigRejectsUnknownHosting(t *testing.T) {
	svc, _, _ := newGuildServiceFixture(t, domain.Guild{GuildID: "guild-1"})

	_, err := svc.PutConfig(context.Background(), "guild-1", domain.GuildConfig{
		Hosting: domain.HostingMode("cloud"),
	})
	require.Error(t, err)
}

func TestPutConfigPublishesEvent(t *testing.T) {
	cipher, err := crypto.NewCipher(config.EncryptionConfig{Key: "test-encryption-key"})
	require.NoError(t, err)

	guilds := memory.NewGuildStore()
	guilds.Seed(domain.Guild{GuildID: "guild-1"})
	recorder := &configEventRecorder{}

	svc := NewGuildService(GuildServiceDependencies{
		Guilds:     guilds,
		Cipher:     cipher,
		Dispatcher: recorder,
	})

	_, err = svc.PutConfig(context.Background(), "guild-1", domain.GuildConfig{
		Hosting: domain.HostingPlatform,
	})
	require.NoError(t, err)

	require.Len(t, recorder.published, 1)
	require.Equal(t, events.EventConfigUpdated, recorder.published[0].Type)
	require.Equal(t, "guild-1", recorder.published[0].GuildID)
}

func TestPutConfigSelfHostingRequiresConnString(t *testing.T) {
	svc, _, _ := newGuildServiceFixture(t, domain.Guild{GuildID: "guild-1"})

	_, err := svc.PutConfig(context.Background(), "guild-1", domain.GuildConfig{
		Hosting: domain.HostingSelf,
	})
	require.Error(t, err)
}
