package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tickit/guild-ticket-service/internal/api/dto"
	"github.com/tickit/guild-ticket-service/internal/api/http/handlers"
	"github.com/tickit/guild-ticket-service/internal/auth"
	"github.com/tickit/guild-ticket-service/internal/config"
	"github.com/tickit/guild-ticket-service/internal/crypto"
	"github.com/tickit/guild-ticket-service/internal/domain"
	"github.com/tickit/guild-ticket-service/internal/persistence"
	"github.com/tickit/guild-ticket-service/internal/queue"
	"github.com/tickit/guild-ticket-service/internal/repository"
	"github.com/tickit/guild-ticket-service/internal/repository/memory"
	"github.com/tickit/guild-ticket-service/internal/service"
	"github.com/tickit/guild-ticket-service/internal/tenant"
)

func newTestApp(t *testing.T, guilds *memory.GuildStore) *fiber.App {
	t.Helper()

	cipher, err := crypto.NewCipher(config.EncryptionConfig{Key: "test-encryption-key"})
	require.NoError(t, err)

	tickets := memory.NewTicketStore()
	resolver := tenant.NewResolver(tenant.Dependencies{
		Guilds: guilds,
		Platform: func(guildID string) repository.TicketRepository {
			return tickets
		},
		Cipher: cipher,
	})

	status := queue.NewMemoryStatusStore()
	manager := queue.NewManager(queue.Config{}, queue.Dependencies{Status: status})

	guildService := service.NewGuildService(service.GuildServiceDependencies{
		Guilds: guilds,
		Cipher: cipher,
	})
	ticketService := service.NewTicketService(service.TicketServiceDependencies{
		Guilds:   guilds,
		Resolver: resolver,
		Queue:    manager,
		Status:   status,
	})

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), nil, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("test", "dev", &persistence.Postgres{}, nil),
		GuildConfig:    handlers.NewGuildConfigHandler(guildService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		AuthMiddleware: auth.NewGuildAuthMiddleware(nil, false),
	})
	return app
}

func decodeGuildResponse(t *testing.T, body io.Reader) dto.GuildResponse {
	t.Helper()
	var envelope struct {
		Data dto.GuildResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(body).Decode(&envelope))
	return envelope.Data
}

func TestPutConfigWithoutEnvelopeIsRejected(t *testing.T) {
	guilds := memory.NewGuildStore()
	guilds.Seed(domain.Guild{
		GuildID: "g1",
		Config:  domain.GuildConfig{Hosting: domain.HostingPlatform, TicketPrefix: "help-"},
	})
	app := newTestApp(t, guilds)

	req := httptest.NewRequest("PUT", "/guilds/g1/config", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// The stored config must be untouched.
	stored, err := guilds.Get(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "help-", stored.Config.TicketPrefix)
}

func TestPutConfigAppliesDefaults(t *testing.T) {
	guilds := memory.NewGuildStore()
	guilds.Seed(domain.Guild{GuildID: "g1"})
	app := newTestApp(t, guilds)

	req := httptest.NewRequest("PUT", "/guilds/g1/config",
		strings.NewReader(`{"config":{"hosting":"platform"}}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	got := decodeGuildResponse(t, resp.Body)
	assert.Equal(t, "ticket-", got.Config.TicketPrefix)
	require.NotNil(t, got.Config.AllowAttachments)
	// Omitted on the wire means the default, not false.
	assert.True(t, *got.Config.AllowAttachments)
}

func TestPutConfigAllowAttachmentsExplicitFalse(t *testing.T) {
	guilds := memory.NewGuildStore()
	guilds.Seed(domain.Guild{GuildID: "g1"})
	app := newTestApp(t, guilds)

	req := httptest.NewRequest("PUT", "/guilds/g1/config",
		strings.NewReader(`{"config":{"hosting":"platform","allowAttachments":false}}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	got := decodeGuildResponse(t, resp.Body)
	require.NotNil(t, got.Config.AllowAttachments)
	assert.False(t, *got.Config.AllowAttachments)
}

func TestGetConfigUnknownGuild(t *testing.T) {
	app := newTestApp(t, memory.NewGuildStore())

	resp, err := app.Test(httptest.NewRequest("GET", "/guilds/missing/config", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
