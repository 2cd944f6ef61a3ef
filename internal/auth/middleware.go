package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/tickit/guild-ticket-service/pkg/util"
)

// GuildAuthMiddleware guards guild-scoped routes: the bearer token must
// grant access to the guild named in the path.
type GuildAuthMiddleware struct {
	tokens  *TokenManager
	enabled bool
}

// NewGuildAuthMiddleware constructs the middleware. When no token
// manager is supplied (no secret configured) the guard is a no-op.
func NewGuildAuthMiddleware(tokens *TokenManager, enabled bool) *GuildAuthMiddleware {
	return &GuildAuthMiddleware{tokens: tokens, enabled: enabled && tokens != nil}
}

// Handle validates the bearer token against the :guildId path param.
func (m *GuildAuthMiddleware) Handle(c *fiber.Ctx) error {
	if !m.enabled {
		return c.Next()
	}

	header := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(header, "Bearer ") {
		return apperrors.NewUnauthorized("bearer token required")
	}

	claims, err := m.tokens.ParseToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	guildID := c.Params("guildId")
	if guildID == "" || !claims.AllowsGuild(guildID) {
		return apperrors.NewForbidden("token not valid for this guild")
	}

	c.Locals("claims", claims)
	return c.Next()
}
