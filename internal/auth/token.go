package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// TokenManager handles issuing and validating guild-scoped JWT tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttlMinutes int) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 7 * 24 * 60
	}
	return &TokenManager{secret: []byte(secret), ttl: time.Duration(ttlMinutes) * time.Minute}
}

// Claims describes JWT payload. Guild tokens carry the guild they are
// bound to; user tokens carry the set of guilds the user may act on.
type Claims struct {
	GuildID   string   `json:"guildId,omitempty"`
	UserID    string   `json:"userId,omitempty"`
	GuildIDs  []string `json:"guildIds,omitempty"`
	TokenType string   `json:"type"`
	jwt.RegisteredClaims
}

// AllowsGuild reports whether the token grants access to guildID.
func (c *Claims) AllowsGuild(guildID string) bool {
	switch c.TokenType {
	case "guild":
		return c.GuildID == guildID
	case "user":
		for _, id := range c.GuildIDs {
			if id == guildID {
				return true
			}
		}
	}
	return false
}

// GenerateGuildToken builds and signs a JWT bound to one guild.
func (tm *TokenManager) GenerateGuildToken(guildID string) (string, time.Time, error) {
	return tm.sign(&Claims{GuildID: guildID, TokenType: "guild"}, guildID)
}

// GenerateUserToken builds and signs a JWT for a user with access to
// the given guilds.
func (tm *TokenManager) GenerateUserToken(userID string, guildIDs []string) (string, time.Time, error) {
	return tm.sign(&Claims{UserID: userID, GuildIDs: guildIDs, TokenType: "user"}, userID)
}

func (tm *TokenManager) sign(claims *Claims, subject string) (string, time.Time, error) {
	expiresAt := time.Now().Add(tm.ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
