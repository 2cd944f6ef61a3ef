package domain

import "time"

// HostingMode selects where a guild's ticket data lives.
type HostingMode string

const (
	// HostingPlatform keeps ticket data on the shared platform store.
	HostingPlatform HostingMode = "platform"
	// HostingSelf points at a database the guild operates itself.
	HostingSelf HostingMode = "self"
)

// ParseHostingMode normalizes wire values. The dashboard historically
// sent "tickit" for platform hosting; that spelling is still accepted.
func ParseHostingMode(s string) (HostingMode, bool) {
	switch s {
	case "", "platform", "tickit":
		return HostingPlatform, true
	case "self":
		return HostingSelf, true
	}
	return "", false
}

// MaskedSecret is the placeholder returned in place of stored secrets.
// Receiving it back on a write means "leave the stored value unchanged".
const MaskedSecret = "●●●●●●●●"

// DefaultTicketPrefix is used when a guild has not configured one.
const DefaultTicketPrefix = "ticket-"

// DefaultTicketTimeout applies when a guild has not configured one.
const DefaultTicketTimeout = 24 * time.Hour

// SelfHostingConfig carries the guild-operated database credentials.
// Password holds ciphertext at rest; it is masked on every read path.
type SelfHostingConfig struct {
	ConnString string `json:"connString,omitempty"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
}

// GuildConfig is the single configuration record each guild owns.
type GuildConfig struct {
	Hosting          HostingMode        `json:"hosting"`
	SupportRoles     []string           `json:"supportRoles,omitempty"`
	CategoryID       string             `json:"categoryId,omitempty"`
	TicketPrefix     string             `json:"ticketPrefix,omitempty"`
	WelcomeMessage   string             `json:"welcomeMessage,omitempty"`
	TicketTimeout    time.Duration      `json:"ticketTimeout,omitempty"`
	AllowAttachments bool               `json:"allowAttachments"`
	SelfHosting      *SelfHostingConfig `json:"selfHosting,omitempty"`
}

// Prefix returns the configured ticket prefix or the default.
func (c GuildConfig) Prefix() string {
	if c.TicketPrefix == "" {
		return DefaultTicketPrefix
	}
	return c.TicketPrefix
}

// GuildStats aggregates ticket lifecycle counters. Counters are only
// mutated by job handlers as tickets move through their lifecycle.
type GuildStats struct {
	TotalTickets    int `json:"totalTickets"`
	OpenTickets     int `json:"openTickets"`
	ResolvedTickets int `json:"resolvedTickets"`
}

// StatsDelta describes an adjustment applied atomically to GuildStats.
type StatsDelta struct {
	Total    int
	Open     int
	Resolved int
}

// Guild is the tenant aggregate: one configuration record plus stats.
type Guild struct {
	GuildID   string
	Name      string
	OwnerID   string
	Config    GuildConfig
	Stats     GuildStats
	TicketSeq int
	CreatedAt time.Time
}
