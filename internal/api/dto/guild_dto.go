package dto

import (
	"time"

	"github.com/tickit/guild-ticket-service/internal/domain"
	"github.com/tickit/guild-ticket-service/internal/service"
)

// SelfHostingDTO is the wire form of guild-operated database settings.
type SelfHostingDTO struct {
	ConnString string `json:"connString,omitempty"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
}

// GuildConfigDTO is the wire form of a guild configuration. The ticket
// timeout travels as milliseconds. AllowAttachments is a pointer so an
// omitted field keeps the default (true) instead of flipping to false.
type GuildConfigDTO struct {
	Hosting          string          `json:"hosting"`
	SupportRoles     []string        `json:"supportRoles,omitempty"`
	CategoryID       string          `json:"categoryId,omitempty"`
	TicketPrefix     string          `json:"ticketPrefix,omitempty"`
	WelcomeMessage   string          `json:"welcomeMessage,omitempty"`
	TicketTimeoutMS  int64           `json:"ticketTimeout,omitempty"`
	AllowAttachments *bool           `json:"allowAttachments,omitempty"`
	SelfHosting      *SelfHostingDTO `json:"selfHosting,omitempty"`
}

// PutGuildConfigRequest wraps the config payload; a PUT without the
// envelope is rejected.
type PutGuildConfigRequest struct {
	Config *GuildConfigDTO `json:"config"`
}

// GuildStatsDTO mirrors the lifecycle counters.
type GuildStatsDTO struct {
	TotalTickets    int `json:"totalTickets"`
	OpenTickets     int `json:"openTickets"`
	ResolvedTickets int `json:"resolvedTickets"`
}

// GuildResponse is the config read/write response envelope.
type GuildResponse struct {
	GuildID string         `json:"guildId"`
	Name    string         `json:"name"`
	Config  GuildConfigDTO `json:"config"`
	Stats   GuildStatsDTO  `json:"stats"`
}

// ToDomainConfig converts the wire form into the domain config.
func (d GuildConfigDTO) ToDomainConfig() domain.GuildConfig {
	allowAttachments := true
	if d.AllowAttachments != nil {
		allowAttachments = *d.AllowAttachments
	}
	cfg := domain.GuildConfig{
		Hosting:          domain.HostingMode(d.Hosting),
		SupportRoles:     d.SupportRoles,
		CategoryID:       d.CategoryID,
		TicketPrefix:     d.TicketPrefix,
		WelcomeMessage:   d.WelcomeMessage,
		TicketTimeout:    time.Duration(d.TicketTimeoutMS) * time.Millisecond,
		AllowAttachments: allowAttachments,
	}
	if d.SelfHosting != nil {
		cfg.SelfHosting = &domain.SelfHostingConfig{
			ConnString: d.SelfHosting.ConnString,
			Username:   d.SelfHosting.Username,
			Password:   d.SelfHosting.Password,
		}
	}
	return cfg
}

// NewGuildResponse maps the service view to the wire form.
func NewGuildResponse(view *service.GuildView) GuildResponse {
	allowAttachments := view.Config.AllowAttachments
	cfg := GuildConfigDTO{
		Hosting:          string(view.Config.Hosting),
		SupportRoles:     view.Config.SupportRoles,
		CategoryID:       view.Config.CategoryID,
		TicketPrefix:     view.Config.TicketPrefix,
		WelcomeMessage:   view.Config.WelcomeMessage,
		TicketTimeoutMS:  view.Config.TicketTimeout.Milliseconds(),
		AllowAttachments: &allowAttachments,
	}
	if view.Config.SelfHosting != nil {
		cfg.SelfHosting = &SelfHostingDTO{
			ConnString: view.Config.SelfHosting.ConnString,
			Username:   view.Config.SelfHosting.Username,
			Password:   view.Config.SelfHosting.Password,
		}
	}
	return GuildResponse{
		GuildID: view.GuildID,
		Name:    view.Name,
		Config:  cfg,
		Stats: GuildStatsDTO{
			TotalTickets:    view.Stats.TotalTickets,
			OpenTickets:     view.Stats.OpenTickets,
			ResolvedTickets: view.Stats.ResolvedTickets,
		},
	}
}
