// Package memory provides in-memory implementations of the repository
// interfaces, used by package tests in place of a live database.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/tickit/guild-ticket-service/internal/domain"
	"github.com/tickit/guild-ticket-service/internal/repository"
	"github.com/tickit/guild-ticket-service/pkg/util"
)

// GuildStore implements repository.GuildRepository.
type GuildStore struct {
	mu     sync.Mutex
	guilds map[string]*domain.Guild
}

// NewGuildStore initializes an empty store.
func NewGuildStore() *GuildStore {
	return &GuildStore{guilds: make(map[string]*domain.Guild)}
}

// Seed inserts or replaces a guild without error handling.
func (s *GuildStore) Seed(guild domain.Guild) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := guild
	s.guilds[guild.GuildID] = &g
}

func (s *GuildStore) Get(ctx context.Context, guildID string) (*domain.Guild, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.guilds[guildID]
	if !ok {
		return nil, util.NewNotFound("guild", map[string]any{"guild_id": guildID})
	}
	copied := *g
	return &copied, nil
}

func (s *GuildStore) Create(ctx context.Context, guild *domain.Guild) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.guilds[guild.GuildID]; ok {
		return util.NewConflict("guild already exists", nil)
	}
	g := *guild
	s.guilds[guild.GuildID] = &g
	return nil
}

func (s *GuildStore) UpdateConfig(ctx context.Context, guildID string, cfg domain.GuildConfig) (*domain.Guild, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.guilds[guildID]
	if !ok {
		return nil, util.NewNotFound("guild", map[string]any{"guild_id": guildID})
	}
	g.Config = cfg
	copied := *g
	return &copied, nil
}

func (s *GuildStore) NextTicketSeq(ctx context.Context, guildID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.guilds[guildID]
	if !ok {
		return 0, util.NewNotFound("guild", map[string]any{"guild_id": guildID})
	}
	g.TicketSeq++
	return g.TicketSeq, nil
}

func (s *GuildStore) AdjustStats(ctx context.Context, guildID string, delta domain.StatsDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.guilds[guildID]
	if !ok {
		return util.NewNotFound("guild", map[string]any{"guild_id": guildID})
	}
	g.Stats.TotalTickets = floorZero(g.Stats.TotalTickets + delta.Total)
	g.Stats.OpenTickets = floorZero(g.Stats.OpenTickets + delta.Open)
	g.Stats.ResolvedTickets = floorZero(g.Stats.ResolvedTickets + delta.Resolved)
	return nil
}

// Stats returns the current counters for assertions.
func (s *GuildStore) Stats(guildID string) domain.GuildStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.guilds[guildID]; ok {
		return g.Stats
	}
	return domain.GuildStats{}
}

func floorZero(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// TicketStore implements repository.TicketRepository for one guild.
type TicketStore struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
}

// NewTicketStore initializes an empty store.
func NewTicketStore() *TicketStore {
	return &TicketStore{tickets: make(map[string]*domain.Ticket)}
}

func (s *TicketStore) Get(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[ticketID]
	if !ok {
		return nil, util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	copied := *t
	copied.Messages = append([]domain.TicketMessage(nil), t.Messages...)
	return &copied, nil
}

func (s *TicketStore) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []domain.Ticket
	for _, t := range s.tickets {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		matched = append(matched, *t)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (s *TicketStore) Create(ctx context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[ticket.TicketID]; ok {
		return repository.ErrDuplicateTicket
	}
	t := *ticket
	s.tickets[ticket.TicketID] = &t
	return nil
}

func (s *TicketStore) Update(ctx context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[ticket.TicketID]; !ok {
		return util.NewNotFound("ticket", map[string]any{"ticket_id": ticket.TicketID})
	}
	t := *ticket
	s.tickets[ticket.TicketID] = &t
	return nil
}

// Len returns the number of stored tickets.
func (s *TicketStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tickets)
}
