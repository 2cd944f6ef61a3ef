package tenant

import (
	"context"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"github.com/tickit/guild-ticket-service/internal/crypto"
	"github.com/tickit/guild-ticket-service/internal/domain"
	"github.com/tickit/guild-ticket-service/internal/repository"
	"github.com/tickit/guild-ticket-service/pkg/util"
)

// Handle is a resolved, ready-to-use view of one guild's ticket store.
type Handle struct {
	GuildID string
	Tickets repository.TicketRepository

	close func()
}

// PlatformStoreFactory yields a ticket store on the shared platform
// database, scoped to one guild.
type PlatformStoreFactory func(guildID string) repository.TicketRepository

// SelfHostedOpener dials a guild-operated database and returns the
// ticket store plus a closer for the underlying pool.
type SelfHostedOpener func(ctx context.Context, guildID, dsn string) (repository.TicketRepository, func(), error)

// Dependencies bundles resolver collaborators.
type Dependencies struct {
	Guilds         repository.GuildRepository
	Platform       PlatformStoreFactory
	OpenSelfHosted SelfHostedOpener
	Cipher         *crypto.Cipher
	Logger         *zap.Logger
}

// Resolver maps guild ids to store handles. Handles are created lazily
// on first reference and cached for the process lifetime; concurrent
// first resolutions of the same guild share a single initialization.
type Resolver struct {
	deps Dependencies

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	once   sync.Once
	handle *Handle
	err    error
}

// NewResolver constructs the resolver.
func NewResolver(deps Dependencies) *Resolver {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Resolver{deps: deps, entries: make(map[string]*entry)}
}

// Resolve returns the cached handle for guildID, establishing it on
// first use. Failed resolutions are not cached, so a later call can
// succeed once the store is reachable again.
func (r *Resolver) Resolve(ctx context.Context, guildID string) (*Handle, error) {
	r.mu.Lock()
	e, ok := r.entries[guildID]
	if !ok {
		e = &entry{}
		r.entries[guildID] = e
	}
	r.mu.Unlock()

	e.once.Do(func() {
		e.handle, e.err = r.open(ctx, guildID)
	})

	if e.err != nil {
		r.mu.Lock()
		if r.entries[guildID] == e {
			delete(r.entries, guildID)
		}
		r.mu.Unlock()
		return nil, e.err
	}
	return e.handle, nil
}

// Close releases every self-hosted pool the resolver opened.
func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.handle != nil && e.handle.close != nil {
			e.handle.close()
		}
	}
	r.entries = make(map[string]*entry)
}

func (r *Resolver) open(ctx context.Context, guildID string) (*Handle, error) {
	guild, err := r.deps.Guilds.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}

	cfg := guild.Config
	if cfg.Hosting == domain.HostingSelf && cfg.SelfHosting != nil && cfg.SelfHosting.ConnString != "" {
		dsn, err := r.selfHostedDSN(cfg.SelfHosting)
		if err != nil {
			return nil, err
		}
		store, closeFn, err := r.deps.OpenSelfHosted(ctx, guildID, dsn)
		if err != nil {
			return nil, util.NewStoreUnavailable(err)
		}
		r.deps.Logger.Info("opened self-hosted store", zap.String("guild_id", guildID))
		return &Handle{GuildID: guildID, Tickets: store, close: closeFn}, nil
	}

	return &Handle{GuildID: guildID, Tickets: r.deps.Platform(guildID)}, nil
}

// selfHostedDSN injects the stored credentials into the connection
// string, decrypting the password on the way.
func (r *Resolver) selfHostedDSN(sh *domain.SelfHostingConfig) (string, error) {
	if sh.Username == "" {
		return sh.ConnString, nil
	}

	password := sh.Password
	if password != "" && r.deps.Cipher != nil {
		decrypted, err := r.deps.Cipher.Decrypt(password)
		if err != nil {
			return "", util.NewInternalError(err)
		}
		password = decrypted
	}

	u, err := url.Parse(sh.ConnString)
	if err != nil {
		return "", util.NewValidationError("invalid self-hosting connection string", nil)
	}
	u.User = url.UserPassword(sh.Username, password)
	return u.String(), nil
}
