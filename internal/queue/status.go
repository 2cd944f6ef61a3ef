package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tickit/guild-ticket-service/pkg/util"
)

// Status is the externally observable state of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// StatusStore records job status transitions so callers can poll the
// outcome of fire-and-forget mutations.
type StatusStore interface {
	Set(ctx context.Context, jobID string, status Status) error
	Get(ctx context.Context, jobID string) (Status, error)
}

// MemoryStatusStore is the in-process default.
type MemoryStatusStore struct {
	mu       sync.RWMutex
	statuses map[string]Status
}

// NewMemoryStatusStore initializes the store.
func NewMemoryStatusStore() *MemoryStatusStore {
	return &MemoryStatusStore{statuses: make(map[string]Status)}
}

func (s *MemoryStatusStore) Set(ctx context.Context, jobID string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[jobID] = status
	return nil
}

func (s *MemoryStatusStore) Get(ctx context.Context, jobID string) (Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.statuses[jobID]
	if !ok {
		return "", util.NewNotFound("job", map[string]any{"job_id": jobID})
	}
	return status, nil
}

// RedisStatusStore keeps statuses in Redis so they survive a restart
// even though pending queue state does not.
type RedisStatusStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStatusStore builds a store with the given retention.
func NewRedisStatusStore(client *redis.Client, ttl time.Duration) *RedisStatusStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStatusStore{client: client, ttl: ttl}
}

func (s *RedisStatusStore) Set(ctx context.Context, jobID string, status Status) error {
	if err := s.client.Set(ctx, statusKey(jobID), string(status), s.ttl).Err(); err != nil {
		return util.NewStoreUnavailable(err)
	}
	return nil
}

func (s *RedisStatusStore) Get(ctx context.Context, jobID string) (Status, error) {
	val, err := s.client.Get(ctx, statusKey(jobID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", util.NewNotFound("job", map[string]any{"job_id": jobID})
	}
	if err != nil {
		return "", util.NewStoreUnavailable(err)
	}
	return Status(val), nil
}

func statusKey(jobID string) string {
	return "job:status:" + jobID
}
