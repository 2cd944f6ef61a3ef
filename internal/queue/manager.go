package queue

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tickit/guild-ticket-service/internal/observability"
	"github.com/tickit/guild-ticket-service/pkg/util"
)

// Handler executes one job. A nil return removes the job; a retryable
// error re-enqueues it at the tail of its topic with backoff.
type Handler func(ctx context.Context, job *Job) error

// Config tunes the dispatch loop.
type Config struct {
	TickInterval       time.Duration
	HandlerTimeout     time.Duration
	RetryBaseDelay     time.Duration
	DefaultMaxAttempts int
}

// Dependencies bundles manager collaborators.
type Dependencies struct {
	Status  StatusStore
	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// Manager owns the per-topic FIFO queues and handler bindings. All
// queue state is in memory; a restart discards pending and retrying
// jobs. Enqueue and dequeue never block on handler execution.
type Manager struct {
	cfg     Config
	status  StatusStore
	metrics *observability.Metrics
	logger  *zap.Logger

	hmu      sync.RWMutex
	handlers map[Topic]Handler

	qmu    sync.Mutex
	queues map[Topic]*topicQueue

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// topicQueue serializes execution within one topic: at most one job is
// in flight at a time, guarded by the topic's own mutex.
type topicQueue struct {
	mu       sync.Mutex
	jobs     []*Job
	inFlight bool
}

// NewManager constructs the queue manager with one FIFO per topic.
func NewManager(cfg Config, deps Dependencies) *Manager {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 30 * time.Second
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	if cfg.DefaultMaxAttempts <= 0 {
		cfg.DefaultMaxAttempts = 3
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		cfg:      cfg,
		status:   deps.Status,
		metrics:  deps.Metrics,
		logger:   logger,
		handlers: make(map[Topic]Handler),
		queues:   make(map[Topic]*topicQueue),
	}
	for _, topic := range Topics() {
		m.queues[topic] = &topicQueue{}
	}
	return m
}

// RegisterHandler binds the handler for a topic. Re-registration
// overwrites silently.
func (m *Manager) RegisterHandler(topic Topic, handler Handler) {
	m.hmu.Lock()
	defer m.hmu.Unlock()
	m.handlers[topic] = handler
	m.logger.Info("registered handler", zap.String("topic", string(topic)))
}

// Enqueue appends a job to its topic queue and returns immediately.
// Enqueuing against a topic without a registered handler is legal; the
// job waits until one appears.
func (m *Manager) Enqueue(topic Topic, payload any, opts EnqueueOptions) *Job {
	now := time.Now()
	job := &Job{
		ID:          newJobID(now),
		Topic:       topic,
		Payload:     payload,
		MaxAttempts: m.cfg.DefaultMaxAttempts,
		CreatedAt:   now,
		NextRunAt:   now,
	}
	if opts.MaxAttempts > 0 {
		job.MaxAttempts = opts.MaxAttempts
	}

	q := m.queue(topic)
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	depth := len(q.jobs)
	q.mu.Unlock()

	m.setStatus(job.ID, StatusPending)
	m.metrics.RecordJob(string(topic), "enqueued")
	m.logger.Info("job enqueued",
		zap.String("job_id", job.ID),
		zap.String("topic", string(topic)),
		zap.Int("queue_depth", depth))
	return job
}

// Pending returns the number of queued (not in-flight) jobs on a topic.
func (m *Manager) Pending(topic Topic) int {
	q := m.queue(topic)
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Start launches the dispatch loop.
func (m *Manager) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(1)
	go m.loop(ctx)
	m.logger.Info("queue dispatch loop started", zap.Duration("tick", m.cfg.TickInterval))
}

// Stop halts dispatch and waits for in-flight handlers to finish.
// Pending jobs are discarded with the process.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *Manager) loop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.dispatchDue()
		}
	}
}

// dispatchDue runs one tick: for every topic with a registered handler,
// no job in flight and a due job queued, hand exactly one job to its
// handler on a dedicated goroutine. A slow topic never delays the
// others.
func (m *Manager) dispatchDue() {
	now := time.Now()
	for _, topic := range Topics() {
		m.hmu.RLock()
		handler, ok := m.handlers[topic]
		m.hmu.RUnlock()
		if !ok {
			continue
		}

		q := m.queue(topic)
		q.mu.Lock()
		if q.inFlight {
			q.mu.Unlock()
			continue
		}
		job := popDue(q, now)
		if job != nil {
			q.inFlight = true
		}
		q.mu.Unlock()
		if job == nil {
			continue
		}

		m.wg.Add(1)
		go m.execute(q, job, handler)
	}
}

// popDue removes and returns the oldest job whose wake time has
// passed. Skipping jobs still backing off keeps a sleeping retry from
// starving fresh work behind it; never-failed jobs stay in FIFO order.
func popDue(q *topicQueue, now time.Time) *Job {
	for i, job := range q.jobs {
		if job.NextRunAt.After(now) {
			continue
		}
		q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
		return job
	}
	return nil
}

func (m *Manager) execute(q *topicQueue, job *Job, handler Handler) {
	defer m.wg.Done()
	defer func() {
		q.mu.Lock()
		q.inFlight = false
		q.mu.Unlock()
	}()

	m.setStatus(job.ID, StatusProcessing)

	// Handlers run under their own timeout, detached from the loop
	// context: a dequeued job runs to completion even during shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.HandlerTimeout)
	err := handler(ctx, job)
	cancel()

	if err == nil {
		m.setStatus(job.ID, StatusSucceeded)
		m.metrics.RecordJob(string(job.Topic), "succeeded")
		m.logger.Info("job completed",
			zap.String("job_id", job.ID),
			zap.String("topic", string(job.Topic)),
			zap.Int("attempts", job.Attempts))
		return
	}

	job.Attempts++
	switch {
	case !util.Retryable(err):
		m.setStatus(job.ID, StatusFailed)
		m.metrics.RecordJob(string(job.Topic), "dropped")
		m.logger.Error("job failed permanently",
			zap.String("job_id", job.ID),
			zap.String("topic", string(job.Topic)),
			zap.Error(err))
	case job.Attempts >= job.MaxAttempts:
		m.setStatus(job.ID, StatusFailed)
		m.metrics.RecordJob(string(job.Topic), "dropped")
		m.logger.Error("job dropped after exhausting attempts",
			zap.String("job_id", job.ID),
			zap.String("topic", string(job.Topic)),
			zap.Int("attempts", job.Attempts),
			zap.Error(err))
	default:
		job.NextRunAt = time.Now().Add(m.backoff(job.Attempts))
		q.mu.Lock()
		q.jobs = append(q.jobs, job)
		q.mu.Unlock()
		m.setStatus(job.ID, StatusPending)
		m.metrics.RecordJob(string(job.Topic), "retried")
		m.logger.Warn("job failed; retry scheduled",
			zap.String("job_id", job.ID),
			zap.String("topic", string(job.Topic)),
			zap.Int("attempts", job.Attempts),
			zap.Time("next_run_at", job.NextRunAt),
			zap.Error(err))
	}
}

// backoff doubles the delay with each attempt: base, 2*base, 4*base...
func (m *Manager) backoff(attempts int) time.Duration {
	delay := m.cfg.RetryBaseDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
	}
	return delay
}

// newJobID keeps the time-derived shape clients sort on while the
// random suffix rules out collisions within one nanosecond.
func newJobID(now time.Time) string {
	return strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString()[:8]
}

func (m *Manager) queue(topic Topic) *topicQueue {
	m.qmu.Lock()
	defer m.qmu.Unlock()
	q, ok := m.queues[topic]
	if !ok {
		q = &topicQueue{}
		m.queues[topic] = q
	}
	return q
}

func (m *Manager) setStatus(jobID string, status Status) {
	if m.status == nil {
		return
	}
	if err := m.status.Set(context.Background(), jobID, status); err != nil {
		m.logger.Warn("failed to record job status",
			zap.String("job_id", jobID),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}
