package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickit/guild-ticket-service/internal/observability"
	"github.com/tickit/guild-ticket-service/pkg/util"
)

func newTestManager(t *testing.T, status StatusStore) *Manager {
	t.Helper()
	m := NewManager(Config{
		TickInterval:       2 * time.Millisecond,
		HandlerTimeout:     time.Second,
		RetryBaseDelay:     10 * time.Millisecond,
		DefaultMaxAttempts: 3,
	}, Dependencies{Status: status})
	t.Cleanup(m.Stop)
	return m
}

// recorder collects handler completions in order.
type recorder struct {
	mu        sync.Mutex
	completed []string
}

func (r *recorder) add(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, id)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.completed...)
}

func TestFIFOOrderWithoutFailures(t *testing.T) {
	m := newTestManager(t, nil)
	rec := &recorder{}

	m.RegisterHandler(TopicTicketCreation, func(ctx context.Context, job *Job) error {
		rec.add(job.Payload.(string))
		return nil
	})

	var want []string
	for i := 0; i < 20; i++ {
		payload := fmt.Sprintf("job-%02d", i)
		want = append(want, payload)
		m.Enqueue(TopicTicketCreation, payload, EnqueueOptions{})
	}
	m.Start()

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == len(want)
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, want, rec.snapshot())
}

func TestTransientFailureEventuallySucceeds(t *testing.T) {
	metrics := observability.NewMetrics()
	m := NewManager(Config{
		TickInterval:       2 * time.Millisecond,
		HandlerTimeout:     time.Second,
		RetryBaseDelay:     10 * time.Millisecond,
		DefaultMaxAttempts: 3,
	}, Dependencies{Status: NewMemoryStatusStore(), Metrics: metrics})
	t.Cleanup(m.Stop)

	var mu sync.Mutex
	invocations := 0
	m.RegisterHandler(TopicTicketUpdate, func(ctx context.Context, job *Job) error {
		mu.Lock()
		defer mu.Unlock()
		invocations++
		if invocations < 3 {
			return util.NewStoreUnavailable(fmt.Errorf("flaky"))
		}
		return nil
	})

	job := m.Enqueue(TopicTicketUpdate, nil, EnqueueOptions{MaxAttempts: 3})
	m.Start()

	require.Eventually(t, func() bool {
		status, err := m.status.Get(context.Background(), job.ID)
		return err == nil && status == StatusSucceeded
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, invocations)
	assert.Equal(t, int64(1), metrics.JobCount(string(TopicTicketUpdate), "enqueued"))
	assert.Equal(t, int64(2), metrics.JobCount(string(TopicTicketUpdate), "retried"))
	assert.Equal(t, int64(1), metrics.JobCount(string(TopicTicketUpdate), "succeeded"))
}

func TestExhaustedJobIsDroppedAndNeverInvokedAgain(t *testing.T) {
	m := newTestManager(t, NewMemoryStatusStore())

	var mu sync.Mutex
	invocations := 0
	m.RegisterHandler(TopicTicketUpdate, func(ctx context.Context, job *Job) error {
		mu.Lock()
		invocations++
		mu.Unlock()
		return util.NewStoreUnavailable(fmt.Errorf("always down"))
	})

	job := m.Enqueue(TopicTicketUpdate, nil, EnqueueOptions{MaxAttempts: 2})
	m.Start()

	require.Eventually(t, func() bool {
		status, err := m.status.Get(context.Background(), job.ID)
		return err == nil && status == StatusFailed
	}, 2*time.Second, 5*time.Millisecond)

	// Give the loop a few more ticks to prove the job is gone.
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, invocations)
	assert.Equal(t, 0, m.Pending(TopicTicketUpdate))
}

func TestRetriedJobMovesToTail(t *testing.T) {
	m := newTestManager(t, nil)
	rec := &recorder{}

	var mu sync.Mutex
	aFailed := false
	m.RegisterHandler(TopicTicketArchive, func(ctx context.Context, job *Job) error {
		name := job.Payload.(string)
		mu.Lock()
		shouldFail := name == "A" && !aFailed
		if shouldFail {
			aFailed = true
		}
		mu.Unlock()
		if shouldFail {
			return util.NewStoreUnavailable(fmt.Errorf("first attempt of A fails"))
		}
		rec.add(name)
		return nil
	})

	m.Enqueue(TopicTicketArchive, "A", EnqueueOptions{})
	m.Enqueue(TopicTicketArchive, "B", EnqueueOptions{})
	m.Start()

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"B", "A"}, rec.snapshot())
}

func TestRetryHonorsBackoffDelay(t *testing.T) {
	m := NewManager(Config{
		TickInterval:       2 * time.Millisecond,
		HandlerTimeout:     time.Second,
		RetryBaseDelay:     60 * time.Millisecond,
		DefaultMaxAttempts: 3,
	}, Dependencies{})
	t.Cleanup(m.Stop)

	var mu sync.Mutex
	var firstFailure, retryStart time.Time
	done := make(chan struct{})
	m.RegisterHandler(TopicTicketCreation, func(ctx context.Context, job *Job) error {
		mu.Lock()
		defer mu.Unlock()
		if firstFailure.IsZero() {
			firstFailure = time.Now()
			return util.NewStoreUnavailable(fmt.Errorf("fail once"))
		}
		retryStart = time.Now()
		close(done)
		return nil
	})

	m.Enqueue(TopicTicketCreation, nil, EnqueueOptions{})
	m.Start()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("retry never ran")
	}

	mu.Lock()
	defer mu.Unlock()
	// The tick granularity can fire one interval early relative to the
	// recorded failure time, hence the small allowance.
	assert.GreaterOrEqual(t, retryStart.Sub(firstFailure), 50*time.Millisecond)
}

func TestEnqueueWithoutHandlerWaits(t *testing.T) {
	m := newTestManager(t, nil)
	rec := &recorder{}

	m.Enqueue(TopicTicketCreation, "waiting", EnqueueOptions{})
	m.Start()

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, m.Pending(TopicTicketCreation))
	assert.Empty(t, rec.snapshot())

	m.RegisterHandler(TopicTicketCreation, func(ctx context.Context, job *Job) error {
		rec.add(job.Payload.(string))
		return nil
	})

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"waiting"}, rec.snapshot())
}

func TestReRegistrationOverwritesSilently(t *testing.T) {
	m := newTestManager(t, nil)
	rec := &recorder{}

	m.RegisterHandler(TopicTicketCreation, func(ctx context.Context, job *Job) error {
		rec.add("old")
		return nil
	})
	m.RegisterHandler(TopicTicketCreation, func(ctx context.Context, job *Job) error {
		rec.add("new")
		return nil
	})

	m.Enqueue(TopicTicketCreation, nil, EnqueueOptions{})
	m.Start()

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"new"}, rec.snapshot())
}

func TestNonRetryableErrorDropsImmediately(t *testing.T) {
	m := newTestManager(t, NewMemoryStatusStore())

	var mu sync.Mutex
	invocations := 0
	m.RegisterHandler(TopicTicketUpdate, func(ctx context.Context, job *Job) error {
		mu.Lock()
		invocations++
		mu.Unlock()
		return util.NewNotFound("ticket", nil)
	})

	job := m.Enqueue(TopicTicketUpdate, nil, EnqueueOptions{MaxAttempts: 5})
	m.Start()

	require.Eventually(t, func() bool {
		status, err := m.status.Get(context.Background(), job.ID)
		return err == nil && status == StatusFailed
	}, 2*time.Second, 5*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, invocations)
}

func TestHandlerTimeoutFeedsRetryPath(t *testing.T) {
	m := NewManager(Config{
		TickInterval:       2 * time.Millisecond,
		HandlerTimeout:     15 * time.Millisecond,
		RetryBaseDelay:     5 * time.Millisecond,
		DefaultMaxAttempts: 3,
	}, Dependencies{Status: NewMemoryStatusStore()})
	t.Cleanup(m.Stop)

	var mu sync.Mutex
	invocations := 0
	m.RegisterHandler(TopicTicketArchive, func(ctx context.Context, job *Job) error {
		mu.Lock()
		invocations++
		hang := invocations == 1
		mu.Unlock()
		if hang {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})

	job := m.Enqueue(TopicTicketArchive, nil, EnqueueOptions{})
	m.Start()

	require.Eventually(t, func() bool {
		status, err := m.status.Get(context.Background(), job.ID)
		return err == nil && status == StatusSucceeded
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, invocations)
}

func TestSameTopicRunsSerially(t *testing.T) {
	m := newTestManager(t, nil)

	var mu sync.Mutex
	active, maxActive, finished := 0, 0, 0
	m.RegisterHandler(TopicTicketCreation, func(ctx context.Context, job *Job) error {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		active--
		finished++
		mu.Unlock()
		return nil
	})

	for i := 0; i < 5; i++ {
		m.Enqueue(TopicTicketCreation, i, EnqueueOptions{})
	}
	m.Start()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return finished == 5
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, maxActive)
}

func TestDifferentTopicsRunConcurrently(t *testing.T) {
	m := newTestManager(t, nil)

	release := make(chan struct{})
	var entered sync.WaitGroup
	entered.Add(2)

	blocker := func(ctx context.Context, job *Job) error {
		entered.Done()
		<-release
		return nil
	}
	m.RegisterHandler(TopicTicketCreation, blocker)
	m.RegisterHandler(TopicTicketArchive, blocker)

	m.Enqueue(TopicTicketCreation, nil, EnqueueOptions{})
	m.Enqueue(TopicTicketArchive, nil, EnqueueOptions{})
	m.Start()

	waitCh := make(chan struct{})
	go func() {
		entered.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		// Both handlers are in flight at once while neither released.
	case <-time.After(2 * time.Second):
		t.Fatal("topics did not dispatch independently")
	}
	close(release)
}

func TestStatusTransitionsObservable(t *testing.T) {
	store := NewMemoryStatusStore()
	m := newTestManager(t, store)

	job := m.Enqueue(TopicTicketCreation, nil, EnqueueOptions{})

	status, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status)

	m.RegisterHandler(TopicTicketCreation, func(ctx context.Context, job *Job) error {
		return nil
	})
	m.Start()

	require.Eventually(t, func() bool {
		status, err := store.Get(context.Background(), job.ID)
		return err == nil && status == StatusSucceeded
	}, 2*time.Second, 5*time.Millisecond)

	_, err = store.Get(context.Background(), "no-such-job")
	assert.Error(t, err)
}

func TestEnqueueMintsUniqueJobIDs(t *testing.T) {
	m := newTestManager(t, nil)

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		job := m.Enqueue(TopicTicketCreation, nil, EnqueueOptions{})
		require.False(t, seen[job.ID], "job id %q minted twice", job.ID)
		seen[job.ID] = true
	}
}

func TestParseTopic(t *testing.T) {
	topic, ok := ParseTopic("ticket-creation")
	assert.True(t, ok)
	assert.Equal(t, TopicTicketCreation, topic)

	_, ok = ParseTopic("ticket-delete")
	assert.False(t, ok)
}
