package queue

import "time"

// Topic names a job category and the handler that executes it.
type Topic string

const (
	TopicTicketCreation Topic = "ticket-creation"
	TopicTicketUpdate   Topic = "ticket-update"
	TopicTicketArchive  Topic = "ticket-archive"
)

// Topics lists every known topic.
func Topics() []Topic {
	return []Topic{TopicTicketCreation, TopicTicketUpdate, TopicTicketArchive}
}

// ParseTopic maps a wire string onto the closed topic set.
func ParseTopic(s string) (Topic, bool) {
	switch Topic(s) {
	case TopicTicketCreation, TopicTicketUpdate, TopicTicketArchive:
		return Topic(s), true
	}
	return "", false
}

// Job is a unit of deferred work. It is owned exclusively by the queue
// from enqueue until it is handed to a handler, and removed on success
// or once attempts are exhausted.
type Job struct {
	ID          string
	Topic       Topic
	Payload     any
	Attempts    int
	MaxAttempts int
	CreatedAt   time.Time
	// NextRunAt delays dispatch; retries push it forward exponentially.
	NextRunAt time.Time
}

// EnqueueOptions tunes a single enqueue call.
type EnqueueOptions struct {
	// MaxAttempts overrides the queue default when > 0.
	MaxAttempts int
}
