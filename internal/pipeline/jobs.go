// Package pipeline wires the feed reader, the classifier and the notifiers
// together over three broker queues.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/endorsenyc-backend/internal/errors"
	"github.com/unclebandit/endorsenyc-backend/internal/model"
	"github.com/unclebandit/endorsenyc-backend/internal/queue"
)

const (
	QueueFetch    = "endorse.fetch"
	QueueClassify = "endorse.classify"
	QueueNotify   = "endorse.notify"

	FetchConcurrency    = 5
	ClassifyConcurrency = 3
	NotifyConcurrency   = 2
)

// Job types.
const (
	JobFetchAll      = "fetch_all"
	JobFetchPriority = "fetch_priority"
	JobFetchFeed     = "fetch_feed"
	JobCleanup       = "cleanup"
	JobClassify      = "classify"
	JobNotify        = "notify"
)

// Notification types.
const (
	NotifyHighConfidence = "high_confidence"
	NotifyHumanReview    = "human_review_needed"
	NotifyNewEndorsement = "new_endorsement"
)

// Queues lists every queue the pipeline uses.
var Queues = []string{QueueFetch, QueueClassify, QueueNotify}

type FetchPayload struct {
	FeedID *uuid.UUID `json:"feed_id,omitempty"`
}

type ClassifyPayload struct {
	Items []model.FeedItem `json:"items"`
}

type Notification struct {
	Type          string     `json:"type"`
	Message       string     `json:"message"`
	SourceURL     string     `json:"source_url,omitempty"`
	Confidence    float64    `json:"confidence"`
	Candidates    []string   `json:"candidates,omitempty"`
	ReviewID      *uuid.UUID `json:"review_id,omitempty"`
	EndorsementID *uuid.UUID `json:"endorsement_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Producer publishes pipeline jobs. The broker may be attached later, once
// the connection is up; until then every enqueue fails with ErrQueueUnavailable.
type Producer struct {
	mu     sync.RWMutex
	broker queue.Broker
}

func NewProducer(b queue.Broker) *Producer {
	return &Producer{broker: b}
}

// SetBroker swaps the broker, e.g. after a reconnect. nil detaches it.
func (p *Producer) SetBroker(b queue.Broker) {
	p.mu.Lock()
	p.broker = b
	p.mu.Unlock()
}

func (p *Producer) Broker() queue.Broker {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.broker
}

func (p *Producer) enqueue(ctx context.Context, queueName, jobType string, payload any) (uuid.UUID, error) {
	b := p.Broker()
	if b == nil {
		return uuid.Nil, appErrors.ErrQueueUnavailable
	}
	job, err := queue.NewJob(jobType, payload)
	if err != nil {
		return uuid.Nil, err
	}
	if err := b.Publish(ctx, queueName, job); err != nil {
		return uuid.Nil, err
	}
	return job.ID, nil
}

// EnqueueFetch asks the worker to check feeds. jobType is JobFetchAll or JobFetchPriority.
func (p *Producer) EnqueueFetch(ctx context.Context, jobType string) (uuid.UUID, error) {
	return p.enqueue(ctx, QueueFetch, jobType, FetchPayload{})
}

// EnqueueFeed asks the worker to check a single feed.
func (p *Producer) EnqueueFeed(ctx context.Context, feedID uuid.UUID) (uuid.UUID, error) {
	return p.enqueue(ctx, QueueFetch, JobFetchFeed, FetchPayload{FeedID: &feedID})
}

func (p *Producer) EnqueueCleanup(ctx context.Context) (uuid.UUID, error) {
	return p.enqueue(ctx, QueueFetch, JobCleanup, struct{}{})
}

func (p *Producer) EnqueueClassify(ctx context.Context, items []model.FeedItem) (uuid.UUID, error) {
	return p.enqueue(ctx, QueueClassify, JobClassify, ClassifyPayload{Items: items})
}

func (p *Producer) EnqueueNotify(ctx context.Context, n Notification) (uuid.UUID, error) {
	return p.enqueue(ctx, QueueNotify, JobNotify, n)
}

// Depths reports the waiting jobs per queue.
func (p *Producer) Depths(ctx context.Context) (map[string]int, error) {
	b := p.Broker()
	if b == nil {
		return nil, appErrors.ErrQueueUnavailable
	}
	out := make(map[string]int, len(Queues))
	for _, q := range Queues {
		n, err := b.Depth(ctx, q)
		if err != nil {
			return nil, err
		}
		out[q] = n
	}
	return out, nil
}
