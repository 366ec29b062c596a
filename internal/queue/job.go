package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job is the envelope every queue message travels in.
type Job struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	Attempt    int             `json:"attempt"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// NewJob wraps payload for its first attempt.
func NewJob(jobType string, payload any) (Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("encode %s payload: %w", jobType, err)
	}
	return Job{
		ID:         uuid.New(),
		Type:       jobType,
		Attempt:    1,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the payload into v. Failures are permanent.
func (j Job) Decode(v any) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return Permanent(fmt.Errorf("decode %s job %s: %w", j.Type, j.ID, err))
	}
	return nil
}

// Handler processes one job. Returning an error schedules a retry unless the
// error is marked Permanent or the attempts are used up.
type Handler func(ctx context.Context, job Job) error

// Broker moves jobs between producers and a fixed pool of consumers per queue.
type Broker interface {
	Publish(ctx context.Context, queue string, job Job) error
	// Consume starts concurrency workers for queue; they stop when ctx is done.
	Consume(ctx context.Context, queue string, concurrency int, h Handler) error
	// Depth is the number of jobs waiting in queue.
	Depth(ctx context.Context, queue string) (int, error)
	Close() error
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// RetryPolicy bounds attempts and spaces them with exponential backoff.
type RetryPolicy struct {
	Attempts int
	Base     time.Duration
}

// DefaultRetry is 3 attempts, waiting 2s then 4s.
var DefaultRetry = RetryPolicy{Attempts: 3, Base: 2 * time.Second}

// Backoff is the wait after the given failed attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.Base << (attempt - 1)
}

// Retry reports whether a job that failed on attempt should run again.
func (p RetryPolicy) Retry(attempt int, err error) bool {
	return err != nil && !IsPermanent(err) && attempt < p.Attempts
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
