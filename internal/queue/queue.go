package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/endorsenyc-backend/internal/metrics"
)

const defaultBuffer = 1024

// MemoryBroker is an in-process Broker with the same retry semantics as the
// AMQP one. Jobs are lost when the process exits.
type MemoryBroker struct {
	mu     sync.Mutex
	queues map[string]chan Job
	retry  RetryPolicy
	log    *zap.Logger
	wg     sync.WaitGroup
	closed bool
}

func NewMemoryBroker(retry RetryPolicy, log *zap.Logger) *MemoryBroker {
	if log == nil {
		log = zap.NewNop()
	}
	return &MemoryBroker{
		queues: make(map[string]chan Job),
		retry:  retry,
		log:    log,
	}
}

func (b *MemoryBroker) queue(name string) (chan Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("broker closed")
	}
	q, ok := b.queues[name]
	if !ok {
		q = make(chan Job, defaultBuffer)
		b.queues[name] = q
	}
	return q, nil
}

func (b *MemoryBroker) Publish(ctx context.Context, queue string, job Job) error {
	q, err := b.queue(queue)
	if err != nil {
		return err
	}
	select {
	case q <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("queue %s is full", queue)
	}
}

func (b *MemoryBroker) Consume(ctx context.Context, queue string, concurrency int, h Handler) error {
	q, err := b.queue(queue)
	if err != nil {
		return err
	}
	if concurrency < 1 {
		concurrency = 1
	}
	for i := 0; i < concurrency; i++ {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-q:
					b.process(ctx, queue, job, h)
				}
			}
		}()
	}
	return nil
}

// process runs h and schedules a delayed re-publish on retriable failure.
func (b *MemoryBroker) process(ctx context.Context, queue string, job Job, h Handler) {
	start := time.Now()
	err := h(ctx, job)
	if err == nil {
		metrics.RecordJob(queue, "ok", time.Since(start).Seconds())
		return
	}

	if !b.retry.Retry(job.Attempt, err) {
		metrics.RecordJob(queue, "failed", time.Since(start).Seconds())
		b.log.Error("❌ job permanently failed",
			zap.String("queue", queue), zap.String("job_id", job.ID.String()),
			zap.Int("attempt", job.Attempt), zap.Error(err))
		return
	}

	metrics.RecordJob(queue, "retry", time.Since(start).Seconds())
	delay := b.retry.Backoff(job.Attempt)
	b.log.Warn("⚠️ job failed, retrying",
		zap.String("queue", queue), zap.String("job_id", job.ID.String()),
		zap.Int("attempt", job.Attempt), zap.Duration("backoff", delay), zap.Error(err))

	job.Attempt++
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if sleep(ctx, delay) != nil {
			return
		}
		if err := b.Publish(ctx, queue, job); err != nil {
			b.log.Error("could not requeue job", zap.String("job_id", job.ID.String()), zap.Error(err))
		}
	}()
}

func (b *MemoryBroker) Depth(_ context.Context, queue string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues[queue]), nil
}

// Close stops accepting jobs and waits for running workers; cancel the
// consumers' context first.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.wg.Wait()
	return nil
}
