package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/unclebandit/endorsenyc-backend/internal/metrics"
)

const retryHeader = "x-retry-count"

// AMQPBroker runs queues on RabbitMQ: durable queues, persistent messages and
// manual acks. Retries are re-published with an x-retry-count header.
type AMQPBroker struct {
	conn      *amqp.Connection
	mu        sync.Mutex
	pub       *amqp.Channel
	pubClosed chan *amqp.Error
	retry     RetryPolicy
	log       *zap.Logger
	wg        sync.WaitGroup
}

// DialAMQP connects to url and opens the publishing channel.
func DialAMQP(url string, retry RetryPolicy, log *zap.Logger) (*AMQPBroker, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	b := &AMQPBroker{conn: conn, retry: retry, log: log}
	if err := b.openPublisher(); err != nil {
		conn.Close()
		return nil, err
	}
	return b, nil
}

func (b *AMQPBroker) openPublisher() error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	b.pub = ch
	b.pubClosed = ch.NotifyClose(make(chan *amqp.Error, 1))
	return nil
}

// publisher returns the publishing channel, reopening it after a channel-level
// error such as a failed declare. Callers hold b.mu.
func (b *AMQPBroker) publisher() (*amqp.Channel, error) {
	select {
	case amqpErr := <-b.pubClosed:
		b.log.Warn("⚠️ publish channel closed, reopening", zap.Any("reason", amqpErr))
		if err := b.openPublisher(); err != nil {
			return nil, err
		}
	default:
	}
	return b.pub, nil
}

// Closed is signalled when the connection drops.
func (b *AMQPBroker) Closed() <-chan *amqp.Error {
	return b.conn.NotifyClose(make(chan *amqp.Error, 1))
}

func declare(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
}

func (b *AMQPBroker) Publish(_ context.Context, queue string, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	ch, err := b.publisher()
	if err != nil {
		return err
	}
	if _, err := declare(ch, queue); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return ch.Publish("", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID.String(),
		Type:         job.Type,
		Timestamp:    job.EnqueuedAt,
		Headers:      amqp.Table{retryHeader: int32(job.Attempt - 1)},
		Body:         body,
	})
}

func (b *AMQPBroker) Consume(ctx context.Context, queue string, concurrency int, h Handler) error {
	if concurrency < 1 {
		concurrency = 1
	}
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.Qos(concurrency, 0, false); err != nil {
		ch.Close()
		return fmt.Errorf("set prefetch: %w", err)
	}
	q, err := declare(ch, queue)
	if err != nil {
		ch.Close()
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	msgs, err := ch.Consume(
		q.Name,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		return fmt.Errorf("register consumer: %w", err)
	}

	// A consumer channel that dies while the connection stays up would leave
	// the queue without workers; drop the connection so the session is rebuilt.
	chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		select {
		case <-ctx.Done():
			ch.Close()
		case amqpErr := <-chClosed:
			if amqpErr != nil {
				b.log.Error("❌ consumer channel closed, resetting connection",
					zap.String("queue", queue), zap.Any("reason", amqpErr))
				b.conn.Close()
			}
		}
	}()

	for i := 0; i < concurrency; i++ {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			for d := range msgs {
				b.deliver(ctx, queue, d, h)
			}
		}()
	}
	return nil
}

func (b *AMQPBroker) deliver(ctx context.Context, queue string, d amqp.Delivery, h Handler) {
	var job Job
	if err := json.Unmarshal(d.Body, &job); err != nil {
		b.log.Error("invalid job body", zap.String("queue", queue), zap.Error(err))
		d.Ack(false)
		return
	}
	job.Attempt = retryCount(d.Headers) + 1

	start := time.Now()
	err := h(ctx, job)
	switch {
	case err == nil:
		metrics.RecordJob(queue, "ok", time.Since(start).Seconds())
		d.Ack(false)
	case !b.retry.Retry(job.Attempt, err):
		metrics.RecordJob(queue, "failed", time.Since(start).Seconds())
		b.log.Error("❌ job permanently failed",
			zap.String("queue", queue), zap.String("job_id", job.ID.String()),
			zap.Int("attempt", job.Attempt), zap.Error(err))
		d.Ack(false)
	default:
		metrics.RecordJob(queue, "retry", time.Since(start).Seconds())
		delay := b.retry.Backoff(job.Attempt)
		b.log.Warn("⚠️ job failed, retrying",
			zap.String("queue", queue), zap.String("job_id", job.ID.String()),
			zap.Int("attempt", job.Attempt), zap.Duration("backoff", delay), zap.Error(err))
		if sleep(ctx, delay) != nil {
			d.Nack(false, true)
			return
		}
		job.Attempt++
		if perr := b.Publish(ctx, queue, job); perr != nil {
			b.log.Error("could not requeue job", zap.String("job_id", job.ID.String()), zap.Error(perr))
			d.Nack(false, true)
			return
		}
		d.Ack(false)
	}
}

// retryCount reads x-retry-count whatever integer type the server hands back.
func retryCount(h amqp.Table) int {
	switch v := h[retryHeader].(type) {
	case int:
		return v
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	default:
		return 0
	}
}

func (b *AMQPBroker) Depth(_ context.Context, queue string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, err := b.publisher()
	if err != nil {
		return 0, err
	}
	q, err := declare(ch, queue)
	if err != nil {
		return 0, err
	}
	return q.Messages, nil
}

func (b *AMQPBroker) Close() error {
	b.mu.Lock()
	b.pub.Close()
	b.mu.Unlock()
	err := b.conn.Close()
	b.wg.Wait()
	return err
}
