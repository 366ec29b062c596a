package queue

import (
	"context"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// session is a live broker connection as seen by the reconnect loop.
type session interface {
	Closed() <-chan *amqp.Error
	Close() error
}

// KeepConnected dials RabbitMQ until it answers and hands the broker to
// onConnect together with a context that ends when the connection drops.
// When onConnect fails the connection is closed and dialed again. After a
// drop onDisconnect runs and dialing starts again. It returns once ctx is done.
func KeepConnected(ctx context.Context, url string, retry RetryPolicy, delay time.Duration, log *zap.Logger,
	onConnect func(context.Context, *AMQPBroker) error, onDisconnect func()) {
	if log == nil {
		log = zap.NewNop()
	}
	dial := func() (*AMQPBroker, error) { return DialAMQP(url, retry, log) }
	keepConnected(ctx, dial, delay, log, onConnect, onDisconnect)
}

func keepConnected[S session](ctx context.Context, dial func() (S, error), delay time.Duration, log *zap.Logger,
	onConnect func(context.Context, S) error, onDisconnect func()) {
	disconnect := func() {
		if onDisconnect != nil {
			onDisconnect()
		}
	}
	for {
		s, err := dial()
		if err != nil {
			log.Warn("⚠️ RabbitMQ not reachable, retrying", zap.Error(err), zap.Duration("delay", delay))
			if sleep(ctx, delay) != nil {
				return
			}
			continue
		}

		closed := s.Closed()
		connCtx, cancel := context.WithCancel(ctx)
		log.Info("✅ Connected to RabbitMQ")
		if err := onConnect(connCtx, s); err != nil {
			log.Error("❌ RabbitMQ session setup failed, reconnecting", zap.Error(err), zap.Duration("delay", delay))
			cancel()
			disconnect()
			s.Close()
			if sleep(ctx, delay) != nil {
				return
			}
			continue
		}

		select {
		case <-ctx.Done():
			cancel()
			disconnect()
			s.Close()
			return
		case amqpErr := <-closed:
			cancel()
			log.Warn("⚠️ RabbitMQ connection lost", zap.Any("reason", amqpErr))
			disconnect()
		}
	}
}
