package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRetryCount(t *testing.T) {
	assert.Equal(t, 0, retryCount(nil))
	assert.Equal(t, 0, retryCount(amqp.Table{retryHeader: "2"}))
	assert.Equal(t, 2, retryCount(amqp.Table{retryHeader: int32(2)}))
	assert.Equal(t, 1, retryCount(amqp.Table{retryHeader: int64(1)}))
	assert.Equal(t, 3, retryCount(amqp.Table{retryHeader: 3}))
}

type fakeSession struct {
	closed chan *amqp.Error
	once   sync.Once
}

func newFakeSession() *fakeSession {
	return &fakeSession{closed: make(chan *amqp.Error, 1)}
}

func (s *fakeSession) Closed() <-chan *amqp.Error { return s.closed }

func (s *fakeSession) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func TestKeepConnected_RetriesFailedSetup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var sessions []*fakeSession
	dial := func() (*fakeSession, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(sessions) == 0 {
			sessions = append(sessions, nil)
			return nil, errors.New("connection refused")
		}
		s := newFakeSession()
		sessions = append(sessions, s)
		return s, nil
	}

	setups := 0
	disconnects := 0
	ready := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		keepConnected(ctx, dial, time.Millisecond, zap.NewNop(),
			func(context.Context, *fakeSession) error {
				setups++
				if setups == 1 {
					return errors.New("declare failed")
				}
				close(ready)
				return nil
			},
			func() { disconnects++ })
	}()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("session was not rebuilt after a failed setup")
	}
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, sessions, 3)
	_, open := <-sessions[1].closed
	assert.False(t, open, "failed session must be closed")
	assert.Equal(t, 2, setups)
	assert.Equal(t, 2, disconnects)
}

func TestKeepConnected_RedialsAfterDrop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dialed := make(chan *fakeSession, 4)
	dial := func() (*fakeSession, error) {
		s := newFakeSession()
		dialed <- s
		return s, nil
	}

	done := make(chan struct{})
	var connCtxs []context.Context
	var mu sync.Mutex
	go func() {
		defer close(done)
		keepConnected(ctx, dial, time.Millisecond, zap.NewNop(),
			func(c context.Context, _ *fakeSession) error {
				mu.Lock()
				connCtxs = append(connCtxs, c)
				mu.Unlock()
				return nil
			}, nil)
	}()

	first := <-dialed
	first.closed <- &amqp.Error{Code: 320, Reason: "CONNECTION_FORCED"}
	<-dialed
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, connCtxs, 2)
	assert.Error(t, connCtxs[0].Err())
}
