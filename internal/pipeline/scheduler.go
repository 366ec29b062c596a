package pipeline

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Recurring triggers.
const (
	SpecAllFeeds      = "*/15 * * * *"
	SpecPriorityFeeds = "*/5 * * * *"
	SpecCleanup       = "0 2 * * *"
)

// Scheduler publishes the recurring fetch and cleanup jobs.
type Scheduler struct {
	cron     *cron.Cron
	producer *Producer
	log      *zap.Logger
}

func NewScheduler(p *Producer, log *zap.Logger) (*Scheduler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scheduler{cron: cron.New(), producer: p, log: log}
	entries := []struct {
		spec string
		name string
		run  func(context.Context) error
	}{
		{SpecAllFeeds, JobFetchAll, func(ctx context.Context) error {
			_, err := p.EnqueueFetch(ctx, JobFetchAll)
			return err
		}},
		{SpecPriorityFeeds, JobFetchPriority, func(ctx context.Context) error {
			_, err := p.EnqueueFetch(ctx, JobFetchPriority)
			return err
		}},
		{SpecCleanup, JobCleanup, func(ctx context.Context) error {
			_, err := p.EnqueueCleanup(ctx)
			return err
		}},
	}
	for _, e := range entries {
		if _, err := s.cron.AddFunc(e.spec, s.trigger(e.name, e.run)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) trigger(name string, run func(context.Context) error) func() {
	return func() {
		if err := run(context.Background()); err != nil {
			s.log.Error("❌ scheduled job not enqueued", zap.String("job", name), zap.Error(err))
			return
		}
		s.log.Info("⏰ scheduled job enqueued", zap.String("job", name))
	}
}

// Entries is the number of registered triggers.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the triggers and waits for a running one to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
