package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/endorsenyc-backend/internal/model"
	"github.com/unclebandit/endorsenyc-backend/internal/pipeline"
	"github.com/unclebandit/endorsenyc-backend/internal/repository"
)

type SystemStatus struct {
	Feeds      *model.FeedStats     `json:"rss_feeds"`
	Endorsers  *model.EndorserStats `json:"endorsers"`
	Queues     map[string]int       `json:"queues"`
	QueueError string               `json:"queue_error,omitempty"`
	Timestamp  time.Time            `json:"timestamp"`
}

type StatusService struct {
	Feeds     repository.FeedRepositoryInterface
	Endorsers repository.EndorserRepositoryInterface
	Jobs      *pipeline.Producer
	Log       *zap.Logger
	Now       func() time.Time
}

// Status collects feed and endorser counters plus queue depths. A broker
// that is down is reported in QueueError rather than failing the call.
func (s *StatusService) Status(ctx context.Context) (*SystemStatus, error) {
	feeds, err := s.Feeds.Stats(ctx)
	if err != nil {
		return nil, err
	}
	endorsers, err := s.Endorsers.Stats(ctx)
	if err != nil {
		return nil, err
	}

	st := &SystemStatus{Feeds: feeds, Endorsers: endorsers, Queues: map[string]int{}, Timestamp: time.Now()}
	if s.Now != nil {
		st.Timestamp = s.Now()
	}
	depths, err := s.Jobs.Depths(ctx)
	if err != nil {
		st.QueueError = err.Error()
		if s.Log != nil {
			s.Log.Warn("⚠️ queue depths unavailable", zap.Error(err))
		}
		return st, nil
	}
	st.Queues = depths
	return st, nil
}
