package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unclebandit/endorsenyc-backend/internal/classifier"
	"github.com/unclebandit/endorsenyc-backend/internal/feed"
	"github.com/unclebandit/endorsenyc-backend/internal/metrics"
	"github.com/unclebandit/endorsenyc-backend/internal/model"
	"github.com/unclebandit/endorsenyc-backend/internal/queue"
)

const (
	classifyBatchSize      = 25
	DefaultReviewRetention = 7 * 24 * time.Hour
)

type FeedLister interface {
	ListActive(ctx context.Context) ([]model.Feed, error)
	ListPriority(ctx context.Context) ([]model.Feed, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Feed, error)
}

// MonitorSource supplies generated feeds that are checked alongside the stored ones.
type MonitorSource interface {
	MonitorFeeds(ctx context.Context) ([]model.Feed, error)
}

type FeedFetcher interface {
	FetchAll(ctx context.Context, feeds []model.Feed) []model.FeedItem
}

type ReviewStore interface {
	Create(ctx context.Context, rc *model.ReviewCandidate) error
	DeleteReviewedBefore(ctx context.Context, before time.Time) (int64, error)
}

// Approver may turn a stored review item into an endorsement; nil, nil means it did not.
type Approver interface {
	AutoApprove(ctx context.Context, rc *model.ReviewCandidate) (*model.Endorsement, error)
}

// Dispatcher consumes the three pipeline queues: fetch → classify → notify.
type Dispatcher struct {
	*Producer
	Feeds      FeedLister
	Monitors   MonitorSource
	Reader     FeedFetcher
	Seen       feed.SeenStore
	Classifier *classifier.Classifier
	Reviews    ReviewStore
	Approver   Approver
	Notifier   Notifier
	Retention  time.Duration
	Log        *zap.Logger
	Now        func() time.Time
}

// Start registers the consumers on the producer's broker.
func (d *Dispatcher) Start(ctx context.Context) error {
	b := d.Broker()
	if b == nil {
		return fmt.Errorf("dispatcher: no broker")
	}
	consumers := []struct {
		queue       string
		concurrency int
		handler     queue.Handler
	}{
		{QueueFetch, FetchConcurrency, d.handleFetch},
		{QueueClassify, ClassifyConcurrency, d.handleClassify},
		{QueueNotify, NotifyConcurrency, d.handleNotify},
	}
	for _, c := range consumers {
		if err := b.Consume(ctx, c.queue, c.concurrency, c.handler); err != nil {
			return fmt.Errorf("consume %s: %w", c.queue, err)
		}
		d.log().Info("👷 consumer started", zap.String("queue", c.queue), zap.Int("concurrency", c.concurrency))
	}
	return nil
}

func (d *Dispatcher) log() *zap.Logger {
	if d.Log == nil {
		return zap.NewNop()
	}
	return d.Log
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Dispatcher) handleFetch(ctx context.Context, job queue.Job) error {
	var p FetchPayload
	if err := job.Decode(&p); err != nil {
		return err
	}

	var feeds []model.Feed
	var err error
	switch job.Type {
	case JobFetchAll:
		feeds, err = d.Feeds.ListActive(ctx)
	case JobFetchPriority:
		feeds, err = d.Feeds.ListPriority(ctx)
	case JobFetchFeed:
		if p.FeedID == nil {
			return queue.Permanent(fmt.Errorf("fetch_feed job %s without feed_id", job.ID))
		}
		var f *model.Feed
		if f, err = d.Feeds.GetByID(ctx, *p.FeedID); err == nil {
			feeds = []model.Feed{*f}
		}
	case JobCleanup:
		return d.cleanup(ctx)
	default:
		return queue.Permanent(fmt.Errorf("unknown fetch job type %q", job.Type))
	}
	if err != nil {
		return fmt.Errorf("load feeds: %w", err)
	}
	if job.Type == JobFetchAll || job.Type == JobFetchPriority {
		feeds = append(feeds, d.monitorFeeds(ctx, job.Type == JobFetchPriority)...)
	}

	items := d.Reader.FetchAll(ctx, feeds)
	fresh := feed.Unseen(ctx, d.Seen, items, d.log())
	d.log().Info("📰 feeds checked",
		zap.String("job", job.Type), zap.Int("feeds", len(feeds)),
		zap.Int("items", len(items)), zap.Int("new", len(fresh)))

	for start := 0; start < len(fresh); start += classifyBatchSize {
		end := min(start+classifyBatchSize, len(fresh))
		if _, err := d.EnqueueClassify(ctx, fresh[start:end]); err != nil {
			// Unsent batches must stay eligible for the retried fetch.
			rest := fresh[start:]
			d.log().Error("❌ could not enqueue classification", zap.Int("items", len(rest)), zap.Error(err))
			if rerr := feed.Release(ctx, d.Seen, rest); rerr != nil {
				d.log().Warn("⚠️ could not release seen items", zap.Error(rerr))
			}
			return fmt.Errorf("enqueue classification: %w", err)
		}
	}
	return nil
}

// monitorFeeds never fails the fetch; the stored feeds are still checked.
func (d *Dispatcher) monitorFeeds(ctx context.Context, priorityOnly bool) []model.Feed {
	if d.Monitors == nil {
		return nil
	}
	generated, err := d.Monitors.MonitorFeeds(ctx)
	if err != nil {
		d.log().Warn("⚠️ could not build endorser monitoring feeds", zap.Error(err))
		return nil
	}
	if !priorityOnly {
		return generated
	}
	out := generated[:0]
	for _, f := range generated {
		if f.IsPriority() {
			out = append(out, f)
		}
	}
	return out
}

func (d *Dispatcher) cleanup(ctx context.Context) error {
	retention := d.Retention
	if retention <= 0 {
		retention = DefaultReviewRetention
	}
	n, err := d.Reviews.DeleteReviewedBefore(ctx, d.now().Add(-retention))
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	d.log().Info("🧹 cleanup finished", zap.Int64("review_items_deleted", n))
	return nil
}

func (d *Dispatcher) handleClassify(ctx context.Context, job queue.Job) error {
	var p ClassifyPayload
	if err := job.Decode(&p); err != nil {
		return err
	}

	stored := 0
	for _, item := range p.Items {
		rc, ok := d.classify(item)
		if !ok {
			continue
		}
		if err := d.Reviews.Create(ctx, rc); err != nil {
			d.log().Error("⚠️ failed to store review item", zap.String("link", item.Link), zap.Error(err))
			continue
		}
		stored++

		for _, n := range d.notificationsFor(ctx, rc) {
			if _, err := d.EnqueueNotify(ctx, n); err != nil {
				d.log().Error("⚠️ failed to enqueue notification", zap.String("type", n.Type), zap.Error(err))
			}
		}
	}
	d.log().Info("🔎 classified batch", zap.Int("items", len(p.Items)), zap.Int("candidates", stored))
	return nil
}

// classify scores a feed item; items naming no candidate are dropped.
func (d *Dispatcher) classify(item model.FeedItem) (*model.ReviewCandidate, bool) {
	res := d.Classifier.Classify(classifier.Input{
		Text:       item.Text(),
		SourceURL:  item.Link,
		SourceType: model.SourceWebsite,
		Author:     item.Author,
	})
	metrics.ClassificationConfidence.Observe(res.Confidence)
	if len(res.CandidateMentions) == 0 {
		return nil, false
	}
	return &model.ReviewCandidate{
		SourceURL:           res.SourceURL,
		SourceType:          res.SourceType,
		SourceTitle:         item.Title,
		RawText:             res.RawText,
		Author:              item.Author,
		CandidateMentions:   res.CandidateMentions,
		Confidence:          res.Confidence,
		EndorsementType:     res.EndorsementType,
		Sentiment:           res.Sentiment,
		RequiresHumanReview: res.RequiresHumanReview,
		Reasoning:           res.Reasoning,
		Status:              model.ReviewPending,
	}, true
}

func (d *Dispatcher) notificationsFor(ctx context.Context, rc *model.ReviewCandidate) []Notification {
	base := Notification{
		SourceURL:  rc.SourceURL,
		Confidence: rc.Confidence,
		Candidates: rc.CandidateMentions,
		ReviewID:   &rc.ID,
		CreatedAt:  d.now(),
	}
	var out []Notification

	if d.Approver != nil {
		e, err := d.Approver.AutoApprove(ctx, rc)
		if err != nil {
			d.log().Error("⚠️ auto-approval failed", zap.String("review_id", rc.ID.String()), zap.Error(err))
		}
		if e != nil {
			n := base
			n.Type = NotifyNewEndorsement
			n.EndorsementID = &e.ID
			n.Message = "New endorsement recorded: " + rc.SourceTitle
			out = append(out, n)
		}
	}

	threshold := d.Classifier.Rules().Thresholds.AutoApprove
	switch {
	case rc.Confidence >= threshold:
		n := base
		n.Type = NotifyHighConfidence
		n.Message = "High confidence endorsement detected: " + rc.SourceTitle
		out = append(out, n)
	case rc.RequiresHumanReview:
		n := base
		n.Type = NotifyHumanReview
		n.Message = "Human review needed: " + rc.SourceTitle
		out = append(out, n)
	}
	return out
}

func (d *Dispatcher) handleNotify(ctx context.Context, job queue.Job) error {
	var n Notification
	if err := job.Decode(&n); err != nil {
		return err
	}
	if d.Notifier == nil {
		return nil
	}
	if err := d.Notifier.Notify(ctx, n); err != nil {
		return err
	}
	metrics.NotificationsTotal.WithLabelValues(n.Type).Inc()
	return nil
}
