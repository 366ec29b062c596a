package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unclebandit/endorsenyc-backend/internal/feed"
	"github.com/unclebandit/endorsenyc-backend/internal/model"
	"github.com/unclebandit/endorsenyc-backend/internal/pipeline"
	"github.com/unclebandit/endorsenyc-backend/internal/repository"
)

const defaultCheckFrequencyMinutes = 30

// FeedTester fetches a feed once without storing anything.
type FeedTester interface {
	Test(ctx context.Context, rawURL string) (*feed.TestResult, error)
}

// FeedService manages feed configuration and asks the worker to check feeds.
type FeedService struct {
	Feeds  repository.FeedRepositoryInterface
	Tester FeedTester
	Jobs   *pipeline.Producer
	Log    *zap.Logger
}

type CreateFeedRequest struct {
	Name                  string   `json:"name" validate:"required"`
	URL                   string   `json:"url" validate:"required,url"`
	Category              string   `json:"category" validate:"omitempty,oneof=politics union business community entertainment nonprofit academic"`
	CheckFrequencyMinutes int      `json:"check_frequency_minutes" validate:"omitempty,min=1,max=1440"`
	IsActive              *bool    `json:"is_active"`
	Keywords              []string `json:"keywords"`
	ExcludeKeywords       []string `json:"exclude_keywords"`
}

type TestFeedRequest struct {
	URL string `json:"url" validate:"required"`
}

func (s *FeedService) ListActive(ctx context.Context) ([]model.Feed, error) {
	return s.Feeds.ListActive(ctx)
}

func (s *FeedService) Create(ctx context.Context, req CreateFeedRequest) (*model.Feed, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	f := &model.Feed{
		Name:                  strings.TrimSpace(req.Name),
		URL:                   strings.TrimSpace(req.URL),
		Category:              req.Category,
		CheckFrequencyMinutes: req.CheckFrequencyMinutes,
		IsActive:              req.IsActive == nil || *req.IsActive,
		Keywords:              cleanKeywords(req.Keywords),
		ExcludeKeywords:       cleanKeywords(req.ExcludeKeywords),
	}
	if f.Category == "" {
		f.Category = feed.CategoryPolitics
	}
	if f.CheckFrequencyMinutes == 0 {
		f.CheckFrequencyMinutes = defaultCheckFrequencyMinutes
	}
	if err := s.Feeds.Create(ctx, f); err != nil {
		return nil, err
	}
	if s.Log != nil {
		s.Log.Info("📡 feed added", zap.String("name", f.Name), zap.String("url", f.URL), zap.Bool("priority", f.IsPriority()))
	}
	return f, nil
}

// Test fetches the feed at req.URL and reports its title and item count.
func (s *FeedService) Test(ctx context.Context, req TestFeedRequest) (*feed.TestResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.Tester.Test(ctx, strings.TrimSpace(req.URL))
}

// TriggerCheck queues a check of every active feed.
func (s *FeedService) TriggerCheck(ctx context.Context) (uuid.UUID, error) {
	return s.Jobs.EnqueueFetch(ctx, pipeline.JobFetchAll)
}

// TriggerFeedCheck queues a check of one feed.
func (s *FeedService) TriggerFeedCheck(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	if _, err := s.Feeds.GetByID(ctx, id); err != nil {
		return uuid.Nil, err
	}
	return s.Jobs.EnqueueFeed(ctx, id)
}

func cleanKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, k := range in {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
