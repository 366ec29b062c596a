// Package feed fetches RSS/Atom feeds and maps recent, keyword-matching entries
// onto model.FeedItem.
package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/endorsenyc-backend/internal/metrics"
	"github.com/unclebandit/endorsenyc-backend/internal/model"
)

const (
	DefaultUserAgent   = "EndorseTracker/1.0"
	DefaultTimeout     = 10 * time.Second
	DefaultWindow      = 24 * time.Hour
	DefaultConcurrency = 5
)

// HealthRecorder persists the outcome of a feed check. err is nil on success.
type HealthRecorder interface {
	RecordCheck(ctx context.Context, feedID uuid.UUID, checkedAt time.Time, err error) error
}

type Options struct {
	UserAgent    string
	Timeout      time.Duration
	Window       time.Duration
	HostInterval time.Duration
	Concurrency  int
	// Now defaults to time.Now.
	Now func() time.Time
}

type Reader struct {
	parser      *gofeed.Parser
	limiter     *HostLimiter
	health      HealthRecorder
	strip       *bluemonday.Policy
	window      time.Duration
	concurrency int
	now         func() time.Time
	log         *zap.Logger
}

// NewReader builds a reader. health may be nil.
func NewReader(opts Options, health HealthRecorder, log *zap.Logger) *Reader {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}

	fp := gofeed.NewParser()
	fp.Client = &http.Client{Timeout: opts.Timeout}
	fp.UserAgent = opts.UserAgent

	return &Reader{
		parser:      fp,
		limiter:     NewHostLimiter(opts.HostInterval),
		health:      health,
		strip:       bluemonday.StrictPolicy(),
		window:      opts.Window,
		concurrency: opts.Concurrency,
		now:         opts.Now,
		log:         log,
	}
}

// Fetch parses one feed and returns the items that pass its filters.
func (r *Reader) Fetch(ctx context.Context, f model.Feed) ([]model.FeedItem, error) {
	items, err := r.fetch(ctx, f)
	metrics.RecordFeed(f.Name, len(items), err)
	if r.health != nil && f.ID != uuid.Nil {
		if herr := r.health.RecordCheck(ctx, f.ID, r.now(), err); herr != nil {
			r.log.Warn("could not record feed health", zap.String("feed", f.Name), zap.Error(herr))
		}
	}
	return items, err
}

func (r *Reader) fetch(ctx context.Context, f model.Feed) ([]model.FeedItem, error) {
	if err := r.limiter.Wait(ctx, f.URL); err != nil {
		return nil, fmt.Errorf("feed %s: %w", f.Name, err)
	}
	parsed, err := r.parser.ParseURLWithContext(f.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", f.Name, err)
	}

	now := r.now()
	include := lowerKeywords(f.Keywords)
	exclude := lowerKeywords(f.ExcludeKeywords)

	items := make([]model.FeedItem, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		item := r.toItem(it, f.Name, now)
		if now.Sub(item.PublishedAt) > r.window {
			continue
		}
		if !matches(item, include, exclude) {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// FetchAll checks feeds concurrently. A failing feed contributes no items and
// never aborts the others.
func (r *Reader) FetchAll(ctx context.Context, feeds []model.Feed) []model.FeedItem {
	results := make([][]model.FeedItem, len(feeds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, f := range feeds {
		i, f := i, f
		g.Go(func() error {
			items, err := r.Fetch(gctx, f)
			if err != nil {
				r.log.Error("❌ feed check failed", zap.String("feed", f.Name), zap.String("url", f.URL), zap.Error(err))
				return nil
			}
			r.log.Info("📰 feed checked", zap.String("feed", f.Name), zap.Int("items", len(items)))
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	var all []model.FeedItem
	for _, items := range results {
		all = append(all, items...)
	}
	return all
}

type TestResult struct {
	Title     string `json:"title"`
	ItemCount int    `json:"item_count"`
}

// Test checks that rawURL is an http(s) URL serving a parseable feed.
func (r *Reader) Test(ctx context.Context, rawURL string) (*TestResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid feed URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL scheme %q (must be http or https)", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host in URL")
	}
	if err := r.limiter.Wait(ctx, rawURL); err != nil {
		return nil, err
	}
	parsed, err := r.parser.ParseURLWithContext(rawURL, ctx)
	if err != nil {
		return nil, err
	}
	return &TestResult{Title: parsed.Title, ItemCount: len(parsed.Items)}, nil
}

func (r *Reader) toItem(it *gofeed.Item, source string, now time.Time) model.FeedItem {
	item := model.FeedItem{
		Title:       strings.TrimSpace(it.Title),
		Description: strings.TrimSpace(r.strip.Sanitize(it.Description)),
		Content:     it.Content,
		Link:        it.Link,
		PublishedAt: now,
		Categories:  it.Categories,
		Source:      source,
	}
	switch {
	case it.PublishedParsed != nil:
		item.PublishedAt = *it.PublishedParsed
	case it.UpdatedParsed != nil:
		item.PublishedAt = *it.UpdatedParsed
	}
	if it.Author != nil {
		item.Author = it.Author.Name
	} else if len(it.Authors) > 0 && it.Authors[0] != nil {
		item.Author = it.Authors[0].Name
	}
	return item
}

func matches(item model.FeedItem, include, exclude []string) bool {
	text := strings.ToLower(item.Text())
	if len(include) > 0 && !containsAny(text, include) {
		return false
	}
	return !containsAny(text, exclude)
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func lowerKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, k := range in {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			out = append(out, k)
		}
	}
	return out
}
