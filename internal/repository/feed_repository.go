package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	appErrors "github.com/unclebandit/endorsenyc-backend/internal/errors"
	"github.com/unclebandit/endorsenyc-backend/internal/model"
)

type FeedRepositoryInterface interface {
	ListActive(ctx context.Context) ([]model.Feed, error)
	// ListPriority returns active feeds polled every PriorityFrequencyMinutes or faster.
	ListPriority(ctx context.Context) ([]model.Feed, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Feed, error)
	Create(ctx context.Context, f *model.Feed) error
	RecordCheck(ctx context.Context, id uuid.UUID, checkedAt time.Time, checkErr error) error
	Stats(ctx context.Context) (*model.FeedStats, error)
}

type FeedRepository struct {
	DB *sql.DB
}

const feedColumns = `id, name, url, category, check_frequency_minutes, is_active, keywords, exclude_keywords,
        last_check_at, last_success_at, error_count, last_error, created_at`

func scanFeed(s scanner) (*model.Feed, error) {
	var f model.Feed
	err := s.Scan(&f.ID, &f.Name, &f.URL, &f.Category, &f.CheckFrequencyMinutes, &f.IsActive, pq.Array(&f.Keywords), pq.Array(&f.ExcludeKeywords),
		&f.LastCheckAt, &f.LastSuccessAt, &f.ErrorCount, &f.LastError, &f.CreatedAt)
	return &f, err
}

func (r *FeedRepository) list(ctx context.Context, where string, args ...any) ([]model.Feed, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+feedColumns+` FROM rss_feeds WHERE `+where+` ORDER BY name`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	feeds := []model.Feed{}
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, *f)
	}
	return feeds, rows.Err()
}

func (r *FeedRepository) ListActive(ctx context.Context) ([]model.Feed, error) {
	return r.list(ctx, `is_active`)
}

func (r *FeedRepository) ListPriority(ctx context.Context) ([]model.Feed, error) {
	return r.list(ctx, `is_active AND check_frequency_minutes <= $1`, model.PriorityFrequencyMinutes)
}

func (r *FeedRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Feed, error) {
	f, err := scanFeed(r.DB.QueryRowContext(ctx, `SELECT `+feedColumns+` FROM rss_feeds WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, appErrors.NewNotFound("feed", id)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *FeedRepository) Create(ctx context.Context, f *model.Feed) error {
	f.CreatedAt = time.Now()
	if f.Keywords == nil {
		f.Keywords = []string{}
	}
	if f.ExcludeKeywords == nil {
		f.ExcludeKeywords = []string{}
	}
	query := `
        INSERT INTO rss_feeds (name, url, category, check_frequency_minutes, is_active, keywords, exclude_keywords, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `
	return r.DB.QueryRowContext(ctx, query, f.Name, f.URL, f.Category, f.CheckFrequencyMinutes, f.IsActive,
		pq.Array(f.Keywords), pq.Array(f.ExcludeKeywords), f.CreatedAt).Scan(&f.ID)
}

// RecordCheck stores the outcome of one fetch. A failure bumps error_count;
// a success resets it.
func (r *FeedRepository) RecordCheck(ctx context.Context, id uuid.UUID, checkedAt time.Time, checkErr error) error {
	var err error
	if checkErr != nil {
		_, err = r.DB.ExecContext(ctx,
			`UPDATE rss_feeds SET last_check_at=$1, error_count=error_count+1, last_error=$2 WHERE id=$3`,
			checkedAt, checkErr.Error(), id)
	} else {
		_, err = r.DB.ExecContext(ctx,
			`UPDATE rss_feeds SET last_check_at=$1, last_success_at=$1, error_count=0, last_error='' WHERE id=$2`,
			checkedAt, id)
	}
	return err
}

func (r *FeedRepository) Stats(ctx context.Context) (*model.FeedStats, error) {
	var s model.FeedStats
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active), MAX(last_check_at) FROM rss_feeds`,
	).Scan(&s.TotalFeeds, &s.ActiveFeeds, &s.LastCheck)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
