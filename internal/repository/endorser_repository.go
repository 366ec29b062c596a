package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/endorsenyc-backend/internal/errors"
	"github.com/unclebandit/endorsenyc-backend/internal/model"
)

type EndorserRepositoryInterface interface {
	List(ctx context.Context) ([]model.Endorser, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Endorser, error)
	Create(ctx context.Context, e *model.Endorser) error
	Stats(ctx context.Context) (*model.EndorserStats, error)
}

type EndorserRepository struct {
	DB *sql.DB
}

const endorserColumns = `id, name, display_name, title, organization, category, subcategory, borough,
        influence_score, twitter_handle, instagram_handle, is_organization, created_at, updated_at`

func scanEndorser(s scanner) (*model.Endorser, error) {
	var e model.Endorser
	err := s.Scan(&e.ID, &e.Name, &e.DisplayName, &e.Title, &e.Organization, &e.Category, &e.Subcategory, &e.Borough,
		&e.InfluenceScore, &e.TwitterHandle, &e.InstagramHandle, &e.IsOrganization, &e.CreatedAt, &e.UpdatedAt)
	return &e, err
}

// List returns endorsers by influence, highest first.
func (r *EndorserRepository) List(ctx context.Context) ([]model.Endorser, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+endorserColumns+` FROM endorsers ORDER BY influence_score DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	endorsers := []model.Endorser{}
	for rows.Next() {
		e, err := scanEndorser(rows)
		if err != nil {
			return nil, err
		}
		endorsers = append(endorsers, *e)
	}
	return endorsers, rows.Err()
}

func (r *EndorserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Endorser, error) {
	e, err := scanEndorser(r.DB.QueryRowContext(ctx, `SELECT `+endorserColumns+` FROM endorsers WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, appErrors.NewNotFound("endorser", id)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *EndorserRepository) Create(ctx context.Context, e *model.Endorser) error {
	now := time.Now()
	e.CreatedAt, e.UpdatedAt = now, now
	query := `
        INSERT INTO endorsers (name, display_name, title, organization, category, subcategory, borough,
            influence_score, twitter_handle, instagram_handle, is_organization, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        RETURNING id
    `
	return r.DB.QueryRowContext(ctx, query, e.Name, e.DisplayName, e.Title, e.Organization, e.Category, e.Subcategory,
		e.Borough, e.InfluenceScore, e.TwitterHandle, e.InstagramHandle, e.IsOrganization, e.CreatedAt, e.UpdatedAt).Scan(&e.ID)
}

func (r *EndorserRepository) Stats(ctx context.Context) (*model.EndorserStats, error) {
	stats := &model.EndorserStats{ByCategory: map[string]int{}}
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE influence_score >= $1) FROM endorsers`, model.HighInfluenceScore,
	).Scan(&stats.TotalEndorsers, &stats.HighInfluenceEndorsers)
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.QueryContext(ctx, `SELECT category, COUNT(*) FROM endorsers GROUP BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, err
		}
		stats.ByCategory[category] = n
	}
	return stats, rows.Err()
}
