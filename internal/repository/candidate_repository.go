package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/endorsenyc-backend/internal/errors"
	"github.com/unclebandit/endorsenyc-backend/internal/model"
)

type CandidateRepositoryInterface interface {
	List(ctx context.Context) ([]model.Candidate, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Candidate, error)
}

type CandidateRepository struct {
	DB *sql.DB
}

const candidateColumns = `id, name, party, photo_url, website, bio, campaign_color, created_at`

func scanCandidate(s scanner) (*model.Candidate, error) {
	var c model.Candidate
	err := s.Scan(&c.ID, &c.Name, &c.Party, &c.PhotoURL, &c.Website, &c.Bio, &c.CampaignColor, &c.CreatedAt)
	return &c, err
}

// List returns all candidates ordered by name.
func (r *CandidateRepository) List(ctx context.Context) ([]model.Candidate, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+candidateColumns+` FROM candidates ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	candidates := []model.Candidate{}
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, *c)
	}
	return candidates, rows.Err()
}

func (r *CandidateRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Candidate, error) {
	c, err := scanCandidate(r.DB.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, appErrors.NewNotFound("candidate", id)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
