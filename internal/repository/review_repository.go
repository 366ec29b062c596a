package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	appErrors "github.com/unclebandit/endorsenyc-backend/internal/errors"
	"github.com/unclebandit/endorsenyc-backend/internal/model"
)

type ReviewRepositoryInterface interface {
	Create(ctx context.Context, rc *model.ReviewCandidate) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ReviewCandidate, error)
	ListPending(ctx context.Context, limit int) ([]model.ReviewCandidate, error)
	// Approve inserts e and links it to the pending review candidate in one transaction.
	Approve(ctx context.Context, id uuid.UUID, e *model.Endorsement) error
	Reject(ctx context.Context, id uuid.UUID) error
	DeleteReviewedBefore(ctx context.Context, before time.Time) (int64, error)
}

type ReviewRepository struct {
	DB *sql.DB
}

const reviewColumns = `id, source_url, source_type, source_title, raw_text, author, organization, candidate_mentions,
        confidence, endorsement_type, sentiment, requires_human_review, reasoning, status, endorsement_id,
        created_at, reviewed_at`

func scanReview(s scanner) (*model.ReviewCandidate, error) {
	var rc model.ReviewCandidate
	err := s.Scan(&rc.ID, &rc.SourceURL, &rc.SourceType, &rc.SourceTitle, &rc.RawText, &rc.Author, &rc.Organization,
		pq.Array(&rc.CandidateMentions), &rc.Confidence, &rc.EndorsementType, &rc.Sentiment, &rc.RequiresHumanReview,
		&rc.Reasoning, &rc.Status, &rc.EndorsementID, &rc.CreatedAt, &rc.ReviewedAt)
	return &rc, err
}

func (r *ReviewRepository) Create(ctx context.Context, rc *model.ReviewCandidate) error {
	rc.CreatedAt = time.Now()
	if rc.Status == "" {
		rc.Status = model.ReviewPending
	}
	query := `
        INSERT INTO review_candidates (source_url, source_type, source_title, raw_text, author, organization,
            candidate_mentions, confidence, endorsement_type, sentiment, requires_human_review, reasoning, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
        RETURNING id
    `
	return r.DB.QueryRowContext(ctx, query, rc.SourceURL, rc.SourceType, rc.SourceTitle, rc.RawText, rc.Author, rc.Organization,
		pq.Array(rc.CandidateMentions), rc.Confidence, rc.EndorsementType, rc.Sentiment, rc.RequiresHumanReview,
		rc.Reasoning, rc.Status, rc.CreatedAt).Scan(&rc.ID)
}

func (r *ReviewRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ReviewCandidate, error) {
	rc, err := scanReview(r.DB.QueryRowContext(ctx, `SELECT `+reviewColumns+` FROM review_candidates WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, appErrors.NewNotFound("review candidate", id)
	}
	if err != nil {
		return nil, err
	}
	return rc, nil
}

// ListPending returns the newest pending items first.
func (r *ReviewRepository) ListPending(ctx context.Context, limit int) ([]model.ReviewCandidate, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+reviewColumns+` FROM review_candidates WHERE status = $1 ORDER BY created_at DESC LIMIT $2`,
		model.ReviewPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []model.ReviewCandidate{}
	for rows.Next() {
		rc, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *rc)
	}
	return items, rows.Err()
}

func (r *ReviewRepository) Approve(ctx context.Context, id uuid.UUID, e *model.Endorsement) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertEndorsement(ctx, tx, e); err != nil {
		return fmt.Errorf("insert endorsement: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE review_candidates SET status=$1, endorsement_id=$2, reviewed_at=NOW() WHERE id=$3 AND status=$4`,
		model.ReviewApproved, e.ID, id, model.ReviewPending)
	if err != nil {
		return err
	}
	if err := r.expectPending(ctx, res, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *ReviewRepository) Reject(ctx context.Context, id uuid.UUID) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE review_candidates SET status=$1, reviewed_at=NOW() WHERE id=$2 AND status=$3`,
		model.ReviewRejected, id, model.ReviewPending)
	if err != nil {
		return err
	}
	return r.expectPending(ctx, res, id)
}

// expectPending turns a zero-row transition into NotFound or ErrAlreadyReviewed.
func (r *ReviewRepository) expectPending(ctx context.Context, res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists bool
	if err := r.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM review_candidates WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return appErrors.NewNotFound("review candidate", id)
	}
	return appErrors.ErrAlreadyReviewed
}

// DeleteReviewedBefore drops approved and rejected items reviewed before the cutoff.
func (r *ReviewRepository) DeleteReviewedBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`DELETE FROM review_candidates WHERE status <> $1 AND reviewed_at < $2`,
		model.ReviewPending, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
