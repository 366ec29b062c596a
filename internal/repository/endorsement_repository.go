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

// EndorsementFilter narrows List. Zero value lists every non-retracted endorsement.
type EndorsementFilter struct {
	CandidateID      *uuid.UUID
	EndorserID       *uuid.UUID
	IncludeRetracted bool
	OnlyRetracted    bool
	// Unverified keeps rumored and reported rows only.
	Unverified bool
}

type EndorsementRepositoryInterface interface {
	List(ctx context.Context, f EndorsementFilter) ([]model.Endorsement, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Endorsement, error)
	Create(ctx context.Context, e *model.Endorsement) error
	Exists(ctx context.Context, endorserID, candidateID uuid.UUID, sourceURL string) (bool, error)
	UpdateVerification(ctx context.Context, e *model.Endorsement) error
	Retract(ctx context.Context, id uuid.UUID, reason string, at time.Time) error
}

type EndorsementRepository struct {
	DB *sql.DB
}

const endorsementColumns = `id, endorser_id, candidate_id, source_url, source_type, source_title, quote,
        endorsement_type, sentiment, confidence, strength, endorsed_at, discovered_at, verified_by,
        verified_at, verification_notes, is_retracted, retraction_reason, retracted_at, created_at, updated_at`

func scanEndorsement(s scanner) (*model.Endorsement, error) {
	var e model.Endorsement
	err := s.Scan(&e.ID, &e.EndorserID, &e.CandidateID, &e.SourceURL, &e.SourceType, &e.SourceTitle, &e.Quote,
		&e.EndorsementType, &e.Sentiment, &e.Confidence, &e.Strength, &e.EndorsedAt, &e.DiscoveredAt, &e.VerifiedBy,
		&e.VerifiedAt, &e.VerificationNotes, &e.IsRetracted, &e.RetractionReason, &e.RetractedAt, &e.CreatedAt, &e.UpdatedAt)
	return &e, err
}

func (r *EndorsementRepository) List(ctx context.Context, f EndorsementFilter) ([]model.Endorsement, error) {
	query := `SELECT ` + endorsementColumns + ` FROM endorsements WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if f.CandidateID != nil {
		query += fmt.Sprintf(" AND candidate_id=$%d", argPos)
		args = append(args, *f.CandidateID)
		argPos++
	}
	if f.EndorserID != nil {
		query += fmt.Sprintf(" AND endorser_id=$%d", argPos)
		args = append(args, *f.EndorserID)
		argPos++
	}
	switch {
	case f.OnlyRetracted:
		query += " AND is_retracted"
	case !f.IncludeRetracted:
		query += " AND NOT is_retracted"
	}
	if f.Unverified {
		query += " AND confidence IN ('rumored', 'reported')"
	}
	if f.OnlyRetracted {
		query += " ORDER BY retracted_at DESC"
	} else {
		query += " ORDER BY discovered_at DESC"
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	endorsements := []model.Endorsement{}
	for rows.Next() {
		e, err := scanEndorsement(rows)
		if err != nil {
			return nil, err
		}
		endorsements = append(endorsements, *e)
	}
	return endorsements, rows.Err()
}

func (r *EndorsementRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Endorsement, error) {
	e, err := scanEndorsement(r.DB.QueryRowContext(ctx, `SELECT `+endorsementColumns+` FROM endorsements WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, appErrors.NewNotFound("endorsement", id)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *EndorsementRepository) Create(ctx context.Context, e *model.Endorsement) error {
	return insertEndorsement(ctx, r.DB, e)
}

// execer lets inserts run on the pool or inside a transaction.
type execer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertEndorsement(ctx context.Context, db execer, e *model.Endorsement) error {
	now := time.Now()
	if e.DiscoveredAt.IsZero() {
		e.DiscoveredAt = now
	}
	e.CreatedAt, e.UpdatedAt = now, now
	query := `
        INSERT INTO endorsements (endorser_id, candidate_id, source_url, source_type, source_title, quote,
            endorsement_type, sentiment, confidence, strength, endorsed_at, discovered_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
        RETURNING id
    `
	return db.QueryRowContext(ctx, query, e.EndorserID, e.CandidateID, e.SourceURL, e.SourceType, e.SourceTitle, e.Quote,
		e.EndorsementType, e.Sentiment, e.Confidence, e.Strength, e.EndorsedAt, e.DiscoveredAt, e.CreatedAt, e.UpdatedAt).Scan(&e.ID)
}

// Exists reports whether the same endorser/candidate/source triple is already stored.
func (r *EndorsementRepository) Exists(ctx context.Context, endorserID, candidateID uuid.UUID, sourceURL string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM endorsements WHERE endorser_id=$1 AND candidate_id=$2 AND source_url=$3)`,
		endorserID, candidateID, sourceURL,
	).Scan(&exists)
	return exists, err
}

// UpdateVerification writes the new confidence only while the stored level is
// not above it. A row that moved higher in the meantime yields ErrConfidenceDowngrade.
func (r *EndorsementRepository) UpdateVerification(ctx context.Context, e *model.Endorsement) error {
	query := `
        UPDATE endorsements
        SET confidence=$1, verified_by=$2, verified_at=$3, verification_notes=$4, updated_at=NOW()
        WHERE id=$5 AND confidence = ANY($6)
    `
	res, err := r.DB.ExecContext(ctx, query, e.Confidence, e.VerifiedBy, e.VerifiedAt, e.VerificationNotes, e.ID,
		pq.Array(e.Confidence.Sources()))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, e.ID); err != nil {
			return err
		}
		return appErrors.ErrConfidenceDowngrade
	}
	return nil
}

// Retract flags the row; it is never deleted.
func (r *EndorsementRepository) Retract(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	query := `
        UPDATE endorsements
        SET is_retracted=TRUE, retraction_reason=$1, retracted_at=$2, updated_at=NOW()
        WHERE id=$3 AND NOT is_retracted
    `
	res, err := r.DB.ExecContext(ctx, query, reason, at, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return appErrors.ErrAlreadyRetracted
	}
	return nil
}

func expectOne(res sql.Result, entity string, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewNotFound(entity, id)
	}
	return nil
}
