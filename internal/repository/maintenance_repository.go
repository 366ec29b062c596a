package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/unclebandit/endorsenyc-backend/internal/model"
)

// DedupeReport counts rows removed per table.
type DedupeReport struct {
	Candidates   int64 `json:"candidates"`
	Endorsers    int64 `json:"endorsers"`
	Endorsements int64 `json:"endorsements"`
	Feeds        int64 `json:"feeds"`
}

type MaintenanceRepositoryInterface interface {
	DuplicateGroups(ctx context.Context) ([]model.DuplicateGroup, error)
	Dedupe(ctx context.Context) (*DedupeReport, error)
}

type MaintenanceRepository struct {
	DB *sql.DB
}

// DuplicateGroups lists endorser/candidate pairs with more than one endorsement.
func (r *MaintenanceRepository) DuplicateGroups(ctx context.Context) ([]model.DuplicateGroup, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT endorser_id, candidate_id, array_agg(id ORDER BY discovered_at)
        FROM endorsements
        WHERE NOT is_retracted
        GROUP BY endorser_id, candidate_id
        HAVING COUNT(*) > 1
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := []model.DuplicateGroup{}
	for rows.Next() {
		var endorserID, candidateID uuid.UUID
		var ids []string
		if err := rows.Scan(&endorserID, &candidateID, pq.Array(&ids)); err != nil {
			return nil, err
		}
		g := model.DuplicateGroup{GroupID: endorserID.String() + "-" + candidateID.String()}
		for _, s := range ids {
			id, err := uuid.Parse(s)
			if err != nil {
				return nil, fmt.Errorf("duplicate group %s: %w", g.GroupID, err)
			}
			g.EndorsementIDs = append(g.EndorsementIDs, id)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// Dedupe keeps the oldest row of each duplicate set. Endorsements pointing at a
// removed candidate or endorser are re-pointed at the kept one first.
func (r *MaintenanceRepository) Dedupe(ctx context.Context) (*DedupeReport, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	report := &DedupeReport{}
	steps := []struct {
		count *int64
		stmts []string
	}{
		{&report.Candidates, []string{
			`WITH keep AS (
                SELECT id, FIRST_VALUE(id) OVER (PARTITION BY name ORDER BY created_at, id) AS kept FROM candidates
            )
            UPDATE endorsements e SET candidate_id = keep.kept FROM keep
            WHERE e.candidate_id = keep.id AND keep.id <> keep.kept`,
			`DELETE FROM candidates c USING candidates k
            WHERE c.name = k.name AND (k.created_at, k.id) < (c.created_at, c.id)`,
		}},
		{&report.Endorsers, []string{
			`WITH keep AS (
                SELECT id, FIRST_VALUE(id) OVER (PARTITION BY name ORDER BY created_at, id) AS kept FROM endorsers
            )
            UPDATE endorsements e SET endorser_id = keep.kept FROM keep
            WHERE e.endorser_id = keep.id AND keep.id <> keep.kept`,
			`DELETE FROM endorsers d USING endorsers k
            WHERE d.name = k.name AND (k.created_at, k.id) < (d.created_at, d.id)`,
		}},
		{&report.Endorsements, []string{
			`UPDATE review_candidates rc SET endorsement_id = NULL
            FROM endorsements e, endorsements k
            WHERE rc.endorsement_id = e.id
              AND e.endorser_id = k.endorser_id AND e.candidate_id = k.candidate_id
              AND e.source_url = k.source_url AND e.endorsed_at IS NOT DISTINCT FROM k.endorsed_at
              AND (k.created_at, k.id) < (e.created_at, e.id)`,
			`DELETE FROM endorsements e USING endorsements k
            WHERE e.endorser_id = k.endorser_id AND e.candidate_id = k.candidate_id
              AND e.source_url = k.source_url AND e.endorsed_at IS NOT DISTINCT FROM k.endorsed_at
              AND (k.created_at, k.id) < (e.created_at, e.id)`,
		}},
		{&report.Feeds, []string{
			`DELETE FROM rss_feeds f USING rss_feeds k
            WHERE f.url = k.url AND (k.created_at, k.id) < (f.created_at, f.id)`,
		}},
	}

	for _, step := range steps {
		for i, stmt := range step.stmts {
			res, err := tx.ExecContext(ctx, stmt)
			if err != nil {
				return nil, err
			}
			// the last statement of each step is the delete
			if i == len(step.stmts)-1 {
				if *step.count, err = res.RowsAffected(); err != nil {
					return nil, err
				}
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return report, nil
}
