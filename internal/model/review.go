// internal/model/review.go
package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ReviewPending  = "pending"
	ReviewApproved = "approved"
	ReviewRejected = "rejected"
)

// ReviewCandidate is a classified item that mentioned at least one candidate
// and waits for a human (or the auto-approval rule) to turn it into an endorsement.
type ReviewCandidate struct {
	ID                  uuid.UUID       `db:"id" json:"id"`
	SourceURL           string          `db:"source_url" json:"source_url"`
	SourceType          SourceType      `db:"source_type" json:"source_type"`
	SourceTitle         string          `db:"source_title" json:"source_title,omitempty"`
	RawText             string          `db:"raw_text" json:"raw_text"`
	Author              string          `db:"author" json:"author,omitempty"`
	Organization        string          `db:"organization" json:"organization,omitempty"`
	CandidateMentions   []string        `db:"candidate_mentions" json:"candidate_mentions"`
	Confidence          float64         `db:"confidence" json:"confidence"`
	EndorsementType     EndorsementType `db:"endorsement_type" json:"endorsement_type"`
	Sentiment           Sentiment       `db:"sentiment" json:"sentiment"`
	RequiresHumanReview bool            `db:"requires_human_review" json:"requires_human_review"`
	Reasoning           string          `db:"reasoning" json:"reasoning"`
	Status              string          `db:"status" json:"status"`
	EndorsementID       *uuid.UUID      `db:"endorsement_id" json:"endorsement_id,omitempty"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	ReviewedAt          *time.Time      `db:"reviewed_at" json:"reviewed_at,omitempty"`
}

type EndorserStats struct {
	TotalEndorsers         int            `json:"total_endorsers"`
	HighInfluenceEndorsers int            `json:"high_influence_endorsers"`
	ByCategory             map[string]int `json:"by_category"`
}
