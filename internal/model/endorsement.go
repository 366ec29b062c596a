// internal/model/endorsement.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type SourceType string

const (
	SourceTwitter      SourceType = "twitter"
	SourceInstagram    SourceType = "instagram"
	SourcePressRelease SourceType = "press_release"
	SourceInterview    SourceType = "interview"
	SourceEvent        SourceType = "event"
	SourceWebsite      SourceType = "website"
)

type EndorsementType string

const (
	TypeEndorsement   EndorsementType = "endorsement"
	TypeUnEndorsement EndorsementType = "un_endorsement"
	TypeConditional   EndorsementType = "conditional"
	TypeRumored       EndorsementType = "rumored"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

type Strength string

const (
	StrengthWeak         Strength = "weak"
	StrengthStandard     Strength = "standard"
	StrengthStrong       Strength = "strong"
	StrengthEnthusiastic Strength = "enthusiastic"
)

// ConfidenceLevel is the stored trust label of an endorsement.
// It only ever moves toward ConfidenceConfirmed.
type ConfidenceLevel string

const (
	ConfidenceRumored   ConfidenceLevel = "rumored"
	ConfidenceReported  ConfidenceLevel = "reported"
	ConfidenceConfirmed ConfidenceLevel = "confirmed"
)

var confidenceRank = map[ConfidenceLevel]int{
	ConfidenceRumored:   0,
	ConfidenceReported:  1,
	ConfidenceConfirmed: 2,
}

// Valid reports whether c is one of the three known levels.
func (c ConfidenceLevel) Valid() bool {
	_, ok := confidenceRank[c]
	return ok
}

// Narrows reports whether moving from c to next keeps or raises the level.
func (c ConfidenceLevel) Narrows(next ConfidenceLevel) bool {
	return confidenceRank[next] >= confidenceRank[c]
}

// Sources lists, lowest first, the stored levels that may move to c.
func (c ConfidenceLevel) Sources() []string {
	var out []string
	for _, l := range []ConfidenceLevel{ConfidenceRumored, ConfidenceReported, ConfidenceConfirmed} {
		if l.Narrows(c) {
			out = append(out, string(l))
		}
	}
	return out
}

// ConfidenceFromTier maps the scraper's high/medium/low vocabulary onto stored levels.
// Values already in the stored vocabulary pass through; anything else is reported.
func ConfidenceFromTier(tier string) ConfidenceLevel {
	switch tier {
	case "high", string(ConfidenceConfirmed):
		return ConfidenceConfirmed
	case "low", string(ConfidenceRumored):
		return ConfidenceRumored
	default:
		return ConfidenceReported
	}
}

type Endorsement struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	EndorserID        uuid.UUID       `db:"endorser_id" json:"endorser_id"`
	CandidateID       uuid.UUID       `db:"candidate_id" json:"candidate_id"`
	SourceURL         string          `db:"source_url" json:"source_url"`
	SourceType        SourceType      `db:"source_type" json:"source_type"`
	SourceTitle       string          `db:"source_title" json:"source_title,omitempty"`
	Quote             string          `db:"quote" json:"quote,omitempty"`
	EndorsementType   EndorsementType `db:"endorsement_type" json:"endorsement_type"`
	Sentiment         Sentiment       `db:"sentiment" json:"sentiment"`
	Confidence        ConfidenceLevel `db:"confidence" json:"confidence"`
	Strength          Strength        `db:"strength" json:"strength"`
	EndorsedAt        *time.Time      `db:"endorsed_at" json:"endorsed_at,omitempty"`
	DiscoveredAt      time.Time       `db:"discovered_at" json:"discovered_at"`
	VerifiedBy        string          `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt        *time.Time      `db:"verified_at" json:"verified_at,omitempty"`
	VerificationNotes string          `db:"verification_notes" json:"verification_notes,omitempty"`
	IsRetracted       bool            `db:"is_retracted" json:"is_retracted"`
	RetractionReason  string          `db:"retraction_reason" json:"retraction_reason,omitempty"`
	RetractedAt       *time.Time      `db:"retracted_at" json:"retracted_at,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// DuplicateGroup is a set of endorsements sharing an endorser and a candidate.
type DuplicateGroup struct {
	GroupID        string      `json:"group_id"`
	EndorsementIDs []uuid.UUID `json:"endorsements"`
}
