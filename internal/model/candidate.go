// internal/model/candidate.go
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Candidate struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Party         string    `db:"party" json:"party,omitempty"`
	PhotoURL      string    `db:"photo_url" json:"photo_url,omitempty"`
	Website       string    `db:"website" json:"website,omitempty"`
	Bio           string    `db:"bio" json:"bio,omitempty"`
	CampaignColor string    `db:"campaign_color" json:"campaign_color,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

func equalFoldTrim(a, b string) bool {
	a = strings.TrimPrefix(strings.TrimSpace(a), "@")
	b = strings.TrimPrefix(strings.TrimSpace(b), "@")
	return strings.EqualFold(a, b)
}
