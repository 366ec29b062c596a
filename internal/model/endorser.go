// internal/model/endorser.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type EndorserCategory string

const (
	CategoryPolitician EndorserCategory = "politician"
	CategoryUnion      EndorserCategory = "union"
	CategoryCelebrity  EndorserCategory = "celebrity"
	CategoryMedia      EndorserCategory = "media"
	CategoryBusiness   EndorserCategory = "business"
	CategoryNonprofit  EndorserCategory = "nonprofit"
	CategoryAcademic   EndorserCategory = "academic"
	CategoryReligious  EndorserCategory = "religious"
)

// HighInfluenceScore is the influence score from which an endorser counts as high influence.
const HighInfluenceScore = 70

type Endorser struct {
	ID              uuid.UUID        `db:"id" json:"id"`
	Name            string           `db:"name" json:"name"`
	DisplayName     string           `db:"display_name" json:"display_name,omitempty"`
	Title           string           `db:"title" json:"title,omitempty"`
	Organization    string           `db:"organization" json:"organization,omitempty"`
	Category        EndorserCategory `db:"category" json:"category"`
	Subcategory     string           `db:"subcategory" json:"subcategory,omitempty"`
	Borough         string           `db:"borough" json:"borough,omitempty"`
	InfluenceScore  int              `db:"influence_score" json:"influence_score"`
	TwitterHandle   string           `db:"twitter_handle" json:"twitter_handle,omitempty"`
	InstagramHandle string           `db:"instagram_handle" json:"instagram_handle,omitempty"`
	IsOrganization  bool             `db:"is_organization" json:"is_organization"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// Matches reports whether an author string names this endorser (name, display name or a handle).
func (e *Endorser) Matches(author string) bool {
	if author == "" {
		return false
	}
	for _, v := range []string{e.Name, e.DisplayName, e.TwitterHandle, e.InstagramHandle} {
		if v != "" && equalFoldTrim(v, author) {
			return true
		}
	}
	return false
}
