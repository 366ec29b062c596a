// internal/model/feed.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// PriorityFrequencyMinutes is the polling frequency at or below which a feed is high priority.
const PriorityFrequencyMinutes = 15

type Feed struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	Name                  string     `db:"name" json:"name"`
	URL                   string     `db:"url" json:"url"`
	Category              string     `db:"category" json:"category"`
	CheckFrequencyMinutes int        `db:"check_frequency_minutes" json:"check_frequency_minutes"`
	IsActive              bool       `db:"is_active" json:"is_active"`
	Keywords              []string   `db:"keywords" json:"keywords"`
	ExcludeKeywords       []string   `db:"exclude_keywords" json:"exclude_keywords"`
	LastCheckAt           *time.Time `db:"last_check_at" json:"last_check_at,omitempty"`
	LastSuccessAt         *time.Time `db:"last_success_at" json:"last_success_at,omitempty"`
	ErrorCount            int        `db:"error_count" json:"error_count"`
	LastError             string     `db:"last_error" json:"last_error,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
}

// IsPriority reports whether the feed is polled on the high-priority schedule.
func (f *Feed) IsPriority() bool {
	return f.CheckFrequencyMinutes > 0 && f.CheckFrequencyMinutes <= PriorityFrequencyMinutes
}

// FeedItem is the uniform shape every parsed feed entry is mapped to.
type FeedItem struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content,omitempty"`
	Link        string    `json:"link"`
	PublishedAt time.Time `json:"pub_date"`
	Author      string    `json:"author,omitempty"`
	Categories  []string  `json:"categories,omitempty"`
	Source      string    `json:"source"`
}

// Text is what the classifier reads for a feed item.
func (i FeedItem) Text() string {
	return i.Title + " " + i.Description
}

type FeedStats struct {
	TotalFeeds  int        `json:"total_feeds"`
	ActiveFeeds int        `json:"active_feeds"`
	LastCheck   *time.Time `json:"last_check"`
}
