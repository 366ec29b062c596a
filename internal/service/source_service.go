package service

import (
	"context"
	"time"

	"github.com/unclebandit/endorsenyc-backend/internal/feed"
	"github.com/unclebandit/endorsenyc-backend/internal/repository"
)

const sourceExamples = 3

type SourceGroup struct {
	Key         string     `json:"key"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Count       int        `json:"count"`
	LastUpdated *time.Time `json:"lastUpdated"`
	Examples    []string   `json:"examples"`
	AllSources  []string   `json:"allSources"`
	Color       string     `json:"color"`
}

type SourceStats struct {
	TotalFeeds             int        `json:"totalFeeds"`
	ActiveFeeds            int        `json:"activeFeeds"`
	LastCheck              *time.Time `json:"lastCheck"`
	TotalEndorsers         int        `json:"totalEndorsers"`
	HighInfluenceEndorsers int        `json:"highInfluenceEndorsers"`
}

// SourcesOverview counts stored feeds plus the generated endorser feeds.
type SourcesOverview struct {
	TotalFeeds int           `json:"totalFeeds"`
	Categories []SourceGroup `json:"categories"`
	Stats      SourceStats   `json:"stats"`
}

type SourceService struct {
	Feeds     repository.FeedRepositoryInterface
	Endorsers repository.EndorserRepositoryInterface
	Generator *feed.Generator
}

// Sources groups the active feeds by category and appends the endorser
// monitoring feeds as their own group.
func (s *SourceService) Sources(ctx context.Context) (*SourcesOverview, error) {
	feeds, err := s.Feeds.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := s.Feeds.Stats(ctx)
	if err != nil {
		return nil, err
	}
	endorsers, err := s.Endorsers.List(ctx)
	if err != nil {
		return nil, err
	}
	endorserStats, err := s.Endorsers.Stats(ctx)
	if err != nil {
		return nil, err
	}

	byCategory := map[string][]string{}
	var extra []string
	for _, f := range feeds {
		if _, ok := byCategory[f.Category]; !ok && !knownCategory(f.Category) {
			extra = append(extra, f.Category)
		}
		byCategory[f.Category] = append(byCategory[f.Category], f.Name)
	}

	out := &SourcesOverview{Categories: []SourceGroup{}}
	for _, c := range feed.Catalogue {
		out.Categories = append(out.Categories, sourceGroup(c, byCategory[c.Key], stats.LastCheck))
	}
	for _, key := range extra {
		out.Categories = append(out.Categories, sourceGroup(feed.Category{Key: key, Name: key, Color: "gray"}, byCategory[key], stats.LastCheck))
	}

	g := s.Generator
	if g == nil {
		g = feed.NewGenerator()
	}
	var monitors []string
	for _, f := range g.Feeds(endorsers) {
		monitors = append(monitors, f.Name)
	}
	out.Categories = append(out.Categories, sourceGroup(feed.EndorserCategoryInfo, monitors, stats.LastCheck))

	out.TotalFeeds = stats.TotalFeeds + len(monitors)
	out.Stats = SourceStats{
		TotalFeeds:             stats.TotalFeeds,
		ActiveFeeds:            stats.ActiveFeeds,
		LastCheck:              stats.LastCheck,
		TotalEndorsers:         endorserStats.TotalEndorsers,
		HighInfluenceEndorsers: endorserStats.HighInfluenceEndorsers,
	}
	return out, nil
}

func knownCategory(key string) bool {
	for _, c := range feed.Catalogue {
		if c.Key == key {
			return true
		}
	}
	return false
}

func sourceGroup(c feed.Category, names []string, lastCheck *time.Time) SourceGroup {
	if names == nil {
		names = []string{}
	}
	return SourceGroup{
		Key:         c.Key,
		Name:        c.Name,
		Description: c.Description,
		Count:       len(names),
		LastUpdated: lastCheck,
		Examples:    names[:min(sourceExamples, len(names))],
		AllSources:  names,
		Color:       c.Color,
	}
}
