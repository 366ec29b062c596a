package feed

import (
	"context"
	"net/url"
	"strings"

	"github.com/unclebandit/endorsenyc-backend/internal/model"
)

// Feed categories. Stored feeds carry one of the catalogue keys; generated
// monitoring feeds use CategoryEndorser.
const (
	CategoryPolitics      = "politics"
	CategoryUnion         = "union"
	CategoryBusiness      = "business"
	CategoryCommunity     = "community"
	CategoryEntertainment = "entertainment"
	CategoryNonprofit     = "nonprofit"
	CategoryAcademic      = "academic"
	CategoryEndorser      = "endorser-specific"
)

type Category struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

// Catalogue lists the stored feed categories in display order.
var Catalogue = []Category{
	{CategoryPolitics, "Political News", "NYC and New York State political coverage", "blue"},
	{CategoryUnion, "Union & Labor", "Labor press and union newsrooms", "green"},
	{CategoryBusiness, "Business & Finance", "Business, finance and real estate news", "purple"},
	{CategoryCommunity, "Religious & Community", "Faith and community newspapers", "orange"},
	{CategoryEntertainment, "Entertainment", "Entertainment and celebrity news", "pink"},
	{CategoryNonprofit, "Nonprofit & Advocacy", "Nonprofit and advocacy news", "teal"},
	{CategoryAcademic, "Academic & Think Tanks", "Policy institutes and think tanks", "indigo"},
}

// EndorserCategoryInfo describes the generated per-endorser monitoring feeds.
var EndorserCategoryInfo = Category{CategoryEndorser, "Endorser-Specific", "Individual endorser monitoring feeds (1-2 per endorser)", "yellow"}

// CategoryKeys returns the stored category keys, space separated, for oneof validation.
func CategoryKeys() string {
	keys := make([]string, len(Catalogue))
	for i, c := range Catalogue {
		keys[i] = c.Key
	}
	return strings.Join(keys, " ")
}

// Template holds the filters and polling frequency used for an endorser category.
type Template struct {
	Keywords              []string
	ExcludeKeywords       []string
	CheckFrequencyMinutes int
}

var defaultExclude = []string{"obituary", "death", "funeral"}

func template(extra ...string) Template {
	return Template{
		Keywords:              append([]string{"endorsement", "endorse", "support", "mayor", "nyc"}, extra...),
		ExcludeKeywords:       defaultExclude,
		CheckFrequencyMinutes: 30,
	}
}

// DefaultTemplates maps each endorser category onto its monitoring template.
// Politicians are polled on the priority schedule.
var DefaultTemplates = map[model.EndorserCategory]Template{
	model.CategoryPolitician: {
		Keywords:              []string{"endorsement", "endorse", "support", "mayor", "nyc", "new york", "candidate"},
		ExcludeKeywords:       []string{"obituary", "death", "funeral", "arrest", "scandal"},
		CheckFrequencyMinutes: model.PriorityFrequencyMinutes,
	},
	model.CategoryUnion:     template("labor", "union", "workers"),
	model.CategoryBusiness:  template("business"),
	model.CategoryMedia:     template(),
	model.CategoryCelebrity: template(),
	model.CategoryReligious: template("community"),
	model.CategoryNonprofit: template("advocacy"),
	model.CategoryAcademic:  template("academic"),
}

const searchFeedURL = "https://news.google.com/rss/search"

// Generator derives news-search monitoring feeds for high-influence endorsers.
type Generator struct {
	Templates    map[model.EndorserCategory]Template
	MinInfluence int
	// MaxTerms caps the feeds per endorser.
	MaxTerms int
}

func NewGenerator() *Generator {
	return &Generator{Templates: DefaultTemplates, MinInfluence: model.HighInfluenceScore, MaxTerms: 2}
}

// Feeds returns the monitoring feeds for every endorser at or above MinInfluence.
func (g *Generator) Feeds(endorsers []model.Endorser) []model.Feed {
	var out []model.Feed
	for i := range endorsers {
		if endorsers[i].InfluenceScore < g.MinInfluence {
			continue
		}
		out = append(out, g.EndorserFeeds(&endorsers[i])...)
	}
	return out
}

// EndorserFeeds builds one search feed per term for e. Unknown categories yield none.
func (g *Generator) EndorserFeeds(e *model.Endorser) []model.Feed {
	tpl, ok := g.Templates[e.Category]
	if !ok {
		return nil
	}
	terms := SearchTerms(e)
	if g.MaxTerms > 0 && len(terms) > g.MaxTerms {
		terms = terms[:g.MaxTerms]
	}
	feeds := make([]model.Feed, 0, len(terms))
	for _, term := range terms {
		feeds = append(feeds, model.Feed{
			Name:                  term + " Mentions",
			URL:                   SearchURL(term),
			Category:              CategoryEndorser,
			CheckFrequencyMinutes: tpl.CheckFrequencyMinutes,
			IsActive:              true,
			Keywords:              tpl.Keywords,
			ExcludeKeywords:       tpl.ExcludeKeywords,
		})
	}
	return feeds
}

// SearchTerms lists the distinct names an endorser is reported under, most
// specific first: name, display name, organization, handle, title.
func SearchTerms(e *model.Endorser) []string {
	seen := map[string]bool{}
	var terms []string
	for _, t := range []string{e.Name, e.DisplayName, e.Organization, strings.TrimPrefix(e.TwitterHandle, "@"), e.Title} {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		terms = append(terms, t)
	}
	return terms
}

// SearchURL is the news-search RSS URL for a quoted term near "mayor".
func SearchURL(term string) string {
	q := url.Values{}
	q.Set("q", `"`+term+`" mayor`)
	q.Set("hl", "en-US")
	q.Set("gl", "US")
	q.Set("ceid", "US:en")
	return searchFeedURL + "?" + q.Encode()
}

// EndorserLister is the part of the endorser store the monitor reads.
type EndorserLister interface {
	List(ctx context.Context) ([]model.Endorser, error)
}

// EndorserMonitor turns the stored endorsers into monitoring feeds on demand.
type EndorserMonitor struct {
	Endorsers EndorserLister
	Generator *Generator
}

func (m *EndorserMonitor) MonitorFeeds(ctx context.Context) ([]model.Feed, error) {
	endorsers, err := m.Endorsers.List(ctx)
	if err != nil {
		return nil, err
	}
	g := m.Generator
	if g == nil {
		g = NewGenerator()
	}
	return g.Feeds(endorsers), nil
}
