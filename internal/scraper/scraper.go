// Package scraper asks a web-search-enabled language model about each endorser
// and records the endorsements it reports.
package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	appErrors "github.com/unclebandit/endorsenyc-backend/internal/errors"
	"github.com/unclebandit/endorsenyc-backend/internal/metrics"
	"github.com/unclebandit/endorsenyc-backend/internal/model"
	"github.com/unclebandit/endorsenyc-backend/internal/repository"
)

const DefaultDelay = 2 * time.Second

// Modes.
const (
	ModeAll       = "all"
	ModeEndorser  = "endorser"
	ModeCandidate = "candidate"
)

type Request struct {
	Type string     `json:"type"`
	ID   *uuid.UUID `json:"id,omitempty"`
}

type Result struct {
	Mode          string `json:"mode"`
	EndorserName  string `json:"endorser_name,omitempty"`
	CandidateName string `json:"candidate_name,omitempty"`
	Searched      int    `json:"searched"`
	Saved         int    `json:"saved"`
	Skipped       int    `json:"skipped"`
	Errors        int    `json:"errors"`
	// Incomplete is set when the run stopped early; the counts cover what was done.
	Incomplete bool    `json:"incomplete"`
	Found      []Found `json:"results"`
}

type Scraper struct {
	Searcher     Searcher
	Endorsers    repository.EndorserRepositoryInterface
	Candidates   repository.CandidateRepositoryInterface
	Endorsements repository.EndorsementRepositoryInterface
	Log          *zap.Logger

	limiter *rate.Limiter
}

// New paces searches at most one per delay.
func New(searcher Searcher, endorsers repository.EndorserRepositoryInterface, candidates repository.CandidateRepositoryInterface,
	endorsements repository.EndorsementRepositoryInterface, delay time.Duration, log *zap.Logger) *Scraper {
	if log == nil {
		log = zap.NewNop()
	}
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Scraper{
		Searcher:     searcher,
		Endorsers:    endorsers,
		Candidates:   candidates,
		Endorsements: endorsements,
		Log:          log,
		limiter:      rate.NewLimiter(limit, 1),
	}
}

// Run dispatches on req.Type. When ctx ends mid-run the partial Result is
// returned together with the context error.
func (s *Scraper) Run(ctx context.Context, req Request) (*Result, error) {
	switch req.Type {
	case ModeAll:
		return s.ScrapeAll(ctx)
	case ModeEndorser:
		if req.ID == nil {
			return nil, appErrors.NewValidation("id", "endorser ID is required for endorser-specific scraping")
		}
		return s.ScrapeEndorser(ctx, *req.ID)
	case ModeCandidate:
		if req.ID == nil {
			return nil, appErrors.NewValidation("id", "candidate ID is required for candidate-specific scraping")
		}
		return s.ScrapeCandidate(ctx, *req.ID)
	default:
		return nil, appErrors.NewValidation("type", `must be "all", "endorser", or "candidate"`)
	}
}

// ScrapeAll searches every endorser, highest influence first.
func (s *Scraper) ScrapeAll(ctx context.Context) (*Result, error) {
	endorsers, err := s.Endorsers.List(ctx)
	if err != nil {
		return nil, err
	}
	candidates, err := s.Candidates.List(ctx)
	if err != nil {
		return nil, err
	}

	s.Log.Info("🔍 starting endorsement scraping", zap.Int("endorsers", len(endorsers)))
	res := &Result{Mode: ModeAll, Found: []Found{}}
	for i := range endorsers {
		if err := ctx.Err(); err != nil {
			return s.stopped(res, err)
		}
		found := s.search(ctx, &endorsers[i], res)
		s.save(ctx, &endorsers[i], found, candidates, res)
	}
	s.Log.Info("🎉 scraping complete", zap.Int("searched", res.Searched), zap.Int("found", len(res.Found)), zap.Int("saved", res.Saved))
	return res, nil
}

func (s *Scraper) ScrapeEndorser(ctx context.Context, id uuid.UUID) (*Result, error) {
	endorser, err := s.Endorsers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	candidates, err := s.Candidates.List(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{Mode: ModeEndorser, EndorserName: displayName(endorser), Found: []Found{}}
	found := s.search(ctx, endorser, res)
	s.save(ctx, endorser, found, candidates, res)
	return res, nil
}

// ScrapeCandidate searches every endorser and keeps results naming the candidate.
func (s *Scraper) ScrapeCandidate(ctx context.Context, id uuid.UUID) (*Result, error) {
	candidate, err := s.Candidates.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	endorsers, err := s.Endorsers.List(ctx)
	if err != nil {
		return nil, err
	}
	candidates, err := s.Candidates.List(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{Mode: ModeCandidate, CandidateName: candidate.Name, Found: []Found{}}
	want := strings.ToLower(candidate.Name)
	for i := range endorsers {
		if err := ctx.Err(); err != nil {
			return s.stopped(res, err)
		}
		var matching []Found
		for _, f := range s.search(ctx, &endorsers[i], res) {
			if strings.Contains(strings.ToLower(f.CandidateName), want) {
				matching = append(matching, f)
			}
		}
		s.save(ctx, &endorsers[i], matching, candidates, res)
	}
	return res, nil
}

func (s *Scraper) stopped(res *Result, err error) (*Result, error) {
	res.Incomplete = true
	s.Log.Warn("⚠️ scraping stopped early", zap.Int("searched", res.Searched), zap.Int("saved", res.Saved), zap.Error(err))
	return res, err
}

// search asks about one endorser. Failures are logged and yield nothing.
func (s *Scraper) search(ctx context.Context, endorser *model.Endorser, res *Result) []Found {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil
	}
	res.Searched++

	reply, err := s.Searcher.Search(ctx, Prompt(endorser.Name))
	if err != nil {
		s.Log.Error("❌ search failed", zap.String("endorser", endorser.Name), zap.Error(err))
		metrics.ScraperResultsTotal.WithLabelValues("error").Inc()
		return nil
	}
	found := ParseReply(reply, endorser.Name)
	if len(found) == 0 {
		s.Log.Info("no endorsements found", zap.String("endorser", endorser.Name))
	} else {
		s.Log.Info("✅ endorsements found", zap.String("endorser", endorser.Name), zap.Int("count", len(found)))
	}
	return found
}

func (s *Scraper) save(ctx context.Context, endorser *model.Endorser, found []Found, candidates []model.Candidate, res *Result) {
	for _, f := range found {
		res.Found = append(res.Found, f)

		candidate := ResolveCandidate(f.CandidateName, candidates)
		if candidate == nil {
			s.Log.Warn("⚠️ skipping endorsement for unknown candidate",
				zap.String("candidate", f.CandidateName), zap.String("source_url", f.SourceURL))
			res.Skipped++
			metrics.ScraperResultsTotal.WithLabelValues("skipped").Inc()
			continue
		}

		exists, err := s.Endorsements.Exists(ctx, endorser.ID, candidate.ID, f.SourceURL)
		if err != nil {
			// saving blind could duplicate a stored row
			s.Log.Error("❌ could not check for existing endorsement", zap.String("endorser", endorser.Name), zap.Error(err))
			res.Errors++
			metrics.ScraperResultsTotal.WithLabelValues("error").Inc()
			continue
		}
		if exists {
			res.Skipped++
			metrics.ScraperResultsTotal.WithLabelValues("skipped").Inc()
			continue
		}

		e := toEndorsement(f, endorser.ID, candidate.ID)
		if err := s.Endorsements.Create(ctx, e); err != nil {
			s.Log.Error("❌ error saving endorsement", zap.String("endorser", endorser.Name), zap.Error(err))
			res.Errors++
			metrics.ScraperResultsTotal.WithLabelValues("error").Inc()
			continue
		}
		res.Saved++
		metrics.ScraperResultsTotal.WithLabelValues("saved").Inc()
		s.Log.Info("💾 endorsement saved", zap.String("endorser", endorser.Name), zap.String("candidate", candidate.Name))
	}
}

// toEndorsement maps model labels onto stored values. Unknown labels fall back
// to defaults and confidence never exceeds reported.
func toEndorsement(f Found, endorserID, candidateID uuid.UUID) *model.Endorsement {
	e := &model.Endorsement{
		EndorserID:      endorserID,
		CandidateID:     candidateID,
		SourceURL:       f.SourceURL,
		SourceType:      model.SourceWebsite,
		SourceTitle:     f.SourceTitle,
		Quote:           f.Quote,
		EndorsementType: model.TypeEndorsement,
		Sentiment:       model.SentimentNeutral,
		Confidence:      model.ConfidenceFromTier(strings.ToLower(f.Confidence)),
		Strength:        model.StrengthStandard,
	}
	if e.SourceTitle == "" {
		e.SourceTitle = "Unknown Source"
	}
	switch t := model.EndorsementType(strings.ToLower(f.EndorsementType)); t {
	case model.TypeEndorsement, model.TypeUnEndorsement, model.TypeConditional, model.TypeRumored:
		e.EndorsementType = t
	}
	switch v := model.Sentiment(strings.ToLower(f.Sentiment)); v {
	case model.SentimentPositive, model.SentimentNeutral, model.SentimentNegative:
		e.Sentiment = v
	}
	switch v := model.Strength(strings.ToLower(f.Strength)); v {
	case model.StrengthWeak, model.StrengthStandard, model.StrengthStrong, model.StrengthEnthusiastic:
		e.Strength = v
	}
	if e.Confidence == model.ConfidenceConfirmed {
		e.Confidence = model.ConfidenceReported
	}
	if t, err := time.Parse("2006-01-02", f.EndorsedAt); err == nil {
		e.EndorsedAt = &t
	}
	return e
}

// ResolveCandidate matches a free-form name against known candidates: exact
// (case-insensitive), then containment either way, then any shared name part.
func ResolveCandidate(name string, candidates []model.Candidate) *model.Candidate {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == strings.ToLower(unknownCandidate) {
		return nil
	}
	for i := range candidates {
		if strings.ToLower(candidates[i].Name) == name {
			return &candidates[i]
		}
	}
	for i := range candidates {
		c := strings.ToLower(candidates[i].Name)
		if strings.Contains(c, name) || strings.Contains(name, c) {
			return &candidates[i]
		}
	}
	parts := strings.Fields(name)
	for i := range candidates {
		for _, cp := range strings.Fields(strings.ToLower(candidates[i].Name)) {
			for _, p := range parts {
				if strings.Contains(cp, p) || strings.Contains(p, cp) {
					return &candidates[i]
				}
			}
		}
	}
	return nil
}

func displayName(e *model.Endorser) string {
	if e.DisplayName != "" {
		return e.DisplayName
	}
	return e.Name
}

// Prompt is the question sent for one endorser.
func Prompt(endorserName string) string {
	return fmt.Sprintf(promptTemplate, endorserName, NoEndorsementMarker, NoEndorsementMarker)
}

const promptTemplate = `Search for recent news articles and statements about %s making endorsements for NYC mayor in 2025.

Please provide:
1. Any direct endorsements or statements of support for any NYC mayoral candidate
2. The source URL and title
3. Any relevant quotes
4. The date of the endorsement (if mentioned)
5. The type of endorsement (endorsement, un_endorsement, conditional, rumored)
6. Which candidate they endorsed (if mentioned)

If no endorsement is found, respond with exactly: "%s"

If endorsements are found, respond with ONLY valid JSON in this exact format:
{
  "endorsements": [
    {
      "source_url": "URL",
      "source_title": "Article title",
      "quote": "Relevant quote",
      "endorsement_type": "endorsement|un_endorsement|conditional|rumored",
      "sentiment": "positive|negative|neutral",
      "confidence": "high|medium|low",
      "strength": "weak|standard|strong|enthusiastic",
      "endorsed_at": "YYYY-MM-DD",
      "candidate_name": "Name of endorsed candidate"
    }
  ]
}

IMPORTANT: Respond with ONLY the JSON or "%s". Do not include any other text, explanations, or formatting.`
