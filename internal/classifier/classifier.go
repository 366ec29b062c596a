// Package classifier scores free text for endorsement likelihood using fixed keyword tables
// and additive weights. It performs no I/O and never fails.
package classifier

import (
	"fmt"
	"math"
	"strings"

	"github.com/unclebandit/endorsenyc-backend/internal/model"
)

// Input is the text to classify plus light source metadata.
type Input struct {
	Text         string           `json:"text"`
	SourceURL    string           `json:"source_url"`
	SourceType   model.SourceType `json:"source_type"`
	Author       string           `json:"author,omitempty"`
	Organization string           `json:"organization,omitempty"`
}

// EndorserInfo echoes the author of the text when one was given.
type EndorserInfo struct {
	Name         string `json:"name"`
	Organization string `json:"organization,omitempty"`
}

// Result is the classifier's verdict for one Input.
type Result struct {
	RawText             string                `json:"raw_text"`
	SourceURL           string                `json:"source_url"`
	SourceType          model.SourceType      `json:"source_type"`
	CandidateMentions   []string              `json:"candidate_mentions"`
	EndorserInfo        *EndorserInfo         `json:"endorser_info,omitempty"`
	Confidence          float64               `json:"confidence"`
	EndorsementType     model.EndorsementType `json:"endorsement_type"`
	Sentiment           model.Sentiment       `json:"sentiment"`
	RequiresHumanReview bool                  `json:"requires_human_review"`
	AutoApprove         bool                  `json:"auto_approve"`
	Reasoning           string                `json:"reasoning"`
}

type Classifier struct {
	rules *Rules
}

// New builds a classifier over rules; nil means the embedded defaults.
func New(rules *Rules) *Classifier {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// Rules exposes the active tables (read-only by convention).
func (c *Classifier) Rules() *Rules {
	return c.rules
}

// Classify scores in. Any input, including empty text, yields a result.
func (c *Classifier) Classify(in Input) Result {
	// Padding lets space-delimited phrases such as " endorse " match at either end.
	text := " " + strings.ToLower(in.Text) + " "

	mentions := c.CandidateMentions(text)
	hasPhrase := containsAny(text, c.rules.Phrases)
	sentiment := c.sentiment(text)
	endorsementType := c.endorsementType(text)
	confidence := c.confidence(hasPhrase, len(mentions), sentiment, in.SourceType, in.Author != "")

	res := Result{
		RawText:             in.Text,
		SourceURL:           in.SourceURL,
		SourceType:          in.SourceType,
		CandidateMentions:   mentions,
		Confidence:          confidence,
		EndorsementType:     endorsementType,
		Sentiment:           sentiment,
		RequiresHumanReview: confidence < c.rules.Thresholds.HumanReview,
		AutoApprove:         confidence >= c.rules.Thresholds.AutoApprove,
		Reasoning:           c.reasoning(hasPhrase, len(mentions), sentiment, confidence),
	}
	if in.Author != "" {
		res.EndorserInfo = &EndorserInfo{Name: in.Author, Organization: in.Organization}
	}
	return res
}

// CandidateMentions returns each known candidate whose variants occur in text, once per
// candidate, in table order. text is matched case-insensitively.
func (c *Classifier) CandidateMentions(text string) []string {
	text = strings.ToLower(text)
	mentions := []string{}
	for _, cand := range c.rules.Candidates {
		if containsAny(text, cand.Variants) {
			mentions = append(mentions, cand.Name)
		}
	}
	return mentions
}

func (c *Classifier) sentiment(text string) model.Sentiment {
	pos := countHits(text, c.rules.Sentiment.Positive)
	neg := countHits(text, c.rules.Sentiment.Negative)
	switch {
	case pos > neg:
		return model.SentimentPositive
	case neg > pos:
		return model.SentimentNegative
	default:
		return model.SentimentNeutral
	}
}

func (c *Classifier) endorsementType(text string) model.EndorsementType {
	for _, rule := range c.rules.Types {
		if containsAny(text, rule.Markers) {
			return rule.Type
		}
	}
	return model.TypeEndorsement
}

func (c *Classifier) confidence(hasPhrase bool, mentions int, sentiment model.Sentiment, source model.SourceType, hasAuthor bool) float64 {
	w := c.rules.Weights
	score := w.Base
	if hasPhrase {
		score += w.Phrase
	}
	score += math.Min(w.MaxMentions, w.PerMention*float64(mentions))
	switch sentiment {
	case model.SentimentPositive:
		score += w.Sentiment
	case model.SentimentNegative:
		score -= w.Sentiment
	}
	score += c.rules.SourceBonus[source]
	if hasAuthor {
		score += w.Author
	}
	return round(clamp(score, 0, 1))
}

func (c *Classifier) reasoning(hasPhrase bool, mentions int, sentiment model.Sentiment, confidence float64) string {
	var reasons []string
	if hasPhrase {
		reasons = append(reasons, "Contains explicit endorsement language")
	}
	if mentions > 0 {
		reasons = append(reasons, fmt.Sprintf("Mentions %d candidate(s)", mentions))
	}
	switch sentiment {
	case model.SentimentPositive:
		reasons = append(reasons, "Positive sentiment detected")
	case model.SentimentNegative:
		reasons = append(reasons, "Negative sentiment detected")
	}
	switch {
	case confidence >= c.rules.Thresholds.AutoApprove:
		reasons = append(reasons, "High confidence classification")
	case confidence >= c.rules.Thresholds.HumanReview:
		reasons = append(reasons, "Medium confidence - human review recommended")
	default:
		reasons = append(reasons, "Low confidence - requires human verification")
	}
	return strings.Join(reasons, "; ")
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func countHits(text string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if strings.Contains(text, k) {
			n++
		}
	}
	return n
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// round trims float noise from the additive weights (0.5+0.1+0.1 != 0.7 otherwise).
func round(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
