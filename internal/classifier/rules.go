package classifier

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/unclebandit/endorsenyc-backend/internal/model"
)

//go:embed rules.yaml
var defaultRules []byte

// CandidateRule maps a canonical candidate name to the spellings and handles that identify it.
type CandidateRule struct {
	Name     string   `yaml:"name"`
	Variants []string `yaml:"variants"`
}

// TypeRule assigns an endorsement type when any marker is present.
type TypeRule struct {
	Type    model.EndorsementType `yaml:"type"`
	Markers []string              `yaml:"markers"`
}

type Weights struct {
	Base        float64 `yaml:"base"`
	Phrase      float64 `yaml:"phrase"`
	PerMention  float64 `yaml:"per_mention"`
	MaxMentions float64 `yaml:"max_mentions"`
	Sentiment   float64 `yaml:"sentiment"`
	Author      float64 `yaml:"author"`
}

type Thresholds struct {
	HumanReview float64 `yaml:"human_review"`
	AutoApprove float64 `yaml:"auto_approve"`
}

// Rules is the complete, data-driven configuration of the classifier.
type Rules struct {
	Phrases    []string        `yaml:"phrases"`
	Candidates []CandidateRule `yaml:"candidates"`
	Sentiment  struct {
		Positive []string `yaml:"positive"`
		Negative []string `yaml:"negative"`
	} `yaml:"sentiment"`
	Types       []TypeRule                   `yaml:"types"`
	Weights     Weights                      `yaml:"weights"`
	SourceBonus map[model.SourceType]float64 `yaml:"source_bonus"`
	Thresholds  Thresholds                   `yaml:"thresholds"`
}

// DefaultRules returns the rules shipped with the binary.
func DefaultRules() *Rules {
	r, err := ParseRules(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("classifier: embedded rules are invalid: %v", err))
	}
	return r
}

// LoadRules reads rules from path, or returns the defaults when path is empty.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("classifier: read rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes and validates a YAML rules document. Keywords are lower-cased
// so that matching against lower-cased text stays case-insensitive.
func ParseRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("classifier: parse rules: %w", err)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	r.normalize()
	return &r, nil
}

func (r *Rules) validate() error {
	if len(r.Phrases) == 0 {
		return fmt.Errorf("classifier: rules need at least one endorsement phrase")
	}
	seen := make(map[string]bool, len(r.Candidates))
	for _, c := range r.Candidates {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("classifier: candidate rule without a name")
		}
		if len(c.Variants) == 0 {
			return fmt.Errorf("classifier: candidate %q has no variants", c.Name)
		}
		if seen[strings.ToLower(c.Name)] {
			return fmt.Errorf("classifier: candidate %q listed twice", c.Name)
		}
		seen[strings.ToLower(c.Name)] = true
	}
	if r.Thresholds.HumanReview <= 0 || r.Thresholds.HumanReview > 1 {
		return fmt.Errorf("classifier: human_review threshold must be in (0,1]")
	}
	if r.Thresholds.AutoApprove < r.Thresholds.HumanReview {
		return fmt.Errorf("classifier: auto_approve threshold below human_review threshold")
	}
	return nil
}

func (r *Rules) normalize() {
	r.Phrases = lowerAll(r.Phrases)
	for i := range r.Candidates {
		r.Candidates[i].Name = strings.ToLower(strings.TrimSpace(r.Candidates[i].Name))
		r.Candidates[i].Variants = lowerAll(r.Candidates[i].Variants)
	}
	r.Sentiment.Positive = lowerAll(r.Sentiment.Positive)
	r.Sentiment.Negative = lowerAll(r.Sentiment.Negative)
	for i := range r.Types {
		r.Types[i].Markers = lowerAll(r.Types[i].Markers)
	}
}

// lowerAll lower-cases keywords but keeps their padding spaces, which act as word boundaries.
func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		out = append(out, strings.ToLower(s))
	}
	return out
}
