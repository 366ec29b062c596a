package scraper

import (
	"encoding/json"
	"regexp"
	"strings"
)

// NoEndorsementMarker is the reply the prompt asks for when nothing is found.
const NoEndorsementMarker = "NO ENDORSEMENT FOUND"

const (
	unknownCandidate = "Unknown"
	fallbackTitle    = "Extracted from search results"
	fallbackQuoteLen = 300
)

// Found is one endorsement as reported by the model. Labels are kept verbatim.
type Found struct {
	EndorserName    string `json:"endorser_name"`
	CandidateName   string `json:"candidate_name"`
	SourceURL       string `json:"source_url"`
	SourceTitle     string `json:"source_title"`
	Quote           string `json:"quote"`
	EndorsementType string `json:"endorsement_type"`
	Sentiment       string `json:"sentiment"`
	Confidence      string `json:"confidence"`
	Strength        string `json:"strength"`
	EndorsedAt      string `json:"endorsed_at,omitempty"`
}

type reply struct {
	Endorsements []Found `json:"endorsements"`
}

var (
	fencedJSON = regexp.MustCompile("(?s)```json\\s*(\\{.*\\})\\s*```")
	firstURL   = regexp.MustCompile(`https?://[^\s]+`)
	firstQuote = regexp.MustCompile(`"([^"]+)"`)
)

// candidateHints maps text fragments to candidate names, most specific first.
// No entry may contain an earlier one, or it could never match.
var candidateHints = []struct{ search, name string }{
	{"zohran mamdani", "Zohran Mamdani"},
	{"eric adams", "Eric Adams"},
	{"andrew cuomo", "Andrew Cuomo"},
	{"curtis sliwa", "Curtis Sliwa"},
	{"mayor adams", "Eric Adams"},
	{"governor cuomo", "Andrew Cuomo"},
	{"mamdani", "Zohran Mamdani"},
	{"adams", "Eric Adams"},
	{"cuomo", "Andrew Cuomo"},
	{"sliwa", "Curtis Sliwa"},
}

// ParseReply reads a model reply in order of preference: the no-result marker,
// a bare JSON document, JSON in a ```json fence, then loose text.
func ParseReply(text, endorserName string) []Found {
	if strings.TrimSpace(text) == "" || strings.Contains(text, NoEndorsementMarker) {
		return nil
	}

	var r reply
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &r); err == nil {
		return withDefaults(r.Endorsements, endorserName)
	}
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		r = reply{}
		if err := json.Unmarshal([]byte(m[1]), &r); err == nil && r.Endorsements != nil {
			return withDefaults(r.Endorsements, endorserName)
		}
	}
	return extractFromText(text, endorserName)
}

func withDefaults(found []Found, endorserName string) []Found {
	for i := range found {
		found[i].EndorserName = endorserName
		if found[i].CandidateName == "" {
			found[i].CandidateName = unknownCandidate
		}
	}
	return found
}

// extractFromText salvages at most one record from unstructured text, and only
// when there is a URL, a quote, or endorsement wording to go on.
func extractFromText(text, endorserName string) []Found {
	lower := strings.ToLower(text)
	url := firstURL.FindString(text)
	quoteMatch := firstQuote.FindStringSubmatch(text)

	if url == "" && quoteMatch == nil && !strings.Contains(lower, "endors") && !strings.Contains(lower, "support") {
		return nil
	}

	candidate := unknownCandidate
	for _, h := range candidateHints {
		if strings.Contains(lower, h.search) {
			candidate = h.name
			break
		}
	}

	quote := ""
	if quoteMatch != nil {
		quote = quoteMatch[1]
	} else {
		quote = truncate(text, fallbackQuoteLen)
	}

	return []Found{{
		EndorserName:    endorserName,
		CandidateName:   candidate,
		SourceURL:       url,
		SourceTitle:     fallbackTitle,
		Quote:           quote,
		EndorsementType: "endorsement",
		Sentiment:       "positive",
		Confidence:      "reported",
		Strength:        "standard",
	}}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
