package scraper_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/endorsenyc-backend/internal/errors"
	"github.com/unclebandit/endorsenyc-backend/internal/model"
	"github.com/unclebandit/endorsenyc-backend/internal/repository"
	"github.com/unclebandit/endorsenyc-backend/internal/scraper"
)

type fakeSearcher struct {
	replies map[string]string
	err     error
	prompts []string
}

func (f *fakeSearcher) Search(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	for name, reply := range f.replies {
		if strings.Contains(prompt, name) {
			return reply, nil
		}
	}
	return scraper.NoEndorsementMarker, nil
}

type mockEndorsers struct{ list []model.Endorser }

func (m *mockEndorsers) List(context.Context) ([]model.Endorser, error) { return m.list, nil }
func (m *mockEndorsers) GetByID(_ context.Context, id uuid.UUID) (*model.Endorser, error) {
	for i := range m.list {
		if m.list[i].ID == id {
			return &m.list[i], nil
		}
	}
	return nil, appErrors.NewNotFound("endorser", id)
}
func (m *mockEndorsers) Create(context.Context, *model.Endorser) error       { return nil }
func (m *mockEndorsers) Stats(context.Context) (*model.EndorserStats, error) { return nil, nil }

type mockCandidates struct{ list []model.Candidate }

func (m *mockCandidates) List(context.Context) ([]model.Candidate, error) { return m.list, nil }
func (m *mockCandidates) GetByID(_ context.Context, id uuid.UUID) (*model.Candidate, error) {
	for i := range m.list {
		if m.list[i].ID == id {
			return &m.list[i], nil
		}
	}
	return nil, appErrors.NewNotFound("candidate", id)
}

type mockEndorsements struct {
	created   []model.Endorsement
	exists    bool
	existsErr error
}

func (m *mockEndorsements) List(context.Context, repository.EndorsementFilter) ([]model.Endorsement, error) {
	return m.created, nil
}
func (m *mockEndorsements) GetByID(_ context.Context, id uuid.UUID) (*model.Endorsement, error) {
	return nil, appErrors.NewNotFound("endorsement", id)
}
func (m *mockEndorsements) Create(_ context.Context, e *model.Endorsement) error {
	e.ID = uuid.New()
	m.created = append(m.created, *e)
	return nil
}
func (m *mockEndorsements) Exists(context.Context, uuid.UUID, uuid.UUID, string) (bool, error) {
	return m.exists, m.existsErr
}
func (m *mockEndorsements) UpdateVerification(context.Context, *model.Endorsement) error { return nil }
func (m *mockEndorsements) Retract(context.Context, uuid.UUID, string, time.Time) error  { return nil }

var (
	mamdani = model.Candidate{ID: uuid.New(), Name: "Zohran Mamdani"}
	cuomo   = model.Candidate{ID: uuid.New(), Name: "Andrew Cuomo"}
	aoc     = model.Endorser{ID: uuid.New(), Name: "Alexandria Ocasio-Cortez", DisplayName: "AOC"}
	union   = model.Endorser{ID: uuid.New(), Name: "Hotel Trades Council"}
)

const aocReply = `{"endorsements":[{"source_url":"https://example.com/aoc","source_title":"AOC backs Mamdani",
"quote":"He has my vote","endorsement_type":"endorsement","sentiment":"positive","confidence":"high",
"strength":"enthusiastic","endorsed_at":"2025-06-01","candidate_name":"Zohran Mamdani"}]}`

func newScraper(s *fakeSearcher, es *mockEndorsements) *scraper.Scraper {
	return scraper.New(s,
		&mockEndorsers{list: []model.Endorser{aoc, union}},
		&mockCandidates{list: []model.Candidate{mamdani, cuomo}},
		es, 0, nil)
}

func TestParseReply(t *testing.T) {
	t.Run("no endorsement marker", func(t *testing.T) {
		assert.Nil(t, scraper.ParseReply(scraper.NoEndorsementMarker, "X"))
		assert.Nil(t, scraper.ParseReply("  ", "X"))
	})

	t.Run("bare json", func(t *testing.T) {
		found := scraper.ParseReply(aocReply, "AOC")
		require.Len(t, found, 1)
		assert.Equal(t, "AOC", found[0].EndorserName)
		assert.Equal(t, "Zohran Mamdani", found[0].CandidateName)
		assert.Equal(t, "high", found[0].Confidence)
	})

	t.Run("json without endorsements yields nothing", func(t *testing.T) {
		assert.Empty(t, scraper.ParseReply(`{"note":"nothing"}`, "AOC"))
	})

	t.Run("fenced json", func(t *testing.T) {
		text := "Here is what I found:\n```json\n" + aocReply + "\n```\nHope that helps."
		found := scraper.ParseReply(text, "AOC")
		require.Len(t, found, 1)
		assert.Equal(t, "https://example.com/aoc", found[0].SourceURL)
	})

	t.Run("missing candidate defaults to Unknown", func(t *testing.T) {
		found := scraper.ParseReply(`{"endorsements":[{"source_url":"https://x.test"}]}`, "AOC")
		require.Len(t, found, 1)
		assert.Equal(t, "Unknown", found[0].CandidateName)
	})

	t.Run("text fallback", func(t *testing.T) {
		text := `Reports say the union will support Cuomo: "We stand with Andrew" https://news.test/a`
		found := scraper.ParseReply(text, "Hotel Trades Council")
		require.Len(t, found, 1)
		assert.Equal(t, "Andrew Cuomo", found[0].CandidateName)
		assert.Equal(t, "We stand with Andrew", found[0].Quote)
		assert.Equal(t, "https://news.test/a", found[0].SourceURL)
		assert.Equal(t, "Extracted from search results", found[0].SourceTitle)
		assert.Equal(t, "reported", found[0].Confidence)
	})

	t.Run("full name beats surname hint", func(t *testing.T) {
		found := scraper.ParseReply("they endorse Zohran Mamdani over Adams", "X")
		require.Len(t, found, 1)
		assert.Equal(t, "Zohran Mamdani", found[0].CandidateName)
	})

	t.Run("prose without signals", func(t *testing.T) {
		assert.Empty(t, scraper.ParseReply("I could not find anything relevant.", "X"))
	})
}

func TestResolveCandidate(t *testing.T) {
	candidates := []model.Candidate{mamdani, cuomo}
	tests := []struct {
		name string
		in   string
		want *model.Candidate
	}{
		{"exact", "zohran mamdani", &mamdani},
		{"contained", "Mamdani", &mamdani},
		{"containing", "Governor Andrew Cuomo Jr", &cuomo},
		{"name part", "Andy Cuomo", &cuomo},
		{"unknown", "Unknown", nil},
		{"empty", "", nil},
		{"no match", "Curtis Sliwa", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scraper.ResolveCandidate(tt.in, candidates)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want.ID, got.ID)
		})
	}
}

func TestScrapeAll(t *testing.T) {
	s := &fakeSearcher{replies: map[string]string{aoc.Name: aocReply}}
	es := &mockEndorsements{}

	res, err := newScraper(s, es).Run(context.Background(), scraper.Request{Type: scraper.ModeAll})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Searched)
	assert.Equal(t, 1, res.Saved)
	assert.Len(t, res.Found, 1)
	require.Len(t, es.created, 1)

	e := es.created[0]
	assert.Equal(t, aoc.ID, e.EndorserID)
	assert.Equal(t, mamdani.ID, e.CandidateID)
	assert.Equal(t, model.SourceWebsite, e.SourceType)
	// high is capped at reported until a human verifies it
	assert.Equal(t, model.ConfidenceReported, e.Confidence)
	assert.Equal(t, model.StrengthEnthusiastic, e.Strength)
	require.NotNil(t, e.EndorsedAt)
	assert.Equal(t, "2025-06-01", e.EndorsedAt.Format("2006-01-02"))
	assert.Contains(t, s.prompts[0], scraper.NoEndorsementMarker)
}

func TestScrapeDefaultsAndSkips(t *testing.T) {
	reply := `{"endorsements":[
        {"source_url":"https://a.test","candidate_name":"Andrew Cuomo","endorsement_type":"bogus","confidence":"low"},
        {"source_url":"https://b.test","candidate_name":"Someone Else"}]}`
	s := &fakeSearcher{replies: map[string]string{union.Name: reply}}
	es := &mockEndorsements{}

	res, err := newScraper(s, es).Run(context.Background(), scraper.Request{Type: scraper.ModeEndorser, ID: &union.ID})
	require.NoError(t, err)

	assert.Equal(t, "Hotel Trades Council", res.EndorserName)
	assert.Equal(t, 1, res.Saved)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, es.created, 1)
	assert.Equal(t, model.TypeEndorsement, es.created[0].EndorsementType)
	assert.Equal(t, model.ConfidenceRumored, es.created[0].Confidence)
	assert.Equal(t, "Unknown Source", es.created[0].SourceTitle)
	assert.Nil(t, es.created[0].EndorsedAt)
}

func TestScrapeSkipsExisting(t *testing.T) {
	s := &fakeSearcher{replies: map[string]string{aoc.Name: aocReply}}
	es := &mockEndorsements{exists: true}

	res, err := newScraper(s, es).Run(context.Background(), scraper.Request{Type: scraper.ModeEndorser, ID: &aoc.ID})
	require.NoError(t, err)
	assert.Equal(t, "AOC", res.EndorserName)
	assert.Equal(t, 0, res.Saved)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, es.created)
}

func TestScrapeExistsErrorSavesNothing(t *testing.T) {
	s := &fakeSearcher{replies: map[string]string{aoc.Name: aocReply}}
	es := &mockEndorsements{existsErr: errors.New("connection reset")}

	res, err := newScraper(s, es).Run(context.Background(), scraper.Request{Type: scraper.ModeEndorser, ID: &aoc.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Saved)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 1, res.Errors)
	assert.Len(t, res.Found, 1)
	assert.Empty(t, es.created)
}

// cancelingSearcher ends the run after answering its first prompt.
type cancelingSearcher struct {
	reply  string
	cancel context.CancelFunc
	calls  int
}

func (c *cancelingSearcher) Search(context.Context, string) (string, error) {
	c.calls++
	c.cancel()
	return c.reply, nil
}

func TestScrapeAllKeepsPartialResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &cancelingSearcher{reply: aocReply, cancel: cancel}
	es := &mockEndorsements{}
	sc := scraper.New(s,
		&mockEndorsers{list: []model.Endorser{aoc, union}},
		&mockCandidates{list: []model.Candidate{mamdani, cuomo}},
		es, 0, nil)

	res, err := sc.Run(ctx, scraper.Request{Type: scraper.ModeAll})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.True(t, res.Incomplete)
	assert.Equal(t, 1, s.calls)
	assert.Equal(t, 1, res.Searched)
	assert.Equal(t, 1, res.Saved)
	assert.Len(t, es.created, 1)
}

func TestCandidateHintsPreferSpecificForms(t *testing.T) {
	found := scraper.ParseReply("Governor Cuomo thanked Mamdani voters, https://news.test/a", "Someone")
	require.Len(t, found, 1)
	assert.Equal(t, "Andrew Cuomo", found[0].CandidateName)

	found = scraper.ParseReply("Mayor Adams spoke after Sliwa, https://news.test/b", "Someone")
	require.Len(t, found, 1)
	assert.Equal(t, "Eric Adams", found[0].CandidateName)
}

func TestScrapeCandidateFiltersResults(t *testing.T) {
	s := &fakeSearcher{replies: map[string]string{aoc.Name: aocReply}}
	es := &mockEndorsements{}

	res, err := newScraper(s, es).Run(context.Background(), scraper.Request{Type: scraper.ModeCandidate, ID: &cuomo.ID})
	require.NoError(t, err)
	assert.Equal(t, "Andrew Cuomo", res.CandidateName)
	assert.Equal(t, 2, res.Searched)
	assert.Empty(t, res.Found)
	assert.Empty(t, es.created)

	res, err = newScraper(s, es).Run(context.Background(), scraper.Request{Type: scraper.ModeCandidate, ID: &mamdani.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Saved)
}

func TestScrapeSearchErrorContinues(t *testing.T) {
	s := &fakeSearcher{err: errors.New("rate limited")}
	res, err := newScraper(s, &mockEndorsements{}).Run(context.Background(), scraper.Request{Type: scraper.ModeAll})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Searched)
	assert.Equal(t, 0, res.Saved)
}

func TestRunValidation(t *testing.T) {
	sc := newScraper(&fakeSearcher{}, &mockEndorsements{})

	_, err := sc.Run(context.Background(), scraper.Request{Type: "everything"})
	assert.True(t, appErrors.IsValidation(err))

	_, err = sc.Run(context.Background(), scraper.Request{Type: scraper.ModeEndorser})
	assert.True(t, appErrors.IsValidation(err))

	missing := uuid.New()
	_, err = sc.Run(context.Background(), scraper.Request{Type: scraper.ModeCandidate, ID: &missing})
	assert.True(t, appErrors.IsNotFound(err))
}

func TestOpenAISearcher(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"m",
            "choices":[{"index":0,"message":{"role":"assistant","content":"NO ENDORSEMENT FOUND"},"finish_reason":"stop"}],
            "usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`))
	}))
	defer srv.Close()

	s := scraper.NewOpenAISearcher("test-key", "", srv.URL+"/v1", nil)
	reply, err := s.Search(context.Background(), scraper.Prompt("AOC"))
	require.NoError(t, err)

	assert.Equal(t, scraper.NoEndorsementMarker, reply)
	assert.Equal(t, scraper.DefaultModel, got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, "AOC making endorsements")
}

func TestOpenAISearcherEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","choices":[]}`))
	}))
	defer srv.Close()

	_, err := scraper.NewOpenAISearcher("k", "m", srv.URL, nil).Search(context.Background(), "hi")
	assert.Error(t, err)
}
