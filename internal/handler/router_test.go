package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/endorsenyc-backend/internal/classifier"
	"github.com/unclebandit/endorsenyc-backend/internal/controller"
	"github.com/unclebandit/endorsenyc-backend/internal/handler"
	"github.com/unclebandit/endorsenyc-backend/internal/model"
	"github.com/unclebandit/endorsenyc-backend/internal/pipeline"
	"github.com/unclebandit/endorsenyc-backend/internal/scraper"
	"github.com/unclebandit/endorsenyc-backend/internal/service"
)

type testAPI struct {
	handler      http.Handler
	endorsements *mockEndorsements
	reviews      *mockReviews
	producer     *pipeline.Producer
	// dbDown makes the readiness gate report the database as unreachable.
	dbDown bool
}

var (
	mamdani = model.Candidate{ID: uuid.New(), Name: "Zohran Mamdani"}
	aoc     = model.Endorser{ID: uuid.New(), Name: "Alexandria Ocasio-Cortez", DisplayName: "AOC", Category: model.CategoryPolitician, InfluenceScore: 96}
)

func newTestAPI(t *testing.T, sc *scraper.Scraper) *testAPI {
	t.Helper()
	ta := &testAPI{
		endorsements: &mockEndorsements{rows: map[uuid.UUID]*model.Endorsement{}},
		reviews:      &mockReviews{rows: map[uuid.UUID]*model.ReviewCandidate{}},
		producer:     pipeline.NewProducer(nil),
	}
	candidates := &mockCandidates{list: []model.Candidate{mamdani}}
	endorsers := &mockEndorsers{list: []model.Endorser{aoc}}
	feeds := &mockFeeds{}

	endorsementSvc := &service.EndorsementService{
		Endorsements: ta.endorsements,
		Endorsers:    endorsers,
		Candidates:   candidates,
		Reviews:      ta.reviews,
		Maintenance:  mockMaintenance{},
	}
	ta.handler = handler.NewRouter(&handler.API{
		Endorsements: &controller.EndorsementController{EndorsementService: endorsementSvc},
		Admin:        &controller.AdminController{EndorsementService: endorsementSvc, Scraper: sc},
		Reference:    &controller.ReferenceController{ReferenceService: &service.ReferenceService{Candidates: candidates, Endorsers: endorsers}},
		Feeds:        &controller.FeedController{FeedService: &service.FeedService{Feeds: feeds, Jobs: ta.producer}},
		Classify:     &handler.ClassifyHandler{Classifier: classifier.New(nil)},
		Status:       &handler.StatusHandler{Service: &service.StatusService{Feeds: feeds, Endorsers: endorsers, Jobs: ta.producer}},
		Sources:      &handler.SourcesHandler{Service: &service.SourceService{Feeds: feeds, Endorsers: endorsers}},
		Ready:        func() bool { return !ta.dbDown },
		Health: &handler.HealthHandler{Service: "server", Checks: map[string]handler.Check{
			"database": func(context.Context) error { return nil },
			"queue":    func(context.Context) error { return errors.New("not connected") },
		}},
	})
	return ta
}

func (ta *testAPI) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	ta.handler.ServeHTTP(w, req)

	var res map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res), w.Body.String())
	}
	return w, res
}

func TestHealth(t *testing.T) {
	ta := newTestAPI(t, nil)
	w, res := ta.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "degraded", res["status"])
	deps := res["dependencies"].(map[string]any)
	assert.Equal(t, "ok", deps["database"])
	assert.Equal(t, "not connected", deps["queue"])
}

func TestMetricsEndpoint(t *testing.T) {
	ta := newTestAPI(t, nil)
	ta.do(t, http.MethodPost, "/api/classify", `{"text":"I endorse Eric Adams","source_type":"twitter"}`)

	w, _ := ta.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "endorse_classification_confidence")
}

func TestReferenceRoutes(t *testing.T) {
	ta := newTestAPI(t, nil)

	w, res := ta.do(t, http.MethodGet, "/api/candidates", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, res["success"])
	assert.Len(t, res["candidates"], 1)

	w, res = ta.do(t, http.MethodPost, "/api/endorsers", `{"name":"UFT","category":"union","influence_score":80}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Endorser added successfully", res["message"])

	w, res = ta.do(t, http.MethodPost, "/api/endorsers", `{"name":"UFT","category":"guild","influence_score":80}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, res["error"], "category")

	w, _ = ta.do(t, http.MethodPost, "/api/endorsers", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEndorsementLifecycle(t *testing.T) {
	ta := newTestAPI(t, nil)

	body := `{"endorser_id":"` + aoc.ID.String() + `","candidate_id":"` + mamdani.ID.String() +
		`","source_url":"https://x.com/AOC/status/1","source_type":"twitter","confidence":"reported"}`
	w, res := ta.do(t, http.MethodPost, "/api/endorsements", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := res["endorsement"].(map[string]any)["id"].(string)

	w, _ = ta.do(t, http.MethodPost, "/api/endorsements/"+id+"/verify", `{"confidence":"rumored","verified_by":"desk"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, res = ta.do(t, http.MethodPost, "/api/endorsements/"+id+"/verify", `{"confidence":"confirmed","verified_by":"desk"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "confirmed", res["endorsement"].(map[string]any)["confidence"])

	w, _ = ta.do(t, http.MethodPost, "/api/endorsements/"+id+"/retract", `{"reason":"clarified"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = ta.do(t, http.MethodPost, "/api/endorsements/"+id+"/retract", `{"reason":"again"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = ta.do(t, http.MethodPost, "/api/endorsements/"+uuid.NewString()+"/retract", `{"reason":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = ta.do(t, http.MethodPost, "/api/endorsements/not-a-uuid/retract", `{"reason":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, res = ta.do(t, http.MethodGet, "/api/endorsements?candidate_id="+mamdani.ID.String()+"&include_retracted=true", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, res["endorsements"], 1)
	require.NotNil(t, ta.endorsements.filter.CandidateID)
	assert.Equal(t, mamdani.ID, *ta.endorsements.filter.CandidateID)
	assert.True(t, ta.endorsements.filter.IncludeRetracted)

	w, _ = ta.do(t, http.MethodGet, "/api/endorsements?endorser_id=nope", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClassifyRoute(t *testing.T) {
	ta := newTestAPI(t, nil)
	w, res := ta.do(t, http.MethodPost, "/api/classify",
		`{"text":"I'm proud to endorse Zohran Mamdani for mayor","source_type":"twitter","author":"AOC"}`)
	require.Equal(t, http.StatusOK, w.Code)
	result := res["result"].(map[string]any)
	assert.Equal(t, 1.0, result["confidence"])
	assert.Equal(t, false, result["requires_human_review"])
	assert.Equal(t, []any{"zohran mamdani"}, result["candidate_mentions"])

	w, _ = ta.do(t, http.MethodPost, "/api/classify", `{"text":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClassifyRoute_EmptyTextScoresLow(t *testing.T) {
	ta := newTestAPI(t, nil)

	w, res := ta.do(t, http.MethodPost, "/api/classify", `{"text":""}`)
	require.Equal(t, http.StatusOK, w.Code)
	result := res["result"].(map[string]any)
	assert.Equal(t, 0.5, result["confidence"])
	assert.Equal(t, true, result["requires_human_review"])
	assert.Equal(t, []any{}, result["candidate_mentions"])

	w, res = ta.do(t, http.MethodPost, "/api/classify", `{"text":"","source_type":"press_release","author":"UFT"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 0.75, res["result"].(map[string]any)["confidence"], 1e-9)
}

func TestAdminReviewRoutes(t *testing.T) {
	ta := newTestAPI(t, nil)
	rc := &model.ReviewCandidate{
		ID:                uuid.New(),
		SourceURL:         "https://x.com/AOC/status/9",
		Author:            "AOC",
		CandidateMentions: []string{"zohran mamdani"},
		Status:            model.ReviewPending,
	}
	other := &model.ReviewCandidate{ID: uuid.New(), Status: model.ReviewPending}
	ta.reviews.rows[rc.ID] = rc
	ta.reviews.rows[other.ID] = other

	w, res := ta.do(t, http.MethodGet, "/api/admin/queue", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, res["pending_review"], 2)

	w, _ = ta.do(t, http.MethodPost, "/api/admin/review/"+rc.ID.String()+"/approve", "")
	assert.Equal(t, http.StatusCreated, w.Code)
	w, _ = ta.do(t, http.MethodPost, "/api/admin/review/"+rc.ID.String()+"/approve", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = ta.do(t, http.MethodPost, "/api/admin/review/"+other.ID.String()+"/reject", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = ta.do(t, http.MethodPost, "/api/admin/review/"+uuid.NewString()+"/reject", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFeedRoutesWithoutBroker(t *testing.T) {
	ta := newTestAPI(t, nil)

	w, _ := ta.do(t, http.MethodPost, "/api/rss/feeds", `{"name":"NY1","url":"https://ny1.test/rss","keywords":["mayor"]}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	w, res := ta.do(t, http.MethodGet, "/api/rss/feeds", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, res["feeds"], 1)

	w, _ = ta.do(t, http.MethodPost, "/api/rss/check", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w, res = ta.do(t, http.MethodGet, "/api/system-status", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, res["queue_error"])
	assert.EqualValues(t, 1, res["rss_feeds"].(map[string]any)["active_feeds"])
}

func TestScrapeRoute(t *testing.T) {
	ta := newTestAPI(t, nil)
	w, _ := ta.do(t, http.MethodPost, "/api/admin/scrape-endorsements", `{"type":"all"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	reply := `{"endorsements":[{"source_url":"https://a.test/1","candidate_name":"Zohran Mamdani","confidence":"high"}]}`
	sc := scraper.New(stubSearcher(reply), &mockEndorsers{list: []model.Endorser{aoc}},
		&mockCandidates{list: []model.Candidate{mamdani}}, ta.endorsements, 0, nil)
	ta = newTestAPI(t, sc)

	w, res := ta.do(t, http.MethodPost, "/api/admin/scrape-endorsements", `{"type":"endorser","id":"`+aoc.ID.String()+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Scraped endorsements for AOC", res["message"])
	assert.Equal(t, "AOC", res["endorserName"])
	assert.EqualValues(t, 1, res["saved"])

	w, _ = ta.do(t, http.MethodPost, "/api/admin/scrape-endorsements", `{"type":"endorser"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type stubSearcher string

func (s stubSearcher) Search(context.Context, string) (string, error) { return string(s), nil }

// deadlineSearcher answers once and then ends the request context.
type deadlineSearcher struct {
	reply  string
	cancel context.CancelFunc
}

func (s deadlineSearcher) Search(context.Context, string) (string, error) {
	s.cancel()
	return s.reply, nil
}

func TestScrapeRoute_TimeoutReturnsPartialResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reply := `{"endorsements":[{"source_url":"https://a.test/1","candidate_name":"Zohran Mamdani","confidence":"high"}]}`
	second := model.Endorser{ID: uuid.New(), Name: "Hotel Trades Council"}
	ta := newTestAPI(t, nil)
	sc := scraper.New(deadlineSearcher{reply: reply, cancel: cancel}, &mockEndorsers{list: []model.Endorser{aoc, second}},
		&mockCandidates{list: []model.Candidate{mamdani}}, ta.endorsements, 0, nil)
	ta = newTestAPI(t, sc)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/scrape-endorsements", strings.NewReader(`{"type":"all"}`)).WithContext(ctx)
	w := httptest.NewRecorder()
	ta.handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusGatewayTimeout, w.Code, w.Body.String())
	var res map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, false, res["success"])
	assert.Equal(t, true, res["incomplete"])
	assert.EqualValues(t, 1, res["searched"])
	assert.EqualValues(t, 1, res["saved"])
	assert.Len(t, res["results"], 1)
}

func TestSources(t *testing.T) {
	ta := newTestAPI(t, nil)
	w, _ := ta.do(t, http.MethodPost, "/api/rss/feeds", `{"name":"City & State","url":"https://cityandstateny.test/rss"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w, res := ta.do(t, http.MethodGet, "/api/sources", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), res["totalFeeds"])

	categories := res["categories"].([]any)
	require.Len(t, categories, 8)
	politics := categories[0].(map[string]any)
	assert.Equal(t, "Political News", politics["name"])
	assert.Equal(t, []any{"City & State"}, politics["allSources"])
	monitors := categories[7].(map[string]any)
	assert.Equal(t, "endorser-specific", monitors["key"])
	assert.Equal(t, []any{"Alexandria Ocasio-Cortez Mentions", "AOC Mentions"}, monitors["allSources"])
}

func TestReadinessGate(t *testing.T) {
	ta := newTestAPI(t, nil)
	ta.dbDown = true

	w, res := ta.do(t, http.MethodGet, "/api/candidates", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "5", w.Header().Get("Retry-After"))
	assert.Equal(t, "database unavailable", res["error"])

	w, _ = ta.do(t, http.MethodGet, "/api/sources", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w, _ = ta.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = ta.do(t, http.MethodPost, "/api/classify", `{"text":"AOC endorses Zohran Mamdani for mayor"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	ta.dbDown = false
	w, _ = ta.do(t, http.MethodGet, "/api/candidates", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
