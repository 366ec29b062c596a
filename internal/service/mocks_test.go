package service_test

import (
	"context"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/endorsenyc-backend/internal/errors"
	"github.com/unclebandit/endorsenyc-backend/internal/feed"
	"github.com/unclebandit/endorsenyc-backend/internal/model"
	"github.com/unclebandit/endorsenyc-backend/internal/repository"
)

// Mock repositories

type MockCandidateRepo struct{ list []model.Candidate }

func (m *MockCandidateRepo) List(context.Context) ([]model.Candidate, error) { return m.list, nil }
func (m *MockCandidateRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Candidate, error) {
	for i := range m.list {
		if m.list[i].ID == id {
			return &m.list[i], nil
		}
	}
	return nil, appErrors.NewNotFound("candidate", id)
}

type MockEndorserRepo struct {
	list  []model.Endorser
	stats *model.EndorserStats
}

func (m *MockEndorserRepo) List(context.Context) ([]model.Endorser, error) { return m.list, nil }
func (m *MockEndorserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Endorser, error) {
	for i := range m.list {
		if m.list[i].ID == id {
			return &m.list[i], nil
		}
	}
	return nil, appErrors.NewNotFound("endorser", id)
}
func (m *MockEndorserRepo) Create(_ context.Context, e *model.Endorser) error {
	e.ID = uuid.New()
	m.list = append(m.list, *e)
	return nil
}
func (m *MockEndorserRepo) Stats(context.Context) (*model.EndorserStats, error) { return m.stats, nil }

type MockEndorsementRepo struct {
	rows    map[uuid.UUID]*model.Endorsement
	created []model.Endorsement
	exists  bool
	updated *model.Endorsement
	filters []repository.EndorsementFilter
	// beforeUpdate runs between a caller's read and its guarded write.
	beforeUpdate func()
}

func newEndorsementRepo(rows ...model.Endorsement) *MockEndorsementRepo {
	m := &MockEndorsementRepo{rows: map[uuid.UUID]*model.Endorsement{}}
	for i := range rows {
		m.rows[rows[i].ID] = &rows[i]
	}
	return m
}

func (m *MockEndorsementRepo) List(_ context.Context, f repository.EndorsementFilter) ([]model.Endorsement, error) {
	m.filters = append(m.filters, f)
	return []model.Endorsement{}, nil
}
func (m *MockEndorsementRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Endorsement, error) {
	e, ok := m.rows[id]
	if !ok {
		return nil, appErrors.NewNotFound("endorsement", id)
	}
	cp := *e
	return &cp, nil
}
func (m *MockEndorsementRepo) Create(_ context.Context, e *model.Endorsement) error {
	e.ID = uuid.New()
	m.created = append(m.created, *e)
	return nil
}
func (m *MockEndorsementRepo) Exists(context.Context, uuid.UUID, uuid.UUID, string) (bool, error) {
	return m.exists, nil
}
func (m *MockEndorsementRepo) UpdateVerification(_ context.Context, e *model.Endorsement) error {
	if m.beforeUpdate != nil {
		m.beforeUpdate()
	}
	if stored, ok := m.rows[e.ID]; ok {
		if !stored.Confidence.Narrows(e.Confidence) {
			return appErrors.ErrConfidenceDowngrade
		}
		stored.Confidence = e.Confidence
	}
	m.updated = e
	return nil
}
func (m *MockEndorsementRepo) Retract(_ context.Context, id uuid.UUID, reason string, at time.Time) error {
	e, ok := m.rows[id]
	if !ok {
		return appErrors.NewNotFound("endorsement", id)
	}
	if e.IsRetracted {
		return appErrors.ErrAlreadyRetracted
	}
	e.IsRetracted = true
	e.RetractionReason = reason
	e.RetractedAt = &at
	return nil
}

type MockReviewRepo struct {
	rows     map[uuid.UUID]*model.ReviewCandidate
	approved []model.Endorsement
}

func newReviewRepo(rows ...model.ReviewCandidate) *MockReviewRepo {
	m := &MockReviewRepo{rows: map[uuid.UUID]*model.ReviewCandidate{}}
	for i := range rows {
		m.rows[rows[i].ID] = &rows[i]
	}
	return m
}

func (m *MockReviewRepo) Create(_ context.Context, rc *model.ReviewCandidate) error {
	rc.ID = uuid.New()
	m.rows[rc.ID] = rc
	return nil
}
func (m *MockReviewRepo) GetByID(_ context.Context, id uuid.UUID) (*model.ReviewCandidate, error) {
	rc, ok := m.rows[id]
	if !ok {
		return nil, appErrors.NewNotFound("review candidate", id)
	}
	cp := *rc
	return &cp, nil
}
func (m *MockReviewRepo) ListPending(context.Context, int) ([]model.ReviewCandidate, error) {
	var out []model.ReviewCandidate
	for _, rc := range m.rows {
		if rc.Status == model.ReviewPending {
			out = append(out, *rc)
		}
	}
	return out, nil
}
func (m *MockReviewRepo) Approve(_ context.Context, id uuid.UUID, e *model.Endorsement) error {
	rc, ok := m.rows[id]
	if !ok {
		return appErrors.NewNotFound("review candidate", id)
	}
	if rc.Status != model.ReviewPending {
		return appErrors.ErrAlreadyReviewed
	}
	e.ID = uuid.New()
	rc.Status = model.ReviewApproved
	rc.EndorsementID = &e.ID
	m.approved = append(m.approved, *e)
	return nil
}
func (m *MockReviewRepo) Reject(_ context.Context, id uuid.UUID) error {
	rc, ok := m.rows[id]
	if !ok {
		return appErrors.NewNotFound("review candidate", id)
	}
	if rc.Status != model.ReviewPending {
		return appErrors.ErrAlreadyReviewed
	}
	rc.Status = model.ReviewRejected
	return nil
}
func (m *MockReviewRepo) DeleteReviewedBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type MockMaintenanceRepo struct {
	groups []model.DuplicateGroup
}

func (m *MockMaintenanceRepo) DuplicateGroups(context.Context) ([]model.DuplicateGroup, error) {
	return m.groups, nil
}
func (m *MockMaintenanceRepo) Dedupe(context.Context) (*repository.DedupeReport, error) {
	return &repository.DedupeReport{Endorsements: 2}, nil
}

type MockFeedRepo struct {
	list    []model.Feed
	created []model.Feed
	stats   *model.FeedStats
}

func (m *MockFeedRepo) ListActive(context.Context) ([]model.Feed, error)   { return m.list, nil }
func (m *MockFeedRepo) ListPriority(context.Context) ([]model.Feed, error) { return nil, nil }
func (m *MockFeedRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Feed, error) {
	for i := range m.list {
		if m.list[i].ID == id {
			return &m.list[i], nil
		}
	}
	return nil, appErrors.NewNotFound("feed", id)
}
func (m *MockFeedRepo) Create(_ context.Context, f *model.Feed) error {
	f.ID = uuid.New()
	m.created = append(m.created, *f)
	return nil
}
func (m *MockFeedRepo) RecordCheck(context.Context, uuid.UUID, time.Time, error) error { return nil }
func (m *MockFeedRepo) Stats(context.Context) (*model.FeedStats, error)                { return m.stats, nil }

type MockTester struct {
	url string
}

func (m *MockTester) Test(_ context.Context, rawURL string) (*feed.TestResult, error) {
	m.url = rawURL
	return &feed.TestResult{Title: "City Hall News", ItemCount: 3}, nil
}
