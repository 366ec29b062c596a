package handler_test

import (
	"context"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/endorsenyc-backend/internal/errors"
	"github.com/unclebandit/endorsenyc-backend/internal/model"
	"github.com/unclebandit/endorsenyc-backend/internal/repository"
)

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
func (m *mockEndorsers) Create(_ context.Context, e *model.Endorser) error {
	e.ID = uuid.New()
	return nil
}
func (m *mockEndorsers) Stats(context.Context) (*model.EndorserStats, error) {
	return &model.EndorserStats{TotalEndorsers: len(m.list), ByCategory: map[string]int{}}, nil
}

type mockEndorsements struct {
	rows   map[uuid.UUID]*model.Endorsement
	filter repository.EndorsementFilter
}

func (m *mockEndorsements) List(_ context.Context, f repository.EndorsementFilter) ([]model.Endorsement, error) {
	m.filter = f
	out := []model.Endorsement{}
	for _, e := range m.rows {
		out = append(out, *e)
	}
	return out, nil
}
func (m *mockEndorsements) GetByID(_ context.Context, id uuid.UUID) (*model.Endorsement, error) {
	e, ok := m.rows[id]
	if !ok {
		return nil, appErrors.NewNotFound("endorsement", id)
	}
	cp := *e
	return &cp, nil
}
func (m *mockEndorsements) Create(_ context.Context, e *model.Endorsement) error {
	e.ID = uuid.New()
	m.rows[e.ID] = e
	return nil
}
func (m *mockEndorsements) Exists(context.Context, uuid.UUID, uuid.UUID, string) (bool, error) {
	return false, nil
}
func (m *mockEndorsements) UpdateVerification(_ context.Context, e *model.Endorsement) error {
	m.rows[e.ID] = e
	return nil
}
func (m *mockEndorsements) Retract(_ context.Context, id uuid.UUID, reason string, at time.Time) error {
	e, ok := m.rows[id]
	if !ok {
		return appErrors.NewNotFound("endorsement", id)
	}
	if e.IsRetracted {
		return appErrors.ErrAlreadyRetracted
	}
	e.IsRetracted, e.RetractionReason, e.RetractedAt = true, reason, &at
	return nil
}

type mockReviews struct {
	rows map[uuid.UUID]*model.ReviewCandidate
}

func (m *mockReviews) Create(context.Context, *model.ReviewCandidate) error { return nil }
func (m *mockReviews) GetByID(_ context.Context, id uuid.UUID) (*model.ReviewCandidate, error) {
	rc, ok := m.rows[id]
	if !ok {
		return nil, appErrors.NewNotFound("review candidate", id)
	}
	cp := *rc
	return &cp, nil
}
func (m *mockReviews) ListPending(context.Context, int) ([]model.ReviewCandidate, error) {
	out := []model.ReviewCandidate{}
	for _, rc := range m.rows {
		if rc.Status == model.ReviewPending {
			out = append(out, *rc)
		}
	}
	return out, nil
}
func (m *mockReviews) Approve(_ context.Context, id uuid.UUID, e *model.Endorsement) error {
	e.ID = uuid.New()
	m.rows[id].Status = model.ReviewApproved
	return nil
}
func (m *mockReviews) Reject(_ context.Context, id uuid.UUID) error {
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
func (m *mockReviews) DeleteReviewedBefore(context.Context, time.Time) (int64, error) { return 0, nil }

type mockMaintenance struct{}

func (mockMaintenance) DuplicateGroups(context.Context) ([]model.DuplicateGroup, error) {
	return []model.DuplicateGroup{}, nil
}
func (mockMaintenance) Dedupe(context.Context) (*repository.DedupeReport, error) {
	return &repository.DedupeReport{}, nil
}

type mockFeeds struct{ list []model.Feed }

func (m *mockFeeds) ListActive(context.Context) ([]model.Feed, error)   { return m.list, nil }
func (m *mockFeeds) ListPriority(context.Context) ([]model.Feed, error) { return nil, nil }
func (m *mockFeeds) GetByID(_ context.Context, id uuid.UUID) (*model.Feed, error) {
	return nil, appErrors.NewNotFound("feed", id)
}
func (m *mockFeeds) Create(_ context.Context, f *model.Feed) error {
	f.ID = uuid.New()
	m.list = append(m.list, *f)
	return nil
}
func (m *mockFeeds) RecordCheck(context.Context, uuid.UUID, time.Time, error) error { return nil }
func (m *mockFeeds) Stats(context.Context) (*model.FeedStats, error) {
	return &model.FeedStats{TotalFeeds: len(m.list), ActiveFeeds: len(m.list)}, nil
}
