package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/unclebandit/endorsenyc-backend/internal/model"
	"github.com/unclebandit/endorsenyc-backend/internal/repository"
)

// ReferenceService serves the candidate and endorser catalogues.
type ReferenceService struct {
	Candidates repository.CandidateRepositoryInterface
	Endorsers  repository.EndorserRepositoryInterface
	Log        *zap.Logger
}

type CreateEndorserRequest struct {
	Name            string                 `json:"name" validate:"required"`
	DisplayName     string                 `json:"display_name"`
	Title           string                 `json:"title"`
	Organization    string                 `json:"organization"`
	Category        model.EndorserCategory `json:"category" validate:"required,oneof=politician union celebrity media business nonprofit academic religious"`
	Subcategory     string                 `json:"subcategory"`
	Borough         string                 `json:"borough"`
	InfluenceScore  *int                   `json:"influence_score" validate:"required,min=0,max=100"`
	TwitterHandle   string                 `json:"twitter_handle"`
	InstagramHandle string                 `json:"instagram_handle"`
	IsOrganization  bool                   `json:"is_organization"`
}

func (s *ReferenceService) ListCandidates(ctx context.Context) ([]model.Candidate, error) {
	return s.Candidates.List(ctx)
}

func (s *ReferenceService) ListEndorsers(ctx context.Context) ([]model.Endorser, error) {
	return s.Endorsers.List(ctx)
}

func (s *ReferenceService) CreateEndorser(ctx context.Context, req CreateEndorserRequest) (*model.Endorser, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	e := &model.Endorser{
		Name:            req.Name,
		DisplayName:     req.DisplayName,
		Title:           req.Title,
		Organization:    req.Organization,
		Category:        req.Category,
		Subcategory:     req.Subcategory,
		Borough:         req.Borough,
		InfluenceScore:  *req.InfluenceScore,
		TwitterHandle:   req.TwitterHandle,
		InstagramHandle: req.InstagramHandle,
		IsOrganization:  req.IsOrganization,
	}
	if err := s.Endorsers.Create(ctx, e); err != nil {
		return nil, err
	}
	if s.Log != nil {
		s.Log.Info("✅ endorser added", zap.String("name", e.Name), zap.String("id", e.ID.String()))
	}
	return e, nil
}

func (s *ReferenceService) EndorserStats(ctx context.Context) (*model.EndorserStats, error) {
	return s.Endorsers.Stats(ctx)
}
