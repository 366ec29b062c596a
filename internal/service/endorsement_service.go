// internal/service/endorsement_service.go
package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/endorsenyc-backend/internal/errors"
	"github.com/unclebandit/endorsenyc-backend/internal/model"
	"github.com/unclebandit/endorsenyc-backend/internal/repository"
)

// DefaultAutoApproveThreshold is the classifier confidence from which an item may skip human review.
const DefaultAutoApproveThreshold = 0.85

const (
	pendingReviewLimit = 100
	maxQuoteLength     = 500
)

type EndorsementService struct {
	Endorsements repository.EndorsementRepositoryInterface
	Endorsers    repository.EndorserRepositoryInterface
	Candidates   repository.CandidateRepositoryInterface
	Reviews      repository.ReviewRepositoryInterface
	Maintenance  repository.MaintenanceRepositoryInterface
	Log          *zap.Logger

	AutoApproveThreshold float64
	Now                  func() time.Time
}

type CreateEndorsementRequest struct {
	EndorserID      uuid.UUID             `json:"endorser_id" validate:"required"`
	CandidateID     uuid.UUID             `json:"candidate_id" validate:"required"`
	SourceURL       string                `json:"source_url" validate:"required,url"`
	SourceType      model.SourceType      `json:"source_type" validate:"required,oneof=twitter instagram press_release interview event website"`
	SourceTitle     string                `json:"source_title"`
	Quote           string                `json:"quote"`
	EndorsementType model.EndorsementType `json:"endorsement_type" validate:"omitempty,oneof=endorsement un_endorsement conditional rumored"`
	Sentiment       model.Sentiment       `json:"sentiment" validate:"omitempty,oneof=positive neutral negative"`
	Confidence      model.ConfidenceLevel `json:"confidence" validate:"omitempty,oneof=rumored reported confirmed"`
	Strength        model.Strength        `json:"strength" validate:"omitempty,oneof=weak standard strong enthusiastic"`
	EndorsedAt      *time.Time            `json:"endorsed_at"`
}

type VerifyRequest struct {
	Confidence model.ConfidenceLevel `json:"confidence" validate:"required,oneof=rumored reported confirmed"`
	VerifiedBy string                `json:"verified_by" validate:"required"`
	Notes      string                `json:"notes"`
}

type RetractRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// ApproveReviewRequest names the endorser and candidate for a review item.
// Either may be left empty when it can be inferred from the item.
type ApproveReviewRequest struct {
	EndorserID  *uuid.UUID       `json:"endorser_id"`
	CandidateID *uuid.UUID       `json:"candidate_id"`
	Strength    model.Strength   `json:"strength" validate:"omitempty,oneof=weak standard strong enthusiastic"`
	SourceType  model.SourceType `json:"source_type" validate:"omitempty,oneof=twitter instagram press_release interview event website"`
}

// AdminQueue is everything waiting on a human.
type AdminQueue struct {
	Unverified    []model.Endorsement     `json:"unverified"`
	Retractions   []model.Endorsement     `json:"retractions"`
	Duplicates    []model.DuplicateGroup  `json:"duplicates"`
	PendingReview []model.ReviewCandidate `json:"pending_review"`
}

func (s *EndorsementService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *EndorsementService) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func (s *EndorsementService) List(ctx context.Context, f repository.EndorsementFilter) ([]model.Endorsement, error) {
	return s.Endorsements.List(ctx, f)
}

// Create stores an endorsement entered by an admin.
func (s *EndorsementService) Create(ctx context.Context, req CreateEndorsementRequest) (*model.Endorsement, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if _, err := s.Endorsers.GetByID(ctx, req.EndorserID); err != nil {
		return nil, err
	}
	if _, err := s.Candidates.GetByID(ctx, req.CandidateID); err != nil {
		return nil, err
	}

	e := &model.Endorsement{
		EndorserID:      req.EndorserID,
		CandidateID:     req.CandidateID,
		SourceURL:       req.SourceURL,
		SourceType:      req.SourceType,
		SourceTitle:     req.SourceTitle,
		Quote:           req.Quote,
		EndorsementType: orDefault(req.EndorsementType, model.TypeEndorsement),
		Sentiment:       orDefault(req.Sentiment, model.SentimentNeutral),
		Confidence:      orDefault(req.Confidence, model.ConfidenceReported),
		Strength:        orDefault(req.Strength, model.StrengthStandard),
		EndorsedAt:      req.EndorsedAt,
		DiscoveredAt:    s.now(),
	}
	if err := s.Endorsements.Create(ctx, e); err != nil {
		return nil, err
	}
	s.logger().Info("✅ endorsement created", zap.String("id", e.ID.String()), zap.String("confidence", string(e.Confidence)))
	return e, nil
}

// Verify raises an endorsement's confidence. Lowering it is rejected.
func (s *EndorsementService) Verify(ctx context.Context, id uuid.UUID, req VerifyRequest) (*model.Endorsement, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	e, err := s.Endorsements.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.Confidence.Narrows(req.Confidence) {
		return nil, appErrors.ErrConfidenceDowngrade
	}

	now := s.now()
	e.Confidence = req.Confidence
	e.VerifiedBy = req.VerifiedBy
	e.VerifiedAt = &now
	e.VerificationNotes = req.Notes
	if err := s.Endorsements.UpdateVerification(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *EndorsementService) Retract(ctx context.Context, id uuid.UUID, req RetractRequest) (*model.Endorsement, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := s.Endorsements.Retract(ctx, id, req.Reason, s.now()); err != nil {
		return nil, err
	}
	return s.Endorsements.GetByID(ctx, id)
}

// Queue gathers unverified endorsements, retractions, duplicate groups and pending review items.
func (s *EndorsementService) Queue(ctx context.Context) (*AdminQueue, error) {
	var q AdminQueue
	var err error
	if q.Unverified, err = s.Endorsements.List(ctx, repository.EndorsementFilter{Unverified: true}); err != nil {
		return nil, err
	}
	if q.Retractions, err = s.Endorsements.List(ctx, repository.EndorsementFilter{OnlyRetracted: true}); err != nil {
		return nil, err
	}
	if q.Duplicates, err = s.Maintenance.DuplicateGroups(ctx); err != nil {
		return nil, err
	}
	if q.PendingReview, err = s.Reviews.ListPending(ctx, pendingReviewLimit); err != nil {
		return nil, err
	}
	return &q, nil
}

// ApproveReview turns a review item into an endorsement. The result is never
// confirmed; that takes a separate Verify.
func (s *EndorsementService) ApproveReview(ctx context.Context, id uuid.UUID, req ApproveReviewRequest) (*model.Endorsement, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	rc, err := s.Reviews.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rc.Status != model.ReviewPending {
		return nil, appErrors.ErrAlreadyReviewed
	}

	endorser, err := s.resolveEndorser(ctx, rc, req.EndorserID)
	if err != nil {
		return nil, err
	}
	candidate, err := s.resolveCandidate(ctx, rc, req.CandidateID)
	if err != nil {
		return nil, err
	}

	e := endorsementFromReview(rc, endorser.ID, candidate.ID, s.now())
	if req.Strength != "" {
		e.Strength = req.Strength
	}
	if req.SourceType != "" {
		e.SourceType = req.SourceType
	}
	if err := s.Reviews.Approve(ctx, rc.ID, e); err != nil {
		return nil, err
	}
	s.logger().Info("✅ review item approved", zap.String("review_id", rc.ID.String()), zap.String("endorsement_id", e.ID.String()))
	return e, nil
}

func (s *EndorsementService) RejectReview(ctx context.Context, id uuid.UUID) error {
	return s.Reviews.Reject(ctx, id)
}

// AutoApprove promotes a stored review item without a human when the classifier
// is confident, exactly one candidate is named and the author is a known endorser.
// It returns nil, nil when the item does not qualify.
func (s *EndorsementService) AutoApprove(ctx context.Context, rc *model.ReviewCandidate) (*model.Endorsement, error) {
	threshold := s.AutoApproveThreshold
	if threshold == 0 {
		threshold = DefaultAutoApproveThreshold
	}
	if rc.Confidence < threshold || len(rc.CandidateMentions) != 1 || rc.Author == "" {
		return nil, nil
	}
	if rc.EndorsementType == model.TypeUnEndorsement {
		return nil, nil
	}

	endorser, err := s.endorserByAuthor(ctx, rc.Author)
	if err != nil || endorser == nil {
		return nil, err
	}
	candidate, err := s.candidateByName(ctx, rc.CandidateMentions[0])
	if err != nil || candidate == nil {
		return nil, err
	}
	exists, err := s.Endorsements.Exists(ctx, endorser.ID, candidate.ID, rc.SourceURL)
	if err != nil || exists {
		return nil, err
	}

	e := endorsementFromReview(rc, endorser.ID, candidate.ID, s.now())
	if err := s.Reviews.Approve(ctx, rc.ID, e); err != nil {
		return nil, err
	}
	s.logger().Info("🤖 endorsement auto-approved",
		zap.String("endorser", endorser.Name), zap.String("candidate", candidate.Name), zap.Float64("confidence", rc.Confidence))
	return e, nil
}

// Dedupe removes duplicate reference rows and endorsements.
func (s *EndorsementService) Dedupe(ctx context.Context) (*repository.DedupeReport, error) {
	return s.Maintenance.Dedupe(ctx)
}

func (s *EndorsementService) resolveEndorser(ctx context.Context, rc *model.ReviewCandidate, id *uuid.UUID) (*model.Endorser, error) {
	if id != nil {
		return s.Endorsers.GetByID(ctx, *id)
	}
	e, err := s.endorserByAuthor(ctx, rc.Author)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, appErrors.NewValidation("endorser_id", "is required when the author is not a known endorser")
	}
	return e, nil
}

func (s *EndorsementService) resolveCandidate(ctx context.Context, rc *model.ReviewCandidate, id *uuid.UUID) (*model.Candidate, error) {
	if id != nil {
		return s.Candidates.GetByID(ctx, *id)
	}
	if len(rc.CandidateMentions) != 1 {
		return nil, appErrors.NewValidation("candidate_id", "is required when the item mentions several candidates")
	}
	c, err := s.candidateByName(ctx, rc.CandidateMentions[0])
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, appErrors.NewValidation("candidate_id", "mentioned candidate is not in the database")
	}
	return c, nil
}

func (s *EndorsementService) endorserByAuthor(ctx context.Context, author string) (*model.Endorser, error) {
	if author == "" {
		return nil, nil
	}
	endorsers, err := s.Endorsers.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range endorsers {
		if endorsers[i].Matches(author) {
			return &endorsers[i], nil
		}
	}
	return nil, nil
}

func (s *EndorsementService) candidateByName(ctx context.Context, name string) (*model.Candidate, error) {
	candidates, err := s.Candidates.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		if strings.EqualFold(candidates[i].Name, name) {
			return &candidates[i], nil
		}
	}
	return nil, nil
}

// endorsementFromReview maps a review item onto a new row. Rumors stay rumored;
// everything else is reported.
func endorsementFromReview(rc *model.ReviewCandidate, endorserID, candidateID uuid.UUID, now time.Time) *model.Endorsement {
	confidence := model.ConfidenceReported
	if rc.EndorsementType == model.TypeRumored {
		confidence = model.ConfidenceRumored
	}
	quote := rc.RawText
	if r := []rune(quote); len(r) > maxQuoteLength {
		quote = string(r[:maxQuoteLength])
	}
	return &model.Endorsement{
		EndorserID:      endorserID,
		CandidateID:     candidateID,
		SourceURL:       rc.SourceURL,
		SourceType:      orDefault(rc.SourceType, model.SourceWebsite),
		SourceTitle:     rc.SourceTitle,
		Quote:           quote,
		EndorsementType: orDefault(rc.EndorsementType, model.TypeEndorsement),
		Sentiment:       orDefault(rc.Sentiment, model.SentimentNeutral),
		Confidence:      confidence,
		Strength:        model.StrengthStandard,
		DiscoveredAt:    now,
	}
}

func orDefault[T ~string](v, def T) T {
	if v == "" {
		return def
	}
	return v
}
