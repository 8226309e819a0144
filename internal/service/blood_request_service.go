package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"blood-connect/backend/config"
	"blood-connect/backend/internal/dto"
	"blood-connect/backend/internal/model"
	"blood-connect/backend/internal/repository"
	"blood-connect/backend/pkg/events"
	"blood-connect/backend/pkg/metrics"
)

// ── blood request errors ──

var (
	// not found
	ErrBloodRequestNotFound  = errors.New("blood request not found")
	ErrDonorResponseNotFound = errors.New("donor response not found")
	ErrProfileNotFound       = errors.New("profile not found")

	// forbidden
	ErrNotHospital     = errors.New("only hospitals can perform this action")
	ErrNotDonor        = errors.New("only donors can respond to requests")
	ErrNotRequestOwner = errors.New("blood request belongs to another hospital")

	// invalid
	ErrInvalidBloodType        = errors.New("invalid blood type")
	ErrInvalidUnits            = errors.New("units must be at least 1")
	ErrInvalidUrgency          = errors.New("invalid urgency")
	ErrInvalidStatus           = errors.New("invalid request status")
	ErrInvalidStatusTransition = errors.New("status transition not allowed")
	ErrInvalidRemoveCount      = errors.New("count must be between 1 and the number of responses")
	ErrInvalidDistance         = errors.New("distance must not be negative")

	// conflict
	ErrAlreadyResponded       = errors.New("donor has already responded to this request")
	ErrConcurrentModification = errors.New("blood request is being modified concurrently, try again")
)

// BloodRequestService the request lifecycle: creation, matching, donor
// responses and hospital adjudication.
type BloodRequestService interface {
	Create(ctx context.Context, callerID string, req *dto.CreateBloodRequestRequest) (*dto.BloodRequestResponse, error)
	List(ctx context.Context, callerID string) ([]dto.BloodRequestResponse, error)

	Respond(ctx context.Context, callerID, requestID string, req *dto.RespondRequest) (*dto.DonorResponseResponse, error)

	AcceptResponse(ctx context.Context, callerID, requestID, responseID string) (*dto.BloodRequestResponse, error)
	DeclineResponse(ctx context.Context, callerID, requestID, responseID string) (*dto.BloodRequestResponse, error)
	RemoveRequest(ctx context.Context, callerID, requestID string, count *int) (*dto.RemoveRequestResponse, error)
	DeleteRequest(ctx context.Context, callerID, requestID string) error

	UpdateRequest(ctx context.Context, callerID, requestID string, patch *dto.UpdateBloodRequestRequest) (*dto.BloodRequestResponse, error)
	EditFields(ctx context.Context, callerID, requestID string, fields *dto.EditBloodRequestFields) (*dto.BloodRequestResponse, error)
	Fulfill(ctx context.Context, callerID, requestID string) (*dto.BloodRequestResponse, error)
	Cancel(ctx context.Context, callerID, requestID string) (*dto.BloodRequestResponse, error)

	ReconcileIndices(ctx context.Context) (*dto.IndexRepairReport, error)
}

type bloodRequestService struct {
	cfg       *config.Config
	repo      *repository.Repository
	matcher   Matcher
	publisher events.Publisher
	metrics   *metrics.Metrics
	locks     *keyedMutex
	logger    *zap.Logger
}

// NewBloodRequestService creates the lifecycle service with exact blood type matching.
func NewBloodRequestService(
	cfg *config.Config,
	repo *repository.Repository,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) BloodRequestService {
	return &bloodRequestService{
		cfg:       cfg,
		repo:      repo,
		matcher:   ExactMatcher{},
		publisher: publisher,
		metrics:   m,
		locks:     newKeyedMutex(),
		logger:    logger,
	}
}

// ────────────────────── Create ──────────────────────

func (s *bloodRequestService) Create(ctx context.Context, callerID string, req *dto.CreateBloodRequestRequest) (*dto.BloodRequestResponse, error) {
	hospital, err := s.requireHospital(ctx, callerID)
	if err != nil {
		return nil, err
	}

	if !model.IsValidBloodType(req.BloodType) {
		return nil, ErrInvalidBloodType
	}
	if req.Units < 1 {
		return nil, ErrInvalidUnits
	}
	if !model.IsValidUrgency(req.Urgency) {
		return nil, ErrInvalidUrgency
	}

	now := time.Now().UTC()
	br := &model.BloodRequest{
		BloodRequestID: uuid.New().String(),
		HospitalID:     hospital.ProfileID,
		HospitalName:   hospital.Name,
		BloodType:      req.BloodType,
		Units:          req.Units,
		Urgency:        req.Urgency,
		PatientInfo:    req.PatientInfo,
		ContactPerson:  req.ContactPerson,
		ContactPhone:   req.ContactPhone,
		Notes:          req.Notes,
		RequestedAt:    now,
		Status:         model.RequestStatusActive,
		Position:       now.UnixNano(),
		Responses:      model.DonorResponses{},
	}
	br.Version = 1

	if err := s.repo.BloodRequest.Create(ctx, br); err != nil {
		s.logger.Error("create blood request failed", zap.String("hospital_id", hospital.ProfileID), zap.Error(err))
		return nil, err
	}

	s.metrics.RequestsCreated.Inc()
	s.logger.Info("blood request created",
		zap.String("id", br.BloodRequestID),
		zap.String("hospital_id", br.HospitalID),
		zap.String("blood_type", br.BloodType),
		zap.String("urgency", br.Urgency),
	)
	s.publish(ctx, events.TypeRequestCreated, br, nil)

	return toBloodRequestResponse(br), nil
}

// ────────────────────── List ──────────────────────

// List returns a hospital's own requests, or the active requests matching a
// donor's blood type. Other roles get an empty list.
func (s *bloodRequestService) List(ctx context.Context, callerID string) ([]dto.BloodRequestResponse, error) {
	profile, err := s.loadProfile(ctx, callerID)
	if err != nil {
		return nil, err
	}

	var requests []model.BloodRequest
	switch profile.Role {
	case model.RoleHospital:
		ids, err := s.repo.BloodRequest.ListHospitalIndex(ctx, profile.ProfileID)
		if err != nil {
			s.logger.Error("read hospital index failed", zap.String("hospital_id", profile.ProfileID), zap.Error(err))
			return nil, err
		}
		requests, err = s.repo.BloodRequest.GetMany(ctx, ids)
		if err != nil {
			s.logger.Error("load hospital requests failed", zap.String("hospital_id", profile.ProfileID), zap.Error(err))
			return nil, err
		}
	case model.RoleDonor:
		requests, err = s.FindForDonor(ctx, profile)
		if err != nil {
			return nil, err
		}
	}

	result := make([]dto.BloodRequestResponse, 0, len(requests))
	for i := range requests {
		result = append(result, *toBloodRequestResponse(&requests[i]))
	}
	return result, nil
}

// ────────────────────── ReconcileIndices ──────────────────────

func (s *bloodRequestService) ReconcileIndices(ctx context.Context) (*dto.IndexRepairReport, error) {
	report, err := s.repo.BloodRequest.ReconcileIndices(ctx)
	if err != nil {
		s.logger.Error("index reconciliation failed", zap.Error(err))
		return nil, err
	}

	s.metrics.IndexRepairs.WithLabelValues("hospital", "dangling").Add(float64(report.DanglingHospitalEntries))
	s.metrics.IndexRepairs.WithLabelValues("hospital", "missing").Add(float64(report.MissingHospitalEntries))
	s.metrics.IndexRepairs.WithLabelValues("active", "dangling").Add(float64(report.DanglingActiveEntries))
	s.metrics.IndexRepairs.WithLabelValues("active", "stale").Add(float64(report.StaleActiveEntries))
	s.metrics.IndexRepairs.WithLabelValues("active", "missing").Add(float64(report.MissingActiveEntries))

	if report.Total() > 0 {
		s.logger.Warn("request indices repaired",
			zap.Int("dangling_hospital", report.DanglingHospitalEntries),
			zap.Int("dangling_active", report.DanglingActiveEntries),
			zap.Int("stale_active", report.StaleActiveEntries),
			zap.Int("missing_hospital", report.MissingHospitalEntries),
			zap.Int("missing_active", report.MissingActiveEntries),
		)
	}

	return &dto.IndexRepairReport{
		DanglingHospitalEntries: report.DanglingHospitalEntries,
		DanglingActiveEntries:   report.DanglingActiveEntries,
		StaleActiveEntries:      report.StaleActiveEntries,
		MissingHospitalEntries:  report.MissingHospitalEntries,
		MissingActiveEntries:    report.MissingActiveEntries,
	}, nil
}

// ── helpers ──

func (s *bloodRequestService) loadProfile(ctx context.Context, id string) (*model.Profile, error) {
	profile, err := s.repo.Profile.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		s.logger.Error("load profile failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return profile, nil
}

// requireHospital resolves the caller; a missing profile counts as the wrong role.
func (s *bloodRequestService) requireHospital(ctx context.Context, callerID string) (*model.Profile, error) {
	profile, err := s.loadProfile(ctx, callerID)
	if errors.Is(err, ErrProfileNotFound) {
		return nil, ErrNotHospital
	}
	if err != nil {
		return nil, err
	}
	if !profile.IsHospital() {
		return nil, ErrNotHospital
	}
	return profile, nil
}

func (s *bloodRequestService) requireDonor(ctx context.Context, callerID string) (*model.Profile, error) {
	profile, err := s.loadProfile(ctx, callerID)
	if errors.Is(err, ErrProfileNotFound) {
		return nil, ErrNotDonor
	}
	if err != nil {
		return nil, err
	}
	if !profile.IsDonor() {
		return nil, ErrNotDonor
	}
	return profile, nil
}

// publish emits a lifecycle event; delivery failures never fail the caller.
func (s *bloodRequestService) publish(ctx context.Context, eventType string, br *model.BloodRequest, apply func(e *events.Event)) {
	e := events.Event{
		Type:           eventType,
		BloodRequestID: br.BloodRequestID,
		HospitalID:     br.HospitalID,
		BloodType:      br.BloodType,
		Urgency:        br.Urgency,
		Status:         br.Status,
		OccurredAt:     time.Now().UTC(),
	}
	if apply != nil {
		apply(&e)
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("publish lifecycle event failed",
			zap.String("type", eventType),
			zap.String("id", br.BloodRequestID),
			zap.Error(err),
		)
	}
}

func toBloodRequestResponse(br *model.BloodRequest) *dto.BloodRequestResponse {
	responses := make([]dto.DonorResponseResponse, 0, len(br.Responses))
	for i := range br.Responses {
		responses = append(responses, *toDonorResponseResponse(&br.Responses[i]))
	}
	return &dto.BloodRequestResponse{
		ID:            br.BloodRequestID,
		HospitalID:    br.HospitalID,
		HospitalName:  br.HospitalName,
		BloodType:     br.BloodType,
		Units:         br.Units,
		Urgency:       br.Urgency,
		PatientInfo:   br.PatientInfo,
		ContactPerson: br.ContactPerson,
		ContactPhone:  br.ContactPhone,
		Notes:         br.Notes,
		Timestamp:     br.RequestedAt.UTC().Format(time.RFC3339),
		Status:        br.Status,
		Responses:     responses,
		Version:       br.Version,
	}
}

func toDonorResponseResponse(r *model.DonorResponse) *dto.DonorResponseResponse {
	return &dto.DonorResponseResponse{
		ID:             r.ResponseID,
		DonorID:        r.DonorID,
		DonorName:      r.DonorName,
		DonorPhone:     r.DonorPhone,
		DonorBloodType: r.DonorBloodType,
		Distance:       r.Distance,
		Availability:   r.Availability,
		Timestamp:      r.RespondedAt.UTC().Format(time.RFC3339),
		Status:         r.Status,
	}
}
