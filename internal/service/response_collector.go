package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"blood-connect/backend/internal/dto"
	"blood-connect/backend/internal/model"
	"blood-connect/backend/pkg/events"
)

// ────────────────────── Respond ──────────────────────

// Respond appends a pending response carrying a snapshot of the donor's
// profile. A donor holds at most one response per request; after a decline
// removes it the donor may respond again.
func (s *bloodRequestService) Respond(ctx context.Context, callerID, requestID string, req *dto.RespondRequest) (*dto.DonorResponseResponse, error) {
	donor, err := s.requireDonor(ctx, callerID)
	if err != nil {
		return nil, err
	}

	distance := s.cfg.Engine.DefaultDistanceMiles
	availability := s.cfg.Engine.DefaultAvailability
	if req != nil {
		if req.Distance != nil {
			if *req.Distance < 0 {
				return nil, ErrInvalidDistance
			}
			distance = *req.Distance
		}
		if req.Availability != nil && strings.TrimSpace(*req.Availability) != "" {
			availability = strings.TrimSpace(*req.Availability)
		}
	}

	var created model.DonorResponse
	br, _, err := s.mutateRequest(ctx, requestID, func(r *model.BloodRequest) (writeKind, error) {
		if r.HasResponseFrom(donor.ProfileID) {
			return writeNone, ErrAlreadyResponded
		}
		created = model.DonorResponse{
			ResponseID:     uuid.New().String(),
			DonorID:        donor.ProfileID,
			DonorName:      donor.Name,
			DonorPhone:     donor.Phone,
			DonorBloodType: donor.BloodType,
			Distance:       distance,
			Availability:   availability,
			RespondedAt:    time.Now().UTC(),
			Status:         model.ResponseStatusPending,
		}
		r.Responses = append(r.Responses, created)
		return writeUpdate, nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ResponsesSubmitted.Inc()
	s.logger.Info("donor responded",
		zap.String("request_id", br.BloodRequestID),
		zap.String("donor_id", donor.ProfileID),
		zap.String("response_id", created.ResponseID),
		zap.Int("responses", len(br.Responses)),
	)
	s.publish(ctx, events.TypeResponseSubmitted, br, func(e *events.Event) {
		e.DonorID = created.DonorID
		e.ResponseID = created.ResponseID
		e.Count = len(br.Responses)
	})

	return toDonorResponseResponse(&created), nil
}
