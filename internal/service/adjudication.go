package service

import (
	"context"

	"go.uber.org/zap"

	"blood-connect/backend/internal/dto"
	"blood-connect/backend/internal/model"
	"blood-connect/backend/pkg/events"
)

// Hospital-side decisions on responses and requests. Every operation below
// requires the caller to be a hospital. Non-owners get ErrNotRequestOwner
// from the response/transition commands and ErrBloodRequestNotFound from
// update and removal, which do not reveal foreign requests.

// ────────────────────── AcceptResponse ──────────────────────

func (s *bloodRequestService) AcceptResponse(ctx context.Context, callerID, requestID, responseID string) (*dto.BloodRequestResponse, error) {
	hospital, err := s.requireHospital(ctx, callerID)
	if err != nil {
		return nil, err
	}

	var accepted model.DonorResponse
	br, kind, err := s.mutateRequest(ctx, requestID, func(r *model.BloodRequest) (writeKind, error) {
		if r.HospitalID != hospital.ProfileID {
			return writeNone, ErrNotRequestOwner
		}
		i := r.FindResponse(responseID)
		if i < 0 {
			return writeNone, ErrDonorResponseNotFound
		}
		accepted = r.Responses[i]
		if r.Responses[i].Status == model.ResponseStatusAccepted {
			return writeNone, nil
		}
		r.Responses[i].Status = model.ResponseStatusAccepted
		return writeUpdate, nil
	})
	if err != nil {
		return nil, err
	}

	if kind == writeUpdate {
		s.metrics.Adjudications.WithLabelValues("accept").Inc()
		s.logger.Info("donor response accepted",
			zap.String("request_id", requestID),
			zap.String("response_id", responseID),
			zap.String("donor_id", accepted.DonorID),
		)
		s.publish(ctx, events.TypeResponseAccepted, br, func(e *events.Event) {
			e.ResponseID = responseID
			e.DonorID = accepted.DonorID
		})
	}

	return toBloodRequestResponse(br), nil
}

// ────────────────────── DeclineResponse ──────────────────────

// DeclineResponse removes the response from the request. The decision is
// kept in the log and the response.declined event.
func (s *bloodRequestService) DeclineResponse(ctx context.Context, callerID, requestID, responseID string) (*dto.BloodRequestResponse, error) {
	hospital, err := s.requireHospital(ctx, callerID)
	if err != nil {
		return nil, err
	}

	var declined model.DonorResponse
	br, _, err := s.mutateRequest(ctx, requestID, func(r *model.BloodRequest) (writeKind, error) {
		if r.HospitalID != hospital.ProfileID {
			return writeNone, ErrNotRequestOwner
		}
		i := r.FindResponse(responseID)
		if i < 0 {
			return writeNone, ErrDonorResponseNotFound
		}
		declined = r.Responses[i]

		kept := make(model.DonorResponses, 0, len(r.Responses)-1)
		kept = append(kept, r.Responses[:i]...)
		kept = append(kept, r.Responses[i+1:]...)
		r.Responses = kept
		return writeUpdate, nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Adjudications.WithLabelValues("decline").Inc()
	s.logger.Info("donor response declined",
		zap.String("request_id", requestID),
		zap.String("response_id", responseID),
		zap.String("donor_id", declined.DonorID),
		zap.String("previous_status", declined.Status),
	)
	s.publish(ctx, events.TypeResponseDeclined, br, func(e *events.Event) {
		e.ResponseID = responseID
		e.DonorID = declined.DonorID
	})

	return toBloodRequestResponse(br), nil
}

// ────────────────────── RemoveRequest ──────────────────────

// RemoveRequest applies the removal policy:
//   - 0 or 1 responses: the request is deleted;
//   - 2+ responses: count is required, 1 <= count <= len(responses);
//     count == len deletes the request, otherwise the oldest count
//     responses are dropped and the request keeps its status.
func (s *bloodRequestService) RemoveRequest(ctx context.Context, callerID, requestID string, count *int) (*dto.RemoveRequestResponse, error) {
	hospital, err := s.requireHospital(ctx, callerID)
	if err != nil {
		return nil, err
	}

	removed := 0
	br, kind, err := s.mutateRequest(ctx, requestID, func(r *model.BloodRequest) (writeKind, error) {
		if r.HospitalID != hospital.ProfileID {
			return writeNone, ErrBloodRequestNotFound
		}
		n := len(r.Responses)
		if n <= 1 {
			removed = n
			return writeDelete, nil
		}
		if count == nil || *count < 1 || *count > n {
			return writeNone, ErrInvalidRemoveCount
		}
		if *count >= n {
			removed = n
			return writeDelete, nil
		}
		removed = *count
		r.Responses = r.Responses[*count:].Clone()
		return writeUpdate, nil
	})
	if err != nil {
		return nil, err
	}

	result := &dto.RemoveRequestResponse{RemovedResponses: removed}
	if kind == writeDelete {
		result.Deleted = true
		s.metrics.Adjudications.WithLabelValues("delete").Inc()
		s.logger.Info("blood request removed",
			zap.String("id", requestID),
			zap.Int("responses", removed),
		)
		s.publish(ctx, events.TypeRequestDeleted, br, func(e *events.Event) { e.Count = removed })
		return result, nil
	}

	result.Request = toBloodRequestResponse(br)
	s.metrics.Adjudications.WithLabelValues("trim").Inc()
	s.logger.Info("oldest donor responses removed",
		zap.String("id", requestID),
		zap.Int("removed", removed),
		zap.Int("remaining", len(br.Responses)),
	)
	s.publish(ctx, events.TypeRequestTrimmed, br, func(e *events.Event) { e.Count = removed })
	return result, nil
}

// ────────────────────── DeleteRequest ──────────────────────

// DeleteRequest removes the record and both index entries regardless of responses.
func (s *bloodRequestService) DeleteRequest(ctx context.Context, callerID, requestID string) error {
	hospital, err := s.requireHospital(ctx, callerID)
	if err != nil {
		return err
	}

	br, _, err := s.mutateRequest(ctx, requestID, func(r *model.BloodRequest) (writeKind, error) {
		if r.HospitalID != hospital.ProfileID {
			return writeNone, ErrBloodRequestNotFound
		}
		return writeDelete, nil
	})
	if err != nil {
		return err
	}

	s.metrics.Adjudications.WithLabelValues("delete").Inc()
	s.logger.Info("blood request deleted", zap.String("id", requestID), zap.Int("responses", len(br.Responses)))
	s.publish(ctx, events.TypeRequestDeleted, br, func(e *events.Event) { e.Count = len(br.Responses) })
	return nil
}

// ────────────────────── UpdateRequest ──────────────────────

// UpdateRequest applies a PUT patch as field edits plus an optional status
// write. Any valid status may be written; with engine.permissive_status_patch
// off only active -> fulfilled and active -> cancelled are accepted.
func (s *bloodRequestService) UpdateRequest(ctx context.Context, callerID, requestID string, patch *dto.UpdateBloodRequestRequest) (*dto.BloodRequestResponse, error) {
	hospital, err := s.requireHospital(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if err := validateEdit(&patch.EditBloodRequestFields); err != nil {
		return nil, err
	}
	if patch.Status != nil && !model.IsValidRequestStatus(*patch.Status) {
		return nil, ErrInvalidStatus
	}

	var prevStatus string
	br, kind, err := s.mutateRequest(ctx, requestID, func(r *model.BloodRequest) (writeKind, error) {
		if r.HospitalID != hospital.ProfileID {
			return writeNone, ErrBloodRequestNotFound
		}
		prevStatus = r.Status
		changed := applyEdit(r, &patch.EditBloodRequestFields)
		if patch.Status != nil {
			moved, err := s.patchStatus(r, *patch.Status)
			if err != nil {
				return writeNone, err
			}
			changed = changed || moved
		}
		if !changed {
			return writeNone, nil
		}
		return writeUpdate, nil
	})
	if err != nil {
		return nil, err
	}

	if kind == writeUpdate {
		s.afterUpdate(ctx, br, prevStatus)
	}
	return toBloodRequestResponse(br), nil
}

// ────────────────────── EditFields ──────────────────────

func (s *bloodRequestService) EditFields(ctx context.Context, callerID, requestID string, fields *dto.EditBloodRequestFields) (*dto.BloodRequestResponse, error) {
	return s.UpdateRequest(ctx, callerID, requestID, &dto.UpdateBloodRequestRequest{EditBloodRequestFields: *fields})
}

// ────────────────────── Fulfill / Cancel ──────────────────────

func (s *bloodRequestService) Fulfill(ctx context.Context, callerID, requestID string) (*dto.BloodRequestResponse, error) {
	return s.closeRequest(ctx, callerID, requestID, model.RequestStatusFulfilled)
}

func (s *bloodRequestService) Cancel(ctx context.Context, callerID, requestID string) (*dto.BloodRequestResponse, error) {
	return s.closeRequest(ctx, callerID, requestID, model.RequestStatusCancelled)
}

// closeRequest moves an active request to a terminal status. Repeating the
// same transition is a no-op.
func (s *bloodRequestService) closeRequest(ctx context.Context, callerID, requestID, target string) (*dto.BloodRequestResponse, error) {
	hospital, err := s.requireHospital(ctx, callerID)
	if err != nil {
		return nil, err
	}

	var prevStatus string
	br, kind, err := s.mutateRequest(ctx, requestID, func(r *model.BloodRequest) (writeKind, error) {
		if r.HospitalID != hospital.ProfileID {
			return writeNone, ErrNotRequestOwner
		}
		prevStatus = r.Status
		if r.Status == target {
			return writeNone, nil
		}
		if r.Status != model.RequestStatusActive {
			return writeNone, ErrInvalidStatusTransition
		}
		r.Status = target
		return writeUpdate, nil
	})
	if err != nil {
		return nil, err
	}

	if kind == writeUpdate {
		s.afterUpdate(ctx, br, prevStatus)
	}
	return toBloodRequestResponse(br), nil
}

// ── helpers ──

// patchStatus applies a status value from a PUT patch.
func (s *bloodRequestService) patchStatus(r *model.BloodRequest, target string) (bool, error) {
	if r.Status == target {
		return false, nil
	}
	if s.cfg.Engine.PermissiveStatusPatch {
		r.Status = target
		return true, nil
	}
	if r.Status == model.RequestStatusActive &&
		(target == model.RequestStatusFulfilled || target == model.RequestStatusCancelled) {
		r.Status = target
		return true, nil
	}
	return false, ErrInvalidStatusTransition
}

// afterUpdate keeps the active index in step with a status change and
// reports the write. A failed index write is left for reconciliation.
// It runs outside the request lock, so a reopen racing a delete can leave a
// dangling active row; donor listing skips it and ReconcileIndices drops it.
func (s *bloodRequestService) afterUpdate(ctx context.Context, br *model.BloodRequest, prevStatus string) {
	eventType := events.TypeRequestUpdated

	if prevStatus != br.Status {
		var err error
		switch {
		case br.Status == model.RequestStatusActive:
			err = s.repo.BloodRequest.AddToActiveIndex(ctx, br.BloodRequestID, br.Position)
		case prevStatus == model.RequestStatusActive:
			err = s.repo.BloodRequest.RemoveFromActiveIndex(ctx, br.BloodRequestID)
		}
		if err != nil {
			s.logger.Error("active index update failed, left for reconciliation",
				zap.String("id", br.BloodRequestID),
				zap.String("status", br.Status),
				zap.Error(err),
			)
		}

		switch br.Status {
		case model.RequestStatusFulfilled:
			eventType = events.TypeRequestFulfilled
		case model.RequestStatusCancelled:
			eventType = events.TypeRequestCancelled
		}
		s.metrics.Adjudications.WithLabelValues(br.Status).Inc()
	}

	s.logger.Info("blood request updated",
		zap.String("id", br.BloodRequestID),
		zap.String("previous_status", prevStatus),
		zap.String("status", br.Status),
		zap.Int("version", br.Version),
	)
	s.publish(ctx, eventType, br, nil)
}

func validateEdit(f *dto.EditBloodRequestFields) error {
	if f.BloodType != nil && !model.IsValidBloodType(*f.BloodType) {
		return ErrInvalidBloodType
	}
	if f.Units != nil && *f.Units < 1 {
		return ErrInvalidUnits
	}
	if f.Urgency != nil && !model.IsValidUrgency(*f.Urgency) {
		return ErrInvalidUrgency
	}
	return nil
}

// applyEdit copies the set fields and reports whether anything changed.
func applyEdit(r *model.BloodRequest, f *dto.EditBloodRequestFields) bool {
	changed := false
	setString := func(dst *string, v *string) {
		if v != nil && *dst != *v {
			*dst = *v
			changed = true
		}
	}
	setString(&r.BloodType, f.BloodType)
	setString(&r.Urgency, f.Urgency)
	setString(&r.PatientInfo, f.PatientInfo)
	setString(&r.ContactPerson, f.ContactPerson)
	setString(&r.ContactPhone, f.ContactPhone)
	setString(&r.Notes, f.Notes)
	if f.Units != nil && r.Units != *f.Units {
		r.Units = *f.Units
		changed = true
	}
	return changed
}
