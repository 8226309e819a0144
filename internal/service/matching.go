package service

import (
	"context"

	"go.uber.org/zap"

	"blood-connect/backend/internal/model"
)

// Matcher decides whether a donor can serve a request.
type Matcher interface {
	Matches(req *model.BloodRequest, donor *model.Profile) bool
}

// ExactMatcher requires the donor's blood type to equal the requested one.
// No cross-type compatibility (e.g. O- as universal donor) is applied.
type ExactMatcher struct{}

func (ExactMatcher) Matches(req *model.BloodRequest, donor *model.Profile) bool {
	return donor != nil && donor.BloodType != "" && req.BloodType == donor.BloodType
}

// FilterMatches keeps active requests the matcher accepts, preserving order.
func FilterMatches(requests []model.BloodRequest, donor *model.Profile, m Matcher) []model.BloodRequest {
	out := make([]model.BloodRequest, 0, len(requests))
	for i := range requests {
		if requests[i].Status != model.RequestStatusActive {
			continue
		}
		if m.Matches(&requests[i], donor) {
			out = append(out, requests[i])
		}
	}
	return out
}

// FindForDonor scans the active index newest first. Ids whose record is gone
// are skipped by the store.
func (s *bloodRequestService) FindForDonor(ctx context.Context, donor *model.Profile) ([]model.BloodRequest, error) {
	ids, err := s.repo.BloodRequest.ListActiveIndex(ctx)
	if err != nil {
		s.logger.Error("read active index failed", zap.Error(err))
		return nil, err
	}

	requests, err := s.repo.BloodRequest.GetMany(ctx, ids)
	if err != nil {
		s.logger.Error("load active requests failed", zap.Error(err))
		return nil, err
	}

	return FilterMatches(requests, donor, s.matcher), nil
}
