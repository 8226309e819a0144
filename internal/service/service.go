package service

import (
	"go.uber.org/zap"

	"blood-connect/backend/config"
	"blood-connect/backend/internal/repository"
	"blood-connect/backend/pkg/events"
	"blood-connect/backend/pkg/metrics"
)

// Service aggregates every service used by the handlers.
type Service struct {
	BloodRequest BloodRequestService
	Export       ExportService
}

func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		BloodRequest: NewBloodRequestService(cfg, repo, publisher, m, logger),
		Export:       NewExportService(repo, logger),
	}
}
