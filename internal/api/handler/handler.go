package handler

import "blood-connect/backend/internal/service"

// Handler groups the HTTP handlers.
type Handler struct {
	BloodRequest *BloodRequestHandler
	Export       *ExportHandler
}

// NewHandler wires handlers to services.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		BloodRequest: NewBloodRequestHandler(svc.BloodRequest),
		Export:       NewExportHandler(svc.Export),
	}
}
