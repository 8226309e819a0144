package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"blood-connect/backend/internal/repository"
)

// ── test helpers ──

func setupTestExportService() (ExportService, *testEnv) {
	env := setupTestBloodRequestService()
	repo := &repository.Repository{
		Profile:      env.profiles,
		BloodRequest: env.requests,
	}
	return NewExportService(repo, zap.NewNop()), env
}

// ── ExportRequests ──

func TestExportService_ExportRequests_NotHospital(t *testing.T) {
	svc, _ := setupTestExportService()

	for _, caller := range []string{"donor-a", "ghost"} {
		_, _, err := svc.ExportRequests(context.Background(), caller)
		if !errors.Is(err, ErrNotHospital) {
			t.Errorf("caller %s: expected ErrNotHospital, got %v", caller, err)
		}
	}
}

func TestExportService_ExportRequests_NoRequests(t *testing.T) {
	svc, _ := setupTestExportService()

	_, _, err := svc.ExportRequests(context.Background(), "h1")
	if !errors.Is(err, ErrExportNoRequests) {
		t.Errorf("expected ErrExportNoRequests, got %v", err)
	}
}

func TestExportService_ExportRequests_Success(t *testing.T) {
	svc, env := setupTestExportService()

	br, ids := requestWithResponses(t, env, 2)
	if _, err := env.svc.AcceptResponse(context.Background(), "h1", br.ID, ids[0]); err != nil {
		t.Fatalf("AcceptResponse should succeed: %v", err)
	}
	createRequest(t, env, "h2", "A+")

	buf, filename, err := svc.ExportRequests(context.Background(), "h1")
	if err != nil {
		t.Fatalf("ExportRequests should succeed: %v", err)
	}
	if !strings.HasPrefix(filename, "blood_requests_") || !strings.HasSuffix(filename, ".xlsx") {
		t.Errorf("unexpected filename %q", filename)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("workbook should open: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(requestsSheet)
	if err != nil {
		t.Fatalf("read %s: %v", requestsSheet, err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus one request (h2's excluded), got %d rows", len(rows))
	}
	if rows[0][0] != "Request ID" {
		t.Errorf("unexpected header %v", rows[0])
	}
	if rows[1][0] != br.ID || rows[1][1] != "O-" {
		t.Errorf("unexpected request row %v", rows[1])
	}
	if rows[1][10] != "2" || rows[1][11] != "1" {
		t.Errorf("expected 2 responses / 1 accepted, got %s / %s", rows[1][10], rows[1][11])
	}

	respRows, err := f.GetRows(responsesSheet)
	if err != nil {
		t.Fatalf("read %s: %v", responsesSheet, err)
	}
	if len(respRows) != 3 {
		t.Fatalf("expected header plus two responses, got %d rows", len(respRows))
	}
	if respRows[1][1] != ids[0] || respRows[1][7] != "accepted" {
		t.Errorf("unexpected response row %v", respRows[1])
	}
}
