package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"blood-connect/backend/internal/repository"
)

// ── export errors ──

var (
	ErrExportNoRequests   = errors.New("hospital has no blood requests to export")
	ErrExportGenerateFail = errors.New("failed to generate Excel file")
)

// ExportService renders a hospital's requests for offline use.
//
// The workbook is returned as a buffer; the handler sets the download
// headers. Layout:
//   - sheet "Requests": one row per request with response counts
//   - sheet "Responses": one row per donor response
type ExportService interface {
	ExportRequests(ctx context.Context, callerID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

const (
	requestsSheet  = "Requests"
	responsesSheet = "Responses"
)

// ═══════════════════════════════════════════════════════════
// ExportRequests
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportRequests(ctx context.Context, callerID string) (*bytes.Buffer, string, error) {
	hospital, err := s.repo.Profile.GetByID(ctx, callerID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("load profile failed", zap.String("id", callerID), zap.Error(err))
		return nil, "", err
	}
	if err != nil || !hospital.IsHospital() {
		return nil, "", ErrNotHospital
	}

	ids, err := s.repo.BloodRequest.ListHospitalIndex(ctx, hospital.ProfileID)
	if err != nil {
		s.logger.Error("read hospital index failed", zap.String("hospital_id", hospital.ProfileID), zap.Error(err))
		return nil, "", err
	}
	requests, err := s.repo.BloodRequest.GetMany(ctx, ids)
	if err != nil {
		s.logger.Error("load hospital requests failed", zap.String("hospital_id", hospital.ProfileID), zap.Error(err))
		return nil, "", err
	}
	if len(requests) == 0 {
		return nil, "", ErrExportNoRequests
	}

	f := excelize.NewFile()
	defer f.Close()

	idx, _ := f.NewSheet(requestsSheet)
	f.SetActiveSheet(idx)
	f.NewSheet(responsesSheet)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#C0392B"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// ── Requests ──
	reqHeaders := []string{"Request ID", "Blood Type", "Units", "Urgency", "Status", "Created", "Patient", "Contact", "Phone", "Notes", "Responses", "Accepted"}
	writeHeader(f, requestsSheet, reqHeaders, headerStyle)
	f.SetColWidth(requestsSheet, "A", "A", 38)
	f.SetColWidth(requestsSheet, "F", "J", 22)

	row := 2
	for i := range requests {
		r := &requests[i]
		values := []interface{}{
			r.BloodRequestID, r.BloodType, r.Units, r.Urgency, r.Status,
			r.RequestedAt.UTC().Format(time.RFC3339),
			r.PatientInfo, r.ContactPerson, r.ContactPhone, r.Notes,
			len(r.Responses), r.AcceptedCount(),
		}
		writeRow(f, requestsSheet, row, values)
		row++
	}

	// ── Responses ──
	respHeaders := []string{"Request ID", "Response ID", "Donor", "Phone", "Donor Blood Type", "Distance (mi)", "Availability", "Status", "Responded"}
	writeHeader(f, responsesSheet, respHeaders, headerStyle)
	f.SetColWidth(responsesSheet, "A", "B", 38)
	f.SetColWidth(responsesSheet, "C", "I", 18)

	row = 2
	for i := range requests {
		for _, resp := range requests[i].Responses {
			writeRow(f, responsesSheet, row, []interface{}{
				requests[i].BloodRequestID, resp.ResponseID, resp.DonorName, resp.DonorPhone,
				resp.DonorBloodType, resp.Distance, resp.Availability, resp.Status,
				resp.RespondedAt.UTC().Format(time.RFC3339),
			})
			row++
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("write Excel failed", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("blood_requests_%s.xlsx", time.Now().UTC().Format("20060102"))
	return buf, filename, nil
}

// ── helpers ──

func writeHeader(f *excelize.File, sheet string, headers []string, style int) {
	for i, h := range headers {
		c, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, c, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	f.SetCellStyle(sheet, "A1", last, style)
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) {
	for i, v := range values {
		c, _ := excelize.CoordinatesToCellName(i+1, row)
		f.SetCellValue(sheet, c, v)
	}
}
