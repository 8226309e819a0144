package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"blood-connect/backend/internal/api/middleware"
	"blood-connect/backend/internal/dto"
	"blood-connect/backend/internal/service"
	"blood-connect/backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock BloodRequestService ──

type mockBloodRequestService struct {
	record     *dto.BloodRequestResponse
	list       []dto.BloodRequestResponse
	donorResp  *dto.DonorResponseResponse
	removeResp *dto.RemoveRequestResponse
	report     *dto.IndexRepairReport
	err        error

	// captured arguments
	callerID    string
	requestID   string
	responseID  string
	count       *int
	deleteCalls int
	respondReq  *dto.RespondRequest
	createReq   *dto.CreateBloodRequestRequest
	updateReq   *dto.UpdateBloodRequestRequest
}

func (m *mockBloodRequestService) Create(_ context.Context, callerID string, req *dto.CreateBloodRequestRequest) (*dto.BloodRequestResponse, error) {
	m.callerID = callerID
	m.createReq = req
	return m.record, m.err
}
func (m *mockBloodRequestService) List(_ context.Context, callerID string) ([]dto.BloodRequestResponse, error) {
	m.callerID = callerID
	return m.list, m.err
}
func (m *mockBloodRequestService) Respond(_ context.Context, callerID, requestID string, req *dto.RespondRequest) (*dto.DonorResponseResponse, error) {
	m.callerID, m.requestID, m.respondReq = callerID, requestID, req
	return m.donorResp, m.err
}
func (m *mockBloodRequestService) AcceptResponse(_ context.Context, callerID, requestID, responseID string) (*dto.BloodRequestResponse, error) {
	m.callerID, m.requestID, m.responseID = callerID, requestID, responseID
	return m.record, m.err
}
func (m *mockBloodRequestService) DeclineResponse(_ context.Context, callerID, requestID, responseID string) (*dto.BloodRequestResponse, error) {
	m.callerID, m.requestID, m.responseID = callerID, requestID, responseID
	return m.record, m.err
}
func (m *mockBloodRequestService) RemoveRequest(_ context.Context, callerID, requestID string, count *int) (*dto.RemoveRequestResponse, error) {
	m.callerID, m.requestID, m.count = callerID, requestID, count
	return m.removeResp, m.err
}
func (m *mockBloodRequestService) DeleteRequest(_ context.Context, callerID, requestID string) error {
	m.callerID, m.requestID = callerID, requestID
	m.deleteCalls++
	return m.err
}
func (m *mockBloodRequestService) UpdateRequest(_ context.Context, callerID, requestID string, patch *dto.UpdateBloodRequestRequest) (*dto.BloodRequestResponse, error) {
	m.callerID, m.requestID, m.updateReq = callerID, requestID, patch
	return m.record, m.err
}
func (m *mockBloodRequestService) EditFields(_ context.Context, callerID, requestID string, _ *dto.EditBloodRequestFields) (*dto.BloodRequestResponse, error) {
	m.callerID, m.requestID = callerID, requestID
	return m.record, m.err
}
func (m *mockBloodRequestService) Fulfill(_ context.Context, callerID, requestID string) (*dto.BloodRequestResponse, error) {
	m.callerID, m.requestID = callerID, requestID
	return m.record, m.err
}
func (m *mockBloodRequestService) Cancel(_ context.Context, callerID, requestID string) (*dto.BloodRequestResponse, error) {
	m.callerID, m.requestID = callerID, requestID
	return m.record, m.err
}
func (m *mockBloodRequestService) ReconcileIndices(_ context.Context) (*dto.IndexRepairReport, error) {
	return m.report, m.err
}

// ── Mock ExportService ──

type mockExportService struct {
	buf      *bytes.Buffer
	filename string
	err      error
}

func (m *mockExportService) ExportRequests(_ context.Context, _ string) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}

// ═══════════════════════════════════════════════════════════
// Helpers
// ═══════════════════════════════════════════════════════════

// withCaller stands in for JWTAuth.
func withCaller(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID != "" {
			c.Set(middleware.ContextUserID, userID)
		}
		c.Next()
	}
}

func newBloodRequestRouter(svc service.BloodRequestService, userID string) *gin.Engine {
	h := NewBloodRequestHandler(svc)
	r := gin.New()
	g := r.Group("/api/v1/blood-requests", withCaller(userID))
	g.POST("", h.CreateRequest)
	g.GET("", h.ListRequests)
	g.PUT("/:id", h.UpdateRequest)
	g.PATCH("/:id", h.EditRequest)
	g.DELETE("/:id", h.DeleteRequest)
	g.POST("/:id/fulfill", h.FulfillRequest)
	g.POST("/:id/cancel", h.CancelRequest)
	g.POST("/:id/respond", h.Respond)
	g.POST("/:id/responses/:responseId/accept", h.AcceptResponse)
	g.POST("/:id/responses/:responseId/decline", h.DeclineResponse)
	r.POST("/api/v1/admin/reconcile-indices", h.ReconcileIndices)
	return r
}

func doRequest(r *gin.Engine, method, path string, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return resp
}

// ═══════════════════════════════════════════════════════════
// BloodRequestHandler
// ═══════════════════════════════════════════════════════════

func TestBloodRequestHandler_Create(t *testing.T) {
	svc := &mockBloodRequestService{record: &dto.BloodRequestResponse{ID: "r1", Status: "active"}}
	r := newBloodRequestRouter(svc, "h1")

	w := doRequest(r, http.MethodPost, "/api/v1/blood-requests", `{"blood_type":"O-","units":3,"urgency":"emergency"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp := decode(t, w); resp.Code != 0 {
		t.Errorf("expected code 0, got %d", resp.Code)
	}
	if svc.callerID != "h1" {
		t.Errorf("caller not forwarded, got %q", svc.callerID)
	}
}

func TestBloodRequestHandler_Create_LargeUnits(t *testing.T) {
	svc := &mockBloodRequestService{record: &dto.BloodRequestResponse{ID: "r1", Status: "active"}}
	r := newBloodRequestRouter(svc, "h1")

	// same lower bound as PUT/PATCH, no upper cap
	w := doRequest(r, http.MethodPost, "/api/v1/blood-requests", `{"blood_type":"AB+","units":500,"urgency":"routine"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if svc.createReq == nil || svc.createReq.Units != 500 {
		t.Errorf("units not forwarded: %+v", svc.createReq)
	}
}

func TestBloodRequestHandler_Create_BindingErrors(t *testing.T) {
	svc := &mockBloodRequestService{}
	r := newBloodRequestRouter(svc, "h1")

	for _, body := range []string{
		`{"blood_type":"C+","units":3,"urgency":"emergency"}`,
		`{"blood_type":"O-","units":0,"urgency":"emergency"}`,
		`{"blood_type":"O-","units":3,"urgency":"someday"}`,
		`not json`,
	} {
		w := doRequest(r, http.MethodPost, "/api/v1/blood-requests", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %d", body, w.Code)
		}
		if resp := decode(t, w); resp.Code != response.CodeInvalidParams {
			t.Errorf("body %s: expected code %d, got %d", body, response.CodeInvalidParams, resp.Code)
		}
	}
	if svc.callerID != "" {
		t.Error("service must not be called on binding failure")
	}
}

func TestBloodRequestHandler_Unauthenticated(t *testing.T) {
	r := newBloodRequestRouter(&mockBloodRequestService{}, "")

	w := doRequest(r, http.MethodGet, "/api/v1/blood-requests", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestBloodRequestHandler_List(t *testing.T) {
	svc := &mockBloodRequestService{list: []dto.BloodRequestResponse{{ID: "r2"}, {ID: "r1"}}}
	r := newBloodRequestRouter(svc, "donor-1")

	w := doRequest(r, http.MethodGet, "/api/v1/blood-requests", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Data struct {
			List []dto.BloodRequestResponse `json:"list"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data.List) != 2 || body.Data.List[0].ID != "r2" {
		t.Errorf("unexpected list %+v", body.Data.List)
	}
}

func TestBloodRequestHandler_Respond(t *testing.T) {
	svc := &mockBloodRequestService{donorResp: &dto.DonorResponseResponse{ID: "resp-1", Status: "pending"}}
	r := newBloodRequestRouter(svc, "donor-1")

	// empty body uses defaults
	w := doRequest(r, http.MethodPost, "/api/v1/blood-requests/r1/respond", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if svc.requestID != "r1" || svc.respondReq == nil || svc.respondReq.Distance != nil {
		t.Errorf("unexpected forwarded request %+v", svc.respondReq)
	}

	w = doRequest(r, http.MethodPost, "/api/v1/blood-requests/r1/respond", `{"distance":3.5,"availability":"tonight"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if svc.respondReq.Distance == nil || *svc.respondReq.Distance != 3.5 {
		t.Errorf("distance not bound: %+v", svc.respondReq)
	}

	w = doRequest(r, http.MethodPost, "/api/v1/blood-requests/r1/respond", `{"distance":-1}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("negative distance: expected 400, got %d", w.Code)
	}
}

func TestBloodRequestHandler_Delete(t *testing.T) {
	svc := &mockBloodRequestService{removeResp: &dto.RemoveRequestResponse{RemovedResponses: 2}}
	r := newBloodRequestRouter(svc, "h1")

	w := doRequest(r, http.MethodDelete, "/api/v1/blood-requests/r1", "")
	if w.Code != http.StatusOK || svc.deleteCalls != 1 {
		t.Fatalf("plain delete: expected 200 and one DeleteRequest call, got %d / %d", w.Code, svc.deleteCalls)
	}

	w = doRequest(r, http.MethodDelete, "/api/v1/blood-requests/r1?count=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("counted delete: expected 200, got %d", w.Code)
	}
	if svc.count == nil || *svc.count != 2 || svc.deleteCalls != 1 {
		t.Errorf("count not forwarded to RemoveRequest: %v", svc.count)
	}

	w = doRequest(r, http.MethodDelete, "/api/v1/blood-requests/r1?count=two", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-numeric count: expected 400, got %d", w.Code)
	}
}

func TestBloodRequestHandler_AdjudicationRoutes(t *testing.T) {
	svc := &mockBloodRequestService{record: &dto.BloodRequestResponse{ID: "r1"}}
	r := newBloodRequestRouter(svc, "h1")

	tests := []struct {
		method, path, body string
	}{
		{http.MethodPost, "/api/v1/blood-requests/r1/responses/x9/accept", ""},
		{http.MethodPost, "/api/v1/blood-requests/r1/responses/x9/decline", ""},
		{http.MethodPost, "/api/v1/blood-requests/r1/fulfill", ""},
		{http.MethodPost, "/api/v1/blood-requests/r1/cancel", ""},
		{http.MethodPut, "/api/v1/blood-requests/r1", `{"status":"fulfilled"}`},
		{http.MethodPatch, "/api/v1/blood-requests/r1", `{"notes":"bay 3"}`},
	}
	for _, tt := range tests {
		w := doRequest(r, tt.method, tt.path, tt.body)
		if w.Code != http.StatusOK {
			t.Errorf("%s %s: expected 200, got %d", tt.method, tt.path, w.Code)
		}
		if svc.requestID != "r1" {
			t.Errorf("%s %s: request id not forwarded", tt.method, tt.path)
		}
	}
	if svc.responseID != "x9" {
		t.Errorf("response id not forwarded, got %q", svc.responseID)
	}
	if svc.updateReq == nil || svc.updateReq.Status == nil || *svc.updateReq.Status != "fulfilled" {
		t.Errorf("status patch not bound: %+v", svc.updateReq)
	}
}

func TestBloodRequestHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		err      error
		wantHTTP int
		wantCode int
	}{
		{service.ErrInvalidBloodType, http.StatusBadRequest, CodeInvalidBloodType},
		{service.ErrInvalidUnits, http.StatusBadRequest, CodeInvalidUnits},
		{service.ErrInvalidUrgency, http.StatusBadRequest, CodeInvalidUrgency},
		{service.ErrInvalidStatusTransition, http.StatusBadRequest, CodeInvalidStatus},
		{service.ErrInvalidRemoveCount, http.StatusBadRequest, CodeInvalidCount},
		{service.ErrNotHospital, http.StatusForbidden, CodeNotHospital},
		{service.ErrNotDonor, http.StatusForbidden, CodeNotDonor},
		{service.ErrNotRequestOwner, http.StatusForbidden, CodeNotOwner},
		{service.ErrBloodRequestNotFound, http.StatusNotFound, CodeRequestNotFound},
		{service.ErrDonorResponseNotFound, http.StatusNotFound, CodeResponseNotFound},
		{service.ErrProfileNotFound, http.StatusNotFound, CodeProfileNotFound},
		{service.ErrConcurrentModification, http.StatusConflict, CodeConcurrentChange},
		{service.ErrAlreadyResponded, http.StatusConflict, CodeAlreadyResponded},
		{errors.New("disk on fire"), http.StatusInternalServerError, response.CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			r := newBloodRequestRouter(&mockBloodRequestService{err: tt.err}, "h1")
			w := doRequest(r, http.MethodPost, "/api/v1/blood-requests/r1/fulfill", "")
			if w.Code != tt.wantHTTP {
				t.Errorf("expected HTTP %d, got %d", tt.wantHTTP, w.Code)
			}
			if resp := decode(t, w); resp.Code != tt.wantCode {
				t.Errorf("expected code %d, got %d", tt.wantCode, resp.Code)
			}
		})
	}
}

func TestBloodRequestHandler_ReconcileIndices(t *testing.T) {
	svc := &mockBloodRequestService{report: &dto.IndexRepairReport{DanglingActiveEntries: 1}}
	r := newBloodRequestRouter(svc, "ops")

	w := doRequest(r, http.MethodPost, "/api/v1/admin/reconcile-indices", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"dangling_active_entries":1`) {
		t.Errorf("report missing from body: %s", w.Body.String())
	}
}

// ═══════════════════════════════════════════════════════════
// ExportHandler
// ═══════════════════════════════════════════════════════════

func newExportRouter(svc service.ExportService, userID string) *gin.Engine {
	h := NewExportHandler(svc)
	r := gin.New()
	r.GET("/api/v1/blood-requests/export", withCaller(userID), h.ExportRequests)
	return r
}

func TestExportHandler_Success(t *testing.T) {
	svc := &mockExportService{buf: bytes.NewBufferString("xlsx-bytes"), filename: "blood_requests_20260101.xlsx"}
	r := newExportRouter(svc, "h1")

	w := doRequest(r, http.MethodGet, "/api/v1/blood-requests/export", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("unexpected content type %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "blood_requests_20260101.xlsx") {
		t.Errorf("unexpected disposition %q", cd)
	}
	if w.Body.String() != "xlsx-bytes" {
		t.Errorf("unexpected body %q", w.Body.String())
	}
}

func TestExportHandler_Errors(t *testing.T) {
	tests := []struct {
		err      error
		wantHTTP int
	}{
		{service.ErrNotHospital, http.StatusForbidden},
		{service.ErrExportNoRequests, http.StatusNotFound},
		{service.ErrExportGenerateFail, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		r := newExportRouter(&mockExportService{err: tt.err}, "h1")
		w := doRequest(r, http.MethodGet, "/api/v1/blood-requests/export", "")
		if w.Code != tt.wantHTTP {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.wantHTTP, w.Code)
		}
	}
}
