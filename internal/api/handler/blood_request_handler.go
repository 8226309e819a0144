package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"blood-connect/backend/internal/dto"
	"blood-connect/backend/internal/service"
	"blood-connect/backend/pkg/response"
)

// Blood request module error codes.
const (
	CodeInvalidBloodType = 20001
	CodeInvalidUnits     = 20002
	CodeInvalidUrgency   = 20003
	CodeInvalidStatus    = 20004
	CodeInvalidCount     = 20005
	CodeInvalidDistance  = 20006
	CodeNotHospital      = 20301
	CodeNotDonor         = 20302
	CodeNotOwner         = 20303
	CodeRequestNotFound  = 20401
	CodeResponseNotFound = 20402
	CodeProfileNotFound  = 20403
	CodeExportEmpty      = 20404
	CodeConcurrentChange = 20901
	CodeAlreadyResponded = 20902
)

// BloodRequestHandler blood request lifecycle endpoints
type BloodRequestHandler struct {
	svc service.BloodRequestService
}

// NewBloodRequestHandler creates a BloodRequestHandler
func NewBloodRequestHandler(svc service.BloodRequestService) *BloodRequestHandler {
	return &BloodRequestHandler{svc: svc}
}

// ════════════════════════════════════════════════════════════
// Requests
// ════════════════════════════════════════════════════════════

// CreateRequest posts a new blood request
// POST /api/v1/blood-requests
func (h *BloodRequestHandler) CreateRequest(c *gin.Context) {
	var req dto.CreateBloodRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeInvalidParams, "invalid request body", err.Error())
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	br, err := h.svc.Create(c.Request.Context(), callerID, &req)
	if err != nil {
		h.handleBloodRequestError(c, err)
		return
	}

	response.OK(c, br)
}

// ListRequests hospital: own requests; donor: matching active requests
// GET /api/v1/blood-requests
func (h *BloodRequestHandler) ListRequests(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, err := h.svc.List(c.Request.Context(), callerID)
	if err != nil {
		h.handleBloodRequestError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// UpdateRequest partial update with optional status transition
// PUT /api/v1/blood-requests/:id
func (h *BloodRequestHandler) UpdateRequest(c *gin.Context) {
	var req dto.UpdateBloodRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeInvalidParams, "invalid request body", err.Error())
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	br, err := h.svc.UpdateRequest(c.Request.Context(), callerID, c.Param("id"), &req)
	if err != nil {
		h.handleBloodRequestError(c, err)
		return
	}

	response.OK(c, br)
}

// EditRequest edits non-status fields
// PATCH /api/v1/blood-requests/:id
func (h *BloodRequestHandler) EditRequest(c *gin.Context) {
	var req dto.EditBloodRequestFields
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeInvalidParams, "invalid request body", err.Error())
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	br, err := h.svc.EditFields(c.Request.Context(), callerID, c.Param("id"), &req)
	if err != nil {
		h.handleBloodRequestError(c, err)
		return
	}

	response.OK(c, br)
}

// DeleteRequest deletes the request; with ?count=N applies the removal policy
// DELETE /api/v1/blood-requests/:id
func (h *BloodRequestHandler) DeleteRequest(c *gin.Context) {
	var q dto.RemoveRequestQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, CodeInvalidCount, "count must be an integer")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if q.Count == nil {
		if err := h.svc.DeleteRequest(c.Request.Context(), callerID, c.Param("id")); err != nil {
			h.handleBloodRequestError(c, err)
			return
		}
		response.OK(c, dto.RemoveRequestResponse{Deleted: true})
		return
	}

	res, err := h.svc.RemoveRequest(c.Request.Context(), callerID, c.Param("id"), q.Count)
	if err != nil {
		h.handleBloodRequestError(c, err)
		return
	}

	response.OK(c, res)
}

// FulfillRequest active -> fulfilled
// POST /api/v1/blood-requests/:id/fulfill
func (h *BloodRequestHandler) FulfillRequest(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	br, err := h.svc.Fulfill(c.Request.Context(), callerID, c.Param("id"))
	if err != nil {
		h.handleBloodRequestError(c, err)
		return
	}

	response.OK(c, br)
}

// CancelRequest active -> cancelled
// POST /api/v1/blood-requests/:id/cancel
func (h *BloodRequestHandler) CancelRequest(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	br, err := h.svc.Cancel(c.Request.Context(), callerID, c.Param("id"))
	if err != nil {
		h.handleBloodRequestError(c, err)
		return
	}

	response.OK(c, br)
}

// ════════════════════════════════════════════════════════════
// Responses
// ════════════════════════════════════════════════════════════

// Respond records the donor's response
// POST /api/v1/blood-requests/:id/respond
func (h *BloodRequestHandler) Respond(c *gin.Context) {
	var req dto.RespondRequest
	// an empty body means "use defaults"
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeInvalidParams, "invalid request body", err.Error())
			return
		}
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	res, err := h.svc.Respond(c.Request.Context(), callerID, c.Param("id"), &req)
	if err != nil {
		h.handleBloodRequestError(c, err)
		return
	}

	response.OK(c, res)
}

// AcceptResponse marks a donor response accepted
// POST /api/v1/blood-requests/:id/responses/:responseId/accept
func (h *BloodRequestHandler) AcceptResponse(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	br, err := h.svc.AcceptResponse(c.Request.Context(), callerID, c.Param("id"), c.Param("responseId"))
	if err != nil {
		h.handleBloodRequestError(c, err)
		return
	}

	response.OK(c, br)
}

// DeclineResponse removes a donor response
// POST /api/v1/blood-requests/:id/responses/:responseId/decline
func (h *BloodRequestHandler) DeclineResponse(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	br, err := h.svc.DeclineResponse(c.Request.Context(), callerID, c.Param("id"), c.Param("responseId"))
	if err != nil {
		h.handleBloodRequestError(c, err)
		return
	}

	response.OK(c, br)
}

// ── error mapping ──

func (h *BloodRequestHandler) handleBloodRequestError(c *gin.Context, err error) {
	switch {
	// 400
	case errors.Is(err, service.ErrInvalidBloodType):
		response.BadRequest(c, CodeInvalidBloodType, err.Error())
	case errors.Is(err, service.ErrInvalidUnits):
		response.BadRequest(c, CodeInvalidUnits, err.Error())
	case errors.Is(err, service.ErrInvalidUrgency):
		response.BadRequest(c, CodeInvalidUrgency, err.Error())
	case errors.Is(err, service.ErrInvalidStatus), errors.Is(err, service.ErrInvalidStatusTransition):
		response.BadRequest(c, CodeInvalidStatus, err.Error())
	case errors.Is(err, service.ErrInvalidRemoveCount):
		response.BadRequest(c, CodeInvalidCount, err.Error())
	case errors.Is(err, service.ErrInvalidDistance):
		response.BadRequest(c, CodeInvalidDistance, err.Error())

	// 403
	case errors.Is(err, service.ErrNotHospital):
		response.Forbidden(c, CodeNotHospital, err.Error())
	case errors.Is(err, service.ErrNotDonor):
		response.Forbidden(c, CodeNotDonor, err.Error())
	case errors.Is(err, service.ErrNotRequestOwner):
		response.Forbidden(c, CodeNotOwner, err.Error())

	// 404
	case errors.Is(err, service.ErrBloodRequestNotFound):
		response.NotFound(c, CodeRequestNotFound, err.Error())
	case errors.Is(err, service.ErrDonorResponseNotFound):
		response.NotFound(c, CodeResponseNotFound, err.Error())
	case errors.Is(err, service.ErrProfileNotFound):
		response.NotFound(c, CodeProfileNotFound, err.Error())

	// 409
	case errors.Is(err, service.ErrConcurrentModification):
		response.Conflict(c, CodeConcurrentChange, err.Error())
	case errors.Is(err, service.ErrAlreadyResponded):
		response.Conflict(c, CodeAlreadyResponded, err.Error())

	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}

// ReconcileIndices runs an index repair pass on demand
// POST /api/v1/admin/reconcile-indices
func (h *BloodRequestHandler) ReconcileIndices(c *gin.Context) {
	report, err := h.svc.ReconcileIndices(c.Request.Context())
	if err != nil {
		h.handleBloodRequestError(c, err)
		return
	}

	response.OK(c, report)
}
