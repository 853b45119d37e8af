// Package handler serves the cultivation engine over HTTP.
package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"cultivation_backend/internal/cultivation/domain"
	"cultivation_backend/internal/cultivation/service"
	"cultivation_backend/internal/cultivation/transport"
	"cultivation_backend/platform/httpkit"
	"cultivation_backend/platform/validator"

	"github.com/gin-gonic/gin"
	playground "github.com/go-playground/validator/v10"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidStatus    = "invalid status"
	msgInvalidBatchID   = "invalid batch id"
)

// Engine is the slice of the cultivation service the handlers call.
type Engine interface {
	ProvisionBatch(ctx context.Context, in service.ProvisionInput) (service.ProvisionResult, error)
	GetBatch(ctx context.Context, batchID string) (service.BatchView, error)
	ListBatches(ctx context.Context, in service.ListBatchesInput) (service.BatchPage, error)
	GetStatusCounts(ctx context.Context, batchID string) (domain.StatusCounts, error)
	SoftDeleteBatch(ctx context.Context, batchID, actor string) (int, error)

	ListAvailableTransitions(status domain.Status) ([]domain.Status, error)
	TransitionBaglet(ctx context.Context, in service.TransitionInput) (service.TransitionResult, error)
	BulkTransition(ctx context.Context, in service.BulkTransitionInput) (service.BulkTransitionResult, error)
	PrepareBaglet(ctx context.Context, in service.PrepareInput) (domain.Baglet, error)

	GetBaglet(ctx context.Context, bagletID string) (domain.Baglet, error)
	ListBaglets(ctx context.Context, batchID string) ([]domain.Baglet, error)
	ListStatusHistory(ctx context.Context, bagletID string) ([]domain.StatusLogEntry, error)
	MergeMetrics(ctx context.Context, bagletID string, patch domain.PartialMetrics) (domain.ObservedMetrics, error)

	RecordFindings(ctx context.Context, in service.RecordFindingsInput) (service.RecordFindingsResult, error)
	ListFindings(ctx context.Context, bagletID string) ([]domain.ContaminationFinding, error)
}

var _ Engine = (*service.Service)(nil)

// Handler handles HTTP requests for batches and baglets.
type Handler struct {
	svc Engine
	val *validator.Validator
}

// New creates a new cultivation handler.
func New(svc Engine, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterValidations adds the cultivation-specific validation tags:
//
//	baglet_status  a status a baglet row may hold (anything but NONE)
func RegisterValidations(val *validator.Validator) error {
	return val.RegisterValidation("baglet_status", func(fl playground.FieldLevel) bool {
		s, ok := fl.Field().Interface().(domain.Status)
		return ok && domain.IsPersistable(s)
	})
}

// bindJSON decodes and validates a request body, writing the 400 itself.
func (h *Handler) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return false
	}
	return true
}

// ProvisionBatch creates a batch and its baglets.
// POST /api/v1/batches
func (h *Handler) ProvisionBatch(c *gin.Context) {
	var req transport.ProvisionBatchRequest
	if !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var preparedDate time.Time
	if req.PreparedDate != "" {
		// Format already checked by the datetime tag.
		preparedDate, _ = time.Parse(transport.DateLayout, req.PreparedDate)
	}

	result, err := h.svc.ProvisionBatch(c.Request.Context(), service.ProvisionInput{
		FarmID:       req.FarmID,
		PreparedDate: preparedDate,
		StrainCode:   req.StrainCode,
		SubstrateID:  req.SubstrateID,
		BagletCount:  req.BagletCount,
		CreatedBy:    identity.Actor(),
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, transport.ProvisionBatchResponse{
		BatchID:        result.Batch.BatchID,
		FarmID:         result.Batch.FarmID,
		PreparedDate:   result.Batch.PreparedDate.Format(transport.DateLayout),
		BatchSequence:  result.Batch.BatchSequence,
		BagletIDs:      result.BagletIDs,
		PerUnitRecipe:  result.Recipe.PerUnit,
		PerBatchRecipe: result.Recipe.PerBatch,
	})
}

// ListBatches lists live batches.
// GET /api/v1/batches
func (h *Handler) ListBatches(c *gin.Context) {
	var req transport.ListBatchesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	in := service.ListBatchesInput{FarmID: req.FarmID, Page: req.Page, PageSize: req.PageSize}
	if req.PreparedDate != "" {
		d, _ := time.Parse(transport.DateLayout, req.PreparedDate)
		in.PreparedDate = &d
	}

	page, err := h.svc.ListBatches(c.Request.Context(), in)
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.BatchResponse, len(page.Items))
	for i, b := range page.Items {
		items[i] = transport.NewBatchResponse(b)
	}
	totalPages := 0
	if page.PageSize > 0 {
		totalPages = (page.Total + page.PageSize - 1) / page.PageSize
	}
	httpkit.OK(c, transport.BatchListResponse{
		Items:      items,
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: totalPages,
	})
}

// GetBatch returns a batch with its status summary.
// GET /api/v1/batches/:id
func (h *Handler) GetBatch(c *gin.Context) {
	batchID, ok := batchIDParam(c)
	if !ok {
		return
	}
	view, err := h.svc.GetBatch(c.Request.Context(), batchID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.BatchDetailResponse{
		BatchResponse: transport.NewBatchResponse(view.Batch),
		StatusCounts:  view.StatusCounts.ByName(),
		DerivedStatus: view.DerivedStatus,
	})
}

// GetStatusCounts returns the live baglet count per status.
// GET /api/v1/batches/:id/status-counts
func (h *Handler) GetStatusCounts(c *gin.Context) {
	batchID, ok := batchIDParam(c)
	if !ok {
		return
	}
	counts, err := h.svc.GetStatusCounts(c.Request.Context(), batchID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.StatusCountsResponse{
		BatchID:       batchID,
		Counts:        counts.ByName(),
		Total:         counts.Total(),
		DerivedStatus: domain.DeriveBatchStatus(counts),
	})
}

// ListBaglets lists the live baglets of a batch.
// GET /api/v1/batches/:id/baglets
func (h *Handler) ListBaglets(c *gin.Context) {
	batchID, ok := batchIDParam(c)
	if !ok {
		return
	}
	baglets, err := h.svc.ListBaglets(c.Request.Context(), batchID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": baglets})
}

// BulkTransition moves every baglet of a batch at one status to the next.
// POST /api/v1/batches/:id/transitions
func (h *Handler) BulkTransition(c *gin.Context) {
	batchID, ok := batchIDParam(c)
	if !ok {
		return
	}
	var req transport.BulkTransitionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.BulkTransition(c.Request.Context(), service.BulkTransitionInput{
		BatchID:    batchID,
		FromStatus: req.FromStatus,
		ToStatus:   req.ToStatus,
		Notes:      req.Notes,
		Actor:      identity.Actor(),
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.BulkTransitionResponse{
		BatchID:      batchID,
		UpdatedCount: result.UpdatedCount,
		BagletIDs:    result.BagletIDs,
	})
}

// ListAvailableTransitions returns the statuses reachable in one step.
// GET /api/v1/statuses/:status/transitions
func (h *Handler) ListAvailableTransitions(c *gin.Context) {
	status, err := domain.ParseStatus(c.Param("status"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidStatus, nil)
		return
	}
	next, err := h.svc.ListAvailableTransitions(status)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.AvailableTransitionsResponse{Status: status, Next: next})
}

// GetBaglet returns a live baglet.
// GET /api/v1/baglets/:id
func (h *Handler) GetBaglet(c *gin.Context) {
	baglet, err := h.svc.GetBaglet(c.Request.Context(), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, baglet)
}

// ListStatusHistory returns a baglet's audit trail.
// GET /api/v1/baglets/:id/history
func (h *Handler) ListStatusHistory(c *gin.Context) {
	entries, err := h.svc.ListStatusHistory(c.Request.Context(), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": entries})
}

// TransitionBaglet applies one lifecycle edge.
// POST /api/v1/baglets/:id/transitions
func (h *Handler) TransitionBaglet(c *gin.Context) {
	var req transport.TransitionBagletRequest
	if !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.TransitionBaglet(c.Request.Context(), service.TransitionInput{
		BagletID:       c.Param("id"),
		ExpectedStatus: *req.ExpectedStatus,
		NewStatus:      req.NewStatus,
		Notes:          req.Notes,
		Actor:          identity.Actor(),
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.TransitionBagletResponse{
		BagletID:       result.BagletID,
		BatchID:        result.BatchID,
		PreviousStatus: result.PreviousStatus,
		NewStatus:      result.NewStatus,
	})
}

// PrepareBaglet records preparation metrics and moves the baglet to PREPARED.
// POST /api/v1/baglets/:id/prepare
func (h *Handler) PrepareBaglet(c *gin.Context) {
	var req transport.PrepareBagletRequest
	if !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	baglet, err := h.svc.PrepareBaglet(c.Request.Context(), service.PrepareInput{
		BagletID: c.Param("id"),
		Metrics:  req.Metrics.Partial(),
		Notes:    req.Notes,
		Actor:    identity.Actor(),
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, baglet)
}

// MergeMetrics overwrites the supplied metric fields.
// PATCH /api/v1/baglets/:id/metrics
func (h *Handler) MergeMetrics(c *gin.Context) {
	var req transport.MetricsPayload
	if !h.bindJSON(c, &req) {
		return
	}

	merged, err := h.svc.MergeMetrics(c.Request.Context(), c.Param("id"), req.Partial())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, merged)
}

// RecordFindings stores contamination findings on a baglet.
// POST /api/v1/baglets/:id/findings
func (h *Handler) RecordFindings(c *gin.Context) {
	var req transport.RecordFindingsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	findings := make([]service.FindingInput, len(req.Findings))
	for i, f := range req.Findings {
		findings[i] = service.FindingInput{Code: f.Code, Notes: f.Notes}
	}
	bagletID := c.Param("id")
	result, err := h.svc.RecordFindings(c.Request.Context(), service.RecordFindingsInput{
		BagletID: bagletID,
		Findings: findings,
		Actor:    identity.Actor(),
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.RecordFindingsResponse{
		BagletID:     bagletID,
		Status:       result.Status,
		Transitioned: result.Transitioned,
		Findings:     result.Findings,
	})
}

// ListFindings returns the findings recorded on a baglet.
// GET /api/v1/baglets/:id/findings
func (h *Handler) ListFindings(c *gin.Context) {
	findings, err := h.svc.ListFindings(c.Request.Context(), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": findings})
}

// SoftDeleteBatch hides a batch and its baglets.
// DELETE /api/v1/admin/batches/:id
func (h *Handler) SoftDeleteBatch(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	batchID, ok := batchIDParam(c)
	if !ok {
		return
	}
	flagged, err := h.svc.SoftDeleteBatch(c.Request.Context(), batchID, identity.Actor())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.SoftDeleteBatchResponse{BatchID: batchID, BagletsFlagged: flagged})
}

// batchIDParam reads :id and rejects values that are not well-formed batch
// ids, so lookups for garbage never reach the store.
func batchIDParam(c *gin.Context) (string, bool) {
	batchID := strings.TrimSpace(c.Param("id"))
	if _, err := domain.ParseBatchID(batchID); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidBatchID, err.Error())
		return "", false
	}
	return batchID, true
}
