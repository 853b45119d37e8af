// Package handler serves the reference catalog over HTTP.
package handler

import (
	"context"
	"net/http"

	"cultivation_backend/internal/catalog/repository"
	"cultivation_backend/internal/catalog/service"
	"cultivation_backend/internal/catalog/transport"
	"cultivation_backend/internal/cultivation/domain"
	"cultivation_backend/platform/httpkit"
	"cultivation_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Catalog is the slice of the catalog service the handlers call.
type Catalog interface {
	ListStrains(ctx context.Context) ([]domain.Strain, error)
	ListSubstrates(ctx context.Context) ([]repository.Substrate, error)
	GetSubstrate(ctx context.Context, substrateID string) (repository.Substrate, error)
	ListContaminationCodes(ctx context.Context) ([]domain.ContaminationCode, error)
	UpsertStrains(ctx context.Context, strains []domain.Strain) (int, error)
	UpsertSubstrates(ctx context.Context, substrates []repository.Substrate) (int, error)
	UpsertContaminationCodes(ctx context.Context, codes []domain.ContaminationCode) (int, error)
}

var _ Catalog = (*service.Service)(nil)

// Handler handles HTTP requests for the catalog.
type Handler struct {
	svc Catalog
	val *validator.Validator
}

// New creates a new catalog handler.
func New(svc Catalog, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// ListStrains lists active strains.
// GET /api/v1/catalog/strains
func (h *Handler) ListStrains(c *gin.Context) {
	items, err := h.svc.ListStrains(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.StrainListResponse{Items: items})
}

// ListSubstrates lists active substrates without recipes.
// GET /api/v1/catalog/substrates
func (h *Handler) ListSubstrates(c *gin.Context) {
	items, err := h.svc.ListSubstrates(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.SubstrateListResponse{Items: items})
}

// GetSubstrate returns a substrate with its recipe.
// GET /api/v1/catalog/substrates/:id
func (h *Handler) GetSubstrate(c *gin.Context) {
	sub, err := h.svc.GetSubstrate(c.Request.Context(), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, sub)
}

// ListContaminationCodes lists active contamination codes.
// GET /api/v1/catalog/contamination-codes
func (h *Handler) ListContaminationCodes(c *gin.Context) {
	items, err := h.svc.ListContaminationCodes(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ContaminationCodeListResponse{Items: items})
}

// UpsertStrains inserts or replaces strains.
// PUT /api/v1/admin/catalog/strains
func (h *Handler) UpsertStrains(c *gin.Context) {
	var req transport.UpsertStrainsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	n, err := h.svc.UpsertStrains(c.Request.Context(), req.ToStrains())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.UpsertResponse{Section: service.SectionStrains, Count: n})
}

// UpsertSubstrates inserts or replaces substrates and their recipes.
// PUT /api/v1/admin/catalog/substrates
func (h *Handler) UpsertSubstrates(c *gin.Context) {
	var req transport.UpsertSubstratesRequest
	if !h.bindJSON(c, &req) {
		return
	}
	n, err := h.svc.UpsertSubstrates(c.Request.Context(), req.ToSubstrates())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.UpsertResponse{Section: service.SectionSubstrates, Count: n})
}

// UpsertContaminationCodes inserts or replaces contamination codes.
// PUT /api/v1/admin/catalog/contamination-codes
func (h *Handler) UpsertContaminationCodes(c *gin.Context) {
	var req transport.UpsertContaminationCodesRequest
	if !h.bindJSON(c, &req) {
		return
	}
	n, err := h.svc.UpsertContaminationCodes(c.Request.Context(), req.ToCodes())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.UpsertResponse{Section: service.SectionContaminationCodes, Count: n})
}

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
