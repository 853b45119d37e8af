// Package catalog provides the reference catalog bounded context module.
package catalog

import (
	"cultivation_backend/internal/catalog/handler"
	"cultivation_backend/internal/catalog/repository"
	"cultivation_backend/internal/catalog/service"
	"cultivation_backend/internal/events"
	apphttp "cultivation_backend/internal/http"
	"cultivation_backend/platform/cache"
	"cultivation_backend/platform/config"
	"cultivation_backend/platform/db"
	"cultivation_backend/platform/logger"
	"cultivation_backend/platform/validator"
)

// Module is the catalog bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Repository
}

// NewModule creates and initializes the catalog module. recorder may be nil.
func NewModule(pool db.Pool, c cache.Cache, cfg config.CacheConfig, bus events.Bus, val *validator.Validator, log *logger.Logger, recorder service.CacheRecorder) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, c, cfg.GetCatalogCacheTTL(), bus, log, recorder)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "catalog"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the repository for direct access if needed.
func (m *Module) Repository() repository.Repository {
	return m.repo
}

// RegisterRoutes mounts catalog routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Protected read-only endpoints
	ctx.Protected.GET("/catalog/strains", m.handler.ListStrains)
	ctx.Protected.GET("/catalog/substrates", m.handler.ListSubstrates)
	ctx.Protected.GET("/catalog/substrates/:id", m.handler.GetSubstrate)
	ctx.Protected.GET("/catalog/contamination-codes", m.handler.ListContaminationCodes)

	// Admin upserts
	adminGroup := ctx.Admin.Group("/catalog")
	adminGroup.PUT("/strains", m.handler.UpsertStrains)
	adminGroup.PUT("/substrates", m.handler.UpsertSubstrates)
	adminGroup.PUT("/contamination-codes", m.handler.UpsertContaminationCodes)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
