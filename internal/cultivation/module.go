// Package cultivation provides the batch and baglet lifecycle bounded
// context module.
package cultivation

import (
	"cultivation_backend/internal/cultivation/handler"
	"cultivation_backend/internal/cultivation/repository"
	"cultivation_backend/internal/cultivation/service"
	"cultivation_backend/internal/events"
	apphttp "cultivation_backend/internal/http"
	"cultivation_backend/platform/config"
	"cultivation_backend/platform/db"
	"cultivation_backend/platform/logger"
	"cultivation_backend/platform/validator"
)

// Module is the cultivation bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Repository
}

// NewModule creates and initializes the cultivation module. observer may be
// nil.
func NewModule(pool db.Pool, bus events.Bus, val *validator.Validator, cfg config.CultivationConfig, log *logger.Logger, observer service.OperationObserver) (*Module, error) {
	if err := handler.RegisterValidations(val); err != nil {
		return nil, err
	}

	repo := repository.New(pool)

	var opts []service.Option
	if observer != nil {
		opts = append(opts, service.WithObserver(observer))
	}
	svc := service.New(repo, bus, val, cfg, log, opts...)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		repo:    repo,
	}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "cultivation"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts cultivation routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/statuses/:status/transitions", m.handler.ListAvailableTransitions)

	batches := ctx.Protected.Group("/batches")
	batches.POST("", m.handler.ProvisionBatch)
	batches.GET("", m.handler.ListBatches)
	batches.GET("/:id", m.handler.GetBatch)
	batches.GET("/:id/baglets", m.handler.ListBaglets)
	batches.GET("/:id/status-counts", m.handler.GetStatusCounts)
	batches.POST("/:id/transitions", m.handler.BulkTransition)

	baglets := ctx.Protected.Group("/baglets")
	baglets.GET("/:id", m.handler.GetBaglet)
	baglets.GET("/:id/history", m.handler.ListStatusHistory)
	baglets.POST("/:id/transitions", m.handler.TransitionBaglet)
	baglets.POST("/:id/prepare", m.handler.PrepareBaglet)
	baglets.PATCH("/:id/metrics", m.handler.MergeMetrics)
	baglets.POST("/:id/findings", m.handler.RecordFindings)
	baglets.GET("/:id/findings", m.handler.ListFindings)

	ctx.Admin.DELETE("/batches/:id", m.handler.SoftDeleteBatch)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
