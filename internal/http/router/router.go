// Package router assembles the gin engine from the application modules.
package router

import (
	"context"
	"net/http"
	"time"

	apphttp "cultivation_backend/internal/http"
	"cultivation_backend/platform/httpkit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	healthTimeout = 2 * time.Second
	adminRole     = "admin"
)

// New builds the HTTP engine: shared middleware, ops endpoints, and the
// versioned API with its protected and admin groups.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(cors.New(corsConfig(app.Config)))

	if app.Metrics != nil {
		engine.Use(app.Metrics.GinMiddleware())
		engine.GET("/metrics", gin.WrapH(app.Metrics.Handler()))
	}

	engine.GET("/api/health", healthHandler(app.Health))

	v1 := engine.Group("/api/v1")
	if rps := app.Config.GetRateLimitRPS(); rps > 0 {
		limiter := httpkit.NewIPRateLimiter(rate.Limit(rps), int(rps)*2+1, app.Logger)
		v1.Use(limiter.RateLimit())
	}

	protected := v1.Group("")
	protected.Use(httpkit.AuthRequired(app.Config))

	admin := protected.Group("/admin")
	admin.Use(httpkit.RequireRole(adminRole))

	routerCtx := &apphttp.RouterContext{
		V1:        v1,
		Protected: protected,
		Admin:     admin,
	}
	for _, module := range app.Modules {
		module.RegisterRoutes(routerCtx)
		app.Logger.Debug("module routes registered", "module", module.Name())
	}

	return engine
}

func corsConfig(cfg apphttp.RouterConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", httpkit.HeaderRequestID},
		ExposeHeaders:    []string{httpkit.HeaderRequestID},
		AllowCredentials: cfg.GetCORSAllowCreds(),
		MaxAge:           12 * time.Hour,
	}
	if cfg.GetCORSAllowAll() || len(cfg.GetCORSOrigins()) == 0 {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
		return c
	}
	c.AllowOrigins = cfg.GetCORSOrigins()
	return c
}

func healthHandler(health apphttp.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
			defer cancel()
			if err := health.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
