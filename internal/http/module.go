// Package http holds the contract between the router and the domain modules.
package http

import "github.com/gin-gonic/gin"

// Module is a bounded context that mounts its own routes.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext carries the route groups a module may mount on. Protected
// requires a valid access token; Admin additionally requires the admin role
// and sits under /api/v1/admin.
type RouterContext struct {
	V1        *gin.RouterGroup
	Protected *gin.RouterGroup
	Admin     *gin.RouterGroup
}
