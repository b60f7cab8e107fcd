// Package routes registers all HTTP routes for the service.
package routes

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openctemio/observe/internal/config"
	infrahttp "github.com/openctemio/observe/internal/infra/http"
	"github.com/openctemio/observe/internal/infra/http/handler"
	"github.com/openctemio/observe/internal/infra/http/middleware"
)

// Router is an alias to the http package's Router interface.
type Router = infrahttp.Router

// Handlers holds all HTTP handlers for route registration.
type Handlers struct {
	Health      *handler.HealthHandler
	Product     *handler.ProductHandler
	Observation *handler.ObservationHandler
	Rule        *handler.RuleHandler
	Import      *handler.ImportHandler
	VEX         *handler.VEXHandler
}

// Register registers all application routes.
// This keeps route definitions in the infrastructure layer, not in main.
func Register(router Router, h Handlers, cfg *config.Config) {
	router.GET("/health", h.Health.Health)
	router.GET("/ready", h.Health.Ready)
	router.GET("/metrics", promhttp.Handler().ServeHTTP)

	// Scan uploads carry their own, larger body limit.
	router.Group("/api/v1/imports", func(api Router) {
		api.POST("/file", h.Import.ImportFile)
	}, middleware.BodyLimit(cfg.Import.MaxBodySize))

	router.Group("/api/v1", func(api Router) {
		api.POST("/products", h.Product.Create)
		api.GET("/products/{productId}", h.Product.Get)
		api.GET("/products/{productId}/branches", h.Product.ListBranches)
		api.GET("/products/{productId}/observations", h.Observation.ListForProduct)

		api.GET("/observations/{observationId}", h.Observation.Get)
		api.PUT("/observations/{observationId}/assessment", h.Observation.Assess)

		api.POST("/rules", h.Rule.Create)
		api.GET("/rules", h.Rule.List)
		api.GET("/rules/{ruleId}", h.Rule.Get)
		api.PUT("/rules/{ruleId}/approval", h.Rule.SetApproval)

		api.POST("/vex/documents", h.VEX.Import)
	}, middleware.BodyLimit(cfg.Server.MaxBodySize))
}
