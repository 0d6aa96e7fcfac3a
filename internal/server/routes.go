package server

import (
	"github.com/weftlabs/weft/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api")

	apiRoutes.POST("/query", routes.QueryHandler)
	apiRoutes.POST("/rebuild", routes.RebuildHandler)
	apiRoutes.GET("/stats", routes.StatsHandler)
}
