package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Septimus4/AgendaFlow/internal/server/routes"
)

func RegisterRoutes(e *echo.Echo) {
	e.GET("/", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"service": "AgendaFlow",
			"docs":    "/health, /metrics, /api/ask, /api/rebuild",
		})
	})
	e.GET("/health", routes.HealthHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiRoutes := e.Group("/api")

	apiRoutes.POST("/ask", routes.AskHandler)
	apiRoutes.POST("/rebuild", routes.RebuildHandler)
}
