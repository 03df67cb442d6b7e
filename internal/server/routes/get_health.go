package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Septimus4/AgendaFlow/internal/server/middleware"
)

// HealthHandler reports service and index status. The service is healthy
// even without an index; the ask endpoint returns 503 until one is loaded.
func HealthHandler(c echo.Context) error {
	type healthResponse struct {
		Status      string `json:"status"`
		IndexLoaded bool   `json:"index_loaded"`
		IndexSize   int    `json:"index_size"`
	}

	app := c.(*middleware.AppContext).App

	res := healthResponse{Status: "ok"}
	if m := app.Index.Load(); m != nil && m.Ready() {
		res.IndexLoaded = true
		res.IndexSize = m.Size()
	}
	return c.JSON(http.StatusOK, res)
}
