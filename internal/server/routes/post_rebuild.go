package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Septimus4/AgendaFlow/internal/event"
	"github.com/Septimus4/AgendaFlow/internal/index"
	"github.com/Septimus4/AgendaFlow/internal/metrics"
	"github.com/Septimus4/AgendaFlow/internal/server/middleware"
	"github.com/Septimus4/AgendaFlow/pkg/logger"
)

// RebuildHandler fetches a fresh corpus, builds a new index snapshot and
// swaps it in. The old snapshot keeps serving until the swap.
func RebuildHandler(c echo.Context) error {
	type rebuildResponse struct {
		Message   string `json:"message"`
		Documents int    `json:"documents,omitempty"`
	}

	start := time.Now()
	status := http.StatusOK
	defer func() {
		metrics.ObserveRequest("rebuild", status, start)
	}()

	app := c.(*middleware.AppContext).App

	auth := c.Request().Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token == "" {
		status = http.StatusUnauthorized
		return c.JSON(status, rebuildResponse{Message: "Missing bearer token"})
	}
	if app.RebuildToken == "" || token != app.RebuildToken {
		status = http.StatusForbidden
		return c.JSON(status, rebuildResponse{Message: "Invalid token"})
	}

	ctx := c.Request().Context()

	events, err := app.Loader.FetchEvents(ctx)
	if err != nil {
		logger.Error("Failed to fetch events for rebuild", "err", err)
		status = http.StatusBadGateway
		return c.JSON(status, rebuildResponse{Message: "Failed to fetch events"})
	}

	docs := make([]event.Document, len(events))
	for i := range events {
		docs[i] = event.NewDocument(&events[i])
	}

	manager := index.NewManager(app.Embedder, app.Store, app.IndexParams)
	if err := manager.Build(ctx, docs); err != nil {
		logger.Error("Failed to build index", "err", err)
		status = http.StatusInternalServerError
		return c.JSON(status, rebuildResponse{Message: "Failed to build index"})
	}
	if err := manager.Save(ctx, map[string]string{"trigger": "rebuild"}); err != nil {
		logger.Error("Failed to save index snapshot", "err", err)
		status = http.StatusInternalServerError
		return c.JSON(status, rebuildResponse{Message: "Failed to save index"})
	}

	app.SwapIndex(manager)
	logger.Info("Rebuilt index", "documents", manager.Size(), "took", time.Since(start).Round(time.Millisecond))

	return c.JSON(status, rebuildResponse{
		Message:   "Index rebuilt",
		Documents: manager.Size(),
	})
}
