package routes

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/Septimus4/AgendaFlow/internal/metrics"
	"github.com/Septimus4/AgendaFlow/internal/pipeline"
	"github.com/Septimus4/AgendaFlow/internal/server/middleware"
	"github.com/Septimus4/AgendaFlow/pkg/logger"
)

// AskHandler answers one natural-language event question.
func AskHandler(c echo.Context) error {
	type askBody struct {
		Question       string `json:"question" validate:"required"`
		FromDate       string `json:"from_date" validate:"omitempty"`
		ToDate         string `json:"to_date" validate:"omitempty"`
		Category       string `json:"category" validate:"omitempty"`
		Price          string `json:"price" validate:"omitempty,oneof=free cheap"`
		Arrondissement int    `json:"arrondissement" validate:"omitempty,min=1,max=20"`
		Language       string `json:"language" validate:"omitempty,oneof=fr en"`
	}

	type askResponse struct {
		Message string `json:"message,omitempty"`
		TraceID string `json:"trace_id,omitempty"`
		*pipeline.AnswerResult
	}

	start := time.Now()
	status := http.StatusOK
	defer func() {
		metrics.ObserveRequest("ask", status, start)
	}()

	data := new(askBody)
	if err := c.Bind(data); err != nil {
		status = http.StatusBadRequest
		return c.JSON(status, askResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		status = http.StatusBadRequest
		return c.JSON(status, askResponse{Message: "Invalid request body"})
	}

	var overrides pipeline.Overrides
	if data.FromDate != "" {
		t, err := time.Parse(time.RFC3339, data.FromDate)
		if err != nil {
			status = http.StatusBadRequest
			return c.JSON(status, askResponse{Message: "from_date must be RFC 3339"})
		}
		overrides.FromDate = &t
	}
	if data.ToDate != "" {
		t, err := time.Parse(time.RFC3339, data.ToDate)
		if err != nil {
			status = http.StatusBadRequest
			return c.JSON(status, askResponse{Message: "to_date must be RFC 3339"})
		}
		overrides.ToDate = &t
	}
	overrides.Category = data.Category
	overrides.Price = data.Price
	overrides.Arrondissement = data.Arrondissement
	overrides.Language = data.Language

	traceID, _ := gonanoid.New()

	app := c.(*middleware.AppContext).App
	p := app.Pipeline.Load()
	if p == nil {
		status = http.StatusServiceUnavailable
		return c.JSON(status, askResponse{
			Message: "Index not ready, try again later",
			TraceID: traceID,
		})
	}

	result, err := p.Answer(c.Request().Context(), data.Question, overrides)
	if errors.Is(err, pipeline.ErrNotReady) {
		status = http.StatusServiceUnavailable
		return c.JSON(status, askResponse{
			Message: "Index not ready, try again later",
			TraceID: traceID,
		})
	}
	if err != nil {
		logger.Error("Failed to answer question", "trace_id", traceID, "err", err)
		status = http.StatusInternalServerError
		return c.JSON(status, askResponse{
			Message: "Internal server error",
			TraceID: traceID,
		})
	}

	metrics.ObserveAnswer(result.RetrievalMs, result.GenerationMs, len(result.Events), result.Error != "")
	logger.Info("Answered question",
		"trace_id", traceID,
		"events", len(result.Events),
		"latency_ms", result.LatencyMs,
		"degraded", result.Error != "",
	)

	return c.JSON(status, askResponse{
		TraceID:      traceID,
		AnswerResult: result,
	})
}
