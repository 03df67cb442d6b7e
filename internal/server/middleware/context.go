package middleware

import (
	"sync/atomic"

	"github.com/labstack/echo/v4"

	"github.com/Septimus4/AgendaFlow/internal/embedding"
	"github.com/Septimus4/AgendaFlow/internal/index"
	"github.com/Septimus4/AgendaFlow/internal/ingest"
	"github.com/Septimus4/AgendaFlow/internal/metrics"
	"github.com/Septimus4/AgendaFlow/internal/pipeline"
	"github.com/Septimus4/AgendaFlow/internal/queryparse"
	"github.com/Septimus4/AgendaFlow/internal/retriever"
	"github.com/Septimus4/AgendaFlow/internal/storage"
	"github.com/Septimus4/AgendaFlow/pkg/ai"
)

// App holds the shared handles every request handler needs. Pipeline and
// Index are swapped atomically on rebuild so in-flight requests keep the
// snapshot they started with.
type App struct {
	Pipeline *atomic.Pointer[pipeline.Pipeline]
	Index    *atomic.Pointer[index.Manager]

	Loader   *ingest.Loader
	Embedder *embedding.Generator
	Store    storage.Store
	AiClient ai.Client

	ChatModel    string
	IndexParams  index.Params
	RebuildToken string
}

// SwapIndex installs a new index snapshot and the pipeline built on top of
// it.
func (a *App) SwapIndex(m *index.Manager) {
	a.Index.Store(m)
	p := pipeline.New(
		queryparse.NewParser(),
		m,
		retriever.New(m, a.Embedder, retriever.Config{}),
		pipeline.NewGenerator(a.AiClient, a.ChatModel),
	)
	a.Pipeline.Store(p)
	metrics.SetIndexSize(m.Size())
}

// AppContext decorates the echo context with the application handles.
type AppContext struct {
	echo.Context
	App *App
}

// AppContextMiddleware wraps every request context in an AppContext.
func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{c, app})
		}
	}
}
