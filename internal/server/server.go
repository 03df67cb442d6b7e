package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Septimus4/AgendaFlow/internal/embedding"
	"github.com/Septimus4/AgendaFlow/internal/index"
	"github.com/Septimus4/AgendaFlow/internal/ingest"
	"github.com/Septimus4/AgendaFlow/internal/pipeline"
	mid "github.com/Septimus4/AgendaFlow/internal/server/middleware"
	"github.com/Septimus4/AgendaFlow/internal/storage"
	"github.com/Septimus4/AgendaFlow/internal/util"
	"github.com/Septimus4/AgendaFlow/pkg/ai"
	oai "github.com/Septimus4/AgendaFlow/pkg/ai/ollama"
	gai "github.com/Septimus4/AgendaFlow/pkg/ai/openai"
	"github.com/Septimus4/AgendaFlow/pkg/logger"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aiClient := newAIClient()

	embedder, err := embedding.NewGenerator(embedding.NewGeneratorParams{
		Client:   aiClient,
		Model:    util.GetEnv("AI_EMBED_MODEL"),
		CacheDir: util.GetEnvString("EMBED_CACHE_DIR", ""),
	})
	if err != nil {
		logger.Fatal("Failed to create embedding generator", "err", err)
	}

	store := newStore(ctx)

	manager := index.NewManager(embedder, store, index.DefaultParams())
	loaded, err := manager.Load(ctx)
	if err != nil {
		logger.Fatal("Failed to load index snapshot", "err", err)
	}
	if !loaded {
		logger.Warn("No index snapshot found, serving 503 until a rebuild")
	}

	ingestClient := ingest.NewClient(
		util.GetEnv("OPENAGENDA_KEY"),
		util.GetEnvString("OPENAGENDA_URL", ""),
	)
	loader := ingest.NewLoader(ingestClient,
		util.GetEnvString("CITY", "Paris"),
		util.GetEnvString("OPENAGENDA_MODE", ingest.ModeAgenda),
	)

	app := &mid.App{
		Pipeline:     &atomic.Pointer[pipeline.Pipeline]{},
		Index:        &atomic.Pointer[index.Manager]{},
		Loader:       loader,
		Embedder:     embedder,
		Store:        store,
		AiClient:     aiClient,
		ChatModel:    util.GetEnv("AI_CHAT_MODEL"),
		IndexParams:  index.DefaultParams(),
		RebuildToken: util.GetEnv("REBUILD_TOKEN"),
	}
	if loaded {
		app.SwapIndex(manager)
	} else {
		app.Index.Store(manager)
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	RegisterRoutes(e)

	go func() {
		port := util.GetEnv("PORT")
		if port == "" {
			port = "8080"
		}
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}

func newAIClient() ai.Client {
	adapter := util.GetEnv("AI_ADAPTER")

	switch adapter {
	case "ollama":
		client, err := oai.NewEventOllamaClient(oai.NewEventOllamaClientParams{
			EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),
			ChatModel:      util.GetEnv("AI_CHAT_MODEL"),

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 4)),
		})
		if err != nil {
			logger.Fatal("Failed to create Ollama client", "err", err)
		}
		return client
	default:
		return gai.NewEventAIClient(gai.NewEventAIClientParams{
			EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),
			ChatModel:      util.GetEnv("AI_CHAT_MODEL"),

			EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
			EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),
			ChatURL:      util.GetEnv("AI_CHAT_URL"),
			ChatKey:      util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 4)),
		})
	}
}

func newStore(ctx context.Context) storage.Store {
	switch util.GetEnvString("STORAGE_BACKEND", "local") {
	case "s3":
		client, err := storage.NewS3Client(ctx)
		if err != nil {
			logger.Fatal("Failed to create S3 client", "err", err)
		}
		return storage.NewS3Store(client,
			util.GetEnv("S3_BUCKET"),
			util.GetEnvString("S3_PREFIX", "index"),
		)
	default:
		return storage.NewLocalStore(util.GetEnvString("INDEX_DIR", "data/index"))
	}
}
