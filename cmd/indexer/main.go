package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Septimus4/AgendaFlow/internal/embedding"
	"github.com/Septimus4/AgendaFlow/internal/event"
	"github.com/Septimus4/AgendaFlow/internal/index"
	"github.com/Septimus4/AgendaFlow/internal/ingest"
	"github.com/Septimus4/AgendaFlow/internal/storage"
	"github.com/Septimus4/AgendaFlow/internal/util"
	"github.com/Septimus4/AgendaFlow/pkg/ai"
	oai "github.com/Septimus4/AgendaFlow/pkg/ai/ollama"
	gai "github.com/Septimus4/AgendaFlow/pkg/ai/openai"
	"github.com/Septimus4/AgendaFlow/pkg/logger"
	"github.com/Septimus4/AgendaFlow/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	var (
		fromSnapshot = flag.String("from-snapshot", "", "build from a corpus snapshot instead of fetching")
		saveSnapshot = flag.String("save-snapshot", "", "write the fetched corpus to this path")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	city := util.GetEnvString("CITY", "Paris")

	var (
		events []event.Event
		err    error
	)
	if *fromSnapshot != "" {
		events, err = ingest.LoadSnapshot(*fromSnapshot)
		if err != nil {
			logger.Fatal("Failed to load corpus snapshot", "path", *fromSnapshot, "err", err)
		}
		logger.Info("Loaded corpus snapshot", "path", *fromSnapshot, "events", len(events))
	} else {
		client := ingest.NewClient(
			util.GetEnv("OPENAGENDA_KEY"),
			util.GetEnvString("OPENAGENDA_URL", ""),
		)
		loader := ingest.NewLoader(client, city,
			util.GetEnvString("OPENAGENDA_MODE", ingest.ModeAgenda),
		)

		start := time.Now()
		events, err = loader.FetchEvents(ctx)
		if err != nil {
			logger.Fatal("Failed to fetch events", "err", err)
		}
		logger.Info("Fetched events", "count", len(events), "took", time.Since(start).Round(time.Second))

		if *saveSnapshot != "" {
			if err := ingest.SaveSnapshot(*saveSnapshot, city, events); err != nil {
				logger.Error("Failed to save corpus snapshot", "path", *saveSnapshot, "err", err)
			}
		}
	}

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

	docs := make([]event.Document, len(events))
	for i := range events {
		docs[i] = event.NewDocument(&events[i])
	}

	manager := index.NewManager(embedder, store, index.DefaultParams())
	if err := manager.Build(ctx, docs); err != nil {
		logger.Fatal("Failed to build index", "err", err)
	}
	if err := manager.Save(ctx, map[string]string{
		"city":    city,
		"trigger": "indexer",
	}); err != nil {
		logger.Fatal("Failed to save index snapshot", "err", err)
	}

	metrics := aiClient.GetMetrics()
	logger.Info("Index built and saved",
		"documents", manager.Size(),
		"dimension", manager.Manifest().Dimension,
		"input_tokens", metrics.InputTokens,
	)
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
			logger.Fatal("Could not create Ollama client", "err", err)
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
