// Package bootstrap wires every adapter the orchestrator depends on and is
// shared by cmd/api and cmd/worker so both processes assemble the exact same
// core.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kk7453603/ragcore/internal/adapters/http/openapi"
	"github.com/kk7453603/ragcore/internal/config"
	"github.com/kk7453603/ragcore/internal/core/orchestrator"
	"github.com/kk7453603/ragcore/internal/core/ports"
	"github.com/kk7453603/ragcore/internal/infrastructure/llm/ollama"
	"github.com/kk7453603/ragcore/internal/infrastructure/llm/openaicompat"
	natsq "github.com/kk7453603/ragcore/internal/infrastructure/queue/nats"
	"github.com/kk7453603/ragcore/internal/infrastructure/resilience"
	compositestore "github.com/kk7453603/ragcore/internal/infrastructure/store"
	"github.com/kk7453603/ragcore/internal/infrastructure/store/postgres"
	"github.com/kk7453603/ragcore/internal/infrastructure/vector/qdrant"
	"github.com/kk7453603/ragcore/internal/infrastructure/web"
	"github.com/kk7453603/ragcore/internal/observability/logging"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Orchestrator *orchestrator.Orchestrator
	Queue        *natsq.WorkerQueue
	Checkpoints  ports.CheckpointStore

	closeFn func()
}

func New(ctx context.Context, service string, cfg config.Config) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	// Surface a broken OpenAPI document at startup, not on first request.
	if _, err := openapi.GetSwagger(); err != nil {
		return nil, fmt.Errorf("openapi document: %w", err)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN, cfg.StoreConnPoolMax)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	lexical := postgres.NewLexicalStore(db)
	if err := lexical.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	dense := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	if err := dense.EnsureCollection(ctx, cfg.QdrantVectorSizeKorean, cfg.QdrantVectorSizeEnglish); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure qdrant collection: %w", err)
	}

	docStore := compositestore.NewComposite(dense, lexical)

	var model ports.Model
	var embedder ports.Embedder
	switch cfg.ModelBackend {
	case "openai_compat":
		client := openaicompat.New(cfg.OpenAICompatBaseURL, cfg.OpenAICompatAPIKey, cfg.OpenAICompatModelID, cfg.OpenAICompatEmbedModel)
		model, embedder = client, client
	default:
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel)
		model, embedder = client, client
	}

	var webTool ports.WebTool
	if cfg.WebFallbackEnabled {
		webTool = web.New(cfg.WebSearchURL, cfg.WebSearchAPIKey, cfg.WebFallbackDailyQuota, cfg.WebFallbackCacheTTL)
	}

	conn, err := natsq.Connect(cfg.NATSURL, natsq.Options{})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	queue := natsq.NewWorkerQueue(conn, cfg.NATSWorkerSubject, resilience.NewExecutor(resilience.DefaultConfig()))
	events := natsq.NewEventPublisher(conn, cfg.NATSEventsSubject)

	var checkpoints ports.CheckpointStore
	if cfg.CheckpointsEnabled {
		checkpoints, err = natsq.NewCheckpointStore(conn, cfg.NATSCheckpointKV)
		if err != nil {
			conn.Close()
			_ = db.Close()
			return nil, fmt.Errorf("init checkpoint store: %w", err)
		}
	}

	orch := orchestrator.New(docStore, model, embedder, webTool, orchestratorConfig(cfg))
	orch.Checkpoints = checkpoints
	orch.Events = events

	return &App{
		Config: cfg,
		Logger: logger,

		Orchestrator: orch,
		Queue:        queue,
		Checkpoints:  checkpoints,

		closeFn: func() {
			conn.Close()
			_ = db.Close()
		},
	}, nil
}

func orchestratorConfig(cfg config.Config) orchestrator.Config {
	return orchestrator.Config{
		MaxSubtasks:            cfg.MaxSubtasks,
		MaxRetries:             cfg.MaxRetries,
		TopK:                   cfg.TopK,
		RRFK:                   cfg.RRFK,
		WebFallbackThreshold:   cfg.WebFallbackThreshold,
		ThresholdHallucination: cfg.ThresholdHallucination,
		ThresholdGrade:         cfg.ThresholdGrade,
		RoutingEnabled:         cfg.RoutingEnabled,
		WebEnabled:             cfg.WebFallbackEnabled,
		TurnDeadline:           cfg.TurnDeadline,
		WorkerPoolSize:         cfg.WorkerPoolSize,
		MetadataCacheTTL:       cfg.MetadataCacheTTL,
		FilterEntityAggressive: cfg.FilterEntityAggressive,
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
