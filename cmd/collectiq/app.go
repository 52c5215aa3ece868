package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/collectiq/collectiq/internal/aggregate"
	"github.com/collectiq/collectiq/internal/authenticity"
	"github.com/collectiq/collectiq/internal/config"
	"github.com/collectiq/collectiq/internal/events"
	"github.com/collectiq/collectiq/internal/extractor"
	"github.com/collectiq/collectiq/internal/llm"
	"github.com/collectiq/collectiq/internal/ocr"
	"github.com/collectiq/collectiq/internal/ops"
	"github.com/collectiq/collectiq/internal/persistence"
	"github.com/collectiq/collectiq/internal/persistence/fsstore"
	"github.com/collectiq/collectiq/internal/persistence/postgres"
	"github.com/collectiq/collectiq/internal/persistence/redisstore"
	"github.com/collectiq/collectiq/internal/pipeline"
	"github.com/collectiq/collectiq/internal/pricing"
	"github.com/collectiq/collectiq/internal/vision"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg *config.Config

	db    *sqlx.DB
	redis *redis.Client
	model llm.Client

	repo    persistence.CardRepo
	objects persistence.ObjectStore
	bus     *events.RedisBus

	pricer       *pricing.Aggregator
	orchestrator *pipeline.Orchestrator
	kpi          *ops.KPITracker
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Storage.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unreachable at startup, event bus and dedup degraded")
	}

	objects, err := fsstore.New(cfg.Storage.ObjectStoreDir)
	if err != nil {
		return nil, err
	}

	model, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{
		APIKey: cfg.Model.APIKey,
		Model:  cfg.Model.Name,
		RPS:    cfg.Model.RPS,
		Burst:  cfg.Model.Burst,
	})
	if err != nil {
		return nil, err
	}

	repo := postgres.NewCardsRepo(db, 10*time.Second)
	bus := events.NewRedisBus(rdb, cfg.Events.Channel)
	idem := redisstore.NewIdempotencyStore(rdb)

	visionClient := vision.NewSidecarClient(cfg.Vision.SidecarURL, time.Duration(cfg.Vision.TimeoutMS)*time.Millisecond)
	ext := extractor.New(objects, visionClient)
	reasoner := ocr.New(model, cfg.OCR.Model)

	summarizer := pricing.NewSummarizer(model)
	pricer := pricing.NewAggregator(cfg.Pricing, summarizer)

	kpi := ops.NewKPITracker(5 * time.Minute)
	refs := authenticity.NewReferenceStore(objects, rdb, time.Duration(cfg.Storage.ReferenceTTLS)*time.Second, kpi)
	scorer := authenticity.NewScorer(model, refs, objects, cfg.Authenticity)

	agg := aggregate.New(repo, bus)
	deadletter := pipeline.NewDeadLetterSink(objects)
	orchestrator := pipeline.New(ext, reasoner, pricer, scorer, agg, repo, objects, idem, deadletter, cfg.Pipeline)

	return &app{
		cfg:          cfg,
		db:           db,
		redis:        rdb,
		model:        model,
		repo:         repo,
		objects:      objects,
		bus:          bus,
		pricer:       pricer,
		orchestrator: orchestrator,
		kpi:          kpi,
	}, nil
}

func (a *app) Close() {
	if err := a.model.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close model client")
	}
	if err := a.redis.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close redis client")
	}
	if err := a.db.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close postgres pool")
	}
}
