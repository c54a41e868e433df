package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finrag/internal/api"
	"finrag/internal/config"
	"finrag/internal/logging"
	"finrag/internal/providers"
	"finrag/internal/queryparser"
	"finrag/internal/rag"
	"finrag/internal/registry"
	"finrag/internal/retrieval"
	"finrag/internal/storage"
	"finrag/internal/telemetry"
	"finrag/internal/vector"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mp, err := telemetry.InstallMeterProvider(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal().Err(err).Msg("install meter provider")
	}
	defer func() { _ = mp.Shutdown(context.Background()) }()

	reg, err := registry.Load(cfg.ModelRegistryPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load model registry")
	}
	manager, err := providers.NewManager(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build providers")
	}
	chat := providers.NewChatClient(providers.ChatConfigFrom(cfg), reg, providers.NewMetrics("finrag/api"))

	var db *storage.DB
	if cfg.VectorBackend == "pgvector" || cfg.AuditCalls {
		db, err = storage.NewDB(ctx, cfg.PostgresURL)
		if err != nil {
			log.Fatal().Err(err).Msg("connect postgres")
		}
		defer db.Close()
		if err := db.ApplySchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("apply schema")
		}
	}

	index, err := openIndex(cfg, db, manager)
	if err != nil {
		log.Fatal().Err(err).Msg("open vector index")
	}

	deps := rag.Deps{
		Retriever: retrieval.NewRetriever(index, time.Duration(cfg.RetrievalTimeoutSecs)*time.Second),
		Chat:      chat,
		Default:   manager,
		Parser:    queryparser.New(manager),
		Models:    reg,
	}
	if cfg.AuditCalls {
		deps.Recorder = storage.NewProviderCallRepo(db)
	}

	h := api.NewServer(cfg, api.Deps{
		RAG:    rag.NewService(deps),
		Parser: deps.Parser,
		Models: reg,
	})
	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("addr", cfg.APIAddr).
		Str("vector_backend", cfg.VectorBackend).
		Str("llm_providers", cfg.LLMProviders).
		Str("embed_providers", cfg.EmbedProviders).
		Msg("finrag api listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("serve")
	}
}

func openIndex(cfg config.Config, db *storage.DB, embed vector.QueryEmbedder) (vector.Index, error) {
	switch cfg.VectorBackend {
	case "pgvector":
		return vector.NewSearcher(db.Pool, embed), nil
	case "chromem":
		idx, err := vector.OpenChromem(cfg.ChromemPath, cfg.ChromemCollection, embed)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.ChromemPath).Int("chunks", idx.Count()).Msg("chromem index loaded")
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q (want pgvector or chromem)", cfg.VectorBackend)
	}
}
