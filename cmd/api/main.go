// Package main wires the question-answering core to an HTTP server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WessleyAI/knowcore/engine/domain"
	"github.com/WessleyAI/knowcore/engine/embedprovider"
	"github.com/WessleyAI/knowcore/engine/facade"
	"github.com/WessleyAI/knowcore/engine/graphstore"
	"github.com/WessleyAI/knowcore/engine/ingest"
	"github.com/WessleyAI/knowcore/engine/llmprovider"
	"github.com/WessleyAI/knowcore/engine/querygen"
	"github.com/WessleyAI/knowcore/engine/vectorstore"
	"github.com/WessleyAI/knowcore/pkg/metrics"
	"github.com/WessleyAI/knowcore/pkg/mid"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Config holds all environment-based configuration.
type Config struct {
	Port          string
	Neo4jURL      string
	Neo4jUser     string
	Neo4jPass     string
	QdrantAddr    string
	OllamaURL     string
	EmbedModel    string
	EmbedDims     int
	AnthropicKey  string
	CORSOrigin    string
	NATSURL       string
}

func loadConfig() Config {
	return Config{
		Port:         envOr("PORT", "8080"),
		Neo4jURL:     envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:    envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:    envOr("NEO4J_PASS", "password"),
		QdrantAddr:   envOr("QDRANT_ADDR", "localhost:6334"),
		OllamaURL:    envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel:   envOr("EMBED_MODEL", "nomic-embed-text"),
		EmbedDims:    768,
		AnthropicKey: envOr("ANTHROPIC_API_KEY", ""),
		CORSOrigin:   envOr("CORS_ORIGIN", "*"),
		NATSURL:      envOr("NATS_URL", ""),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	neo4jDriver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer neo4jDriver.Close(ctx)
	graphStore := graphstore.NewNeo4jProvider(neo4jDriver)

	vectorStore, err := vectorstore.NewQdrantProvider(cfg.QdrantAddr)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	embedder := embedprovider.NewOllamaProvider(cfg.OllamaURL, cfg.EmbedModel, cfg.EmbedDims, 8192)
	llm := llmprovider.NewAnthropicProvider(cfg.AnthropicKey, "")

	reg := metrics.New()

	core := facade.New(graphStore, vectorStore, embedder, llm, loadCatalog(), facade.DefaultConfig(), logger, reg)

	// auto_sync.queue (spec §6): when NATS_URL is configured, /api/ingest
	// dispatches through the queue instead of writing inline, per
	// engine/ingest.Dispatch's cfg.Queue switch.
	var nc *nats.Conn
	autoSyncCfg := ingest.DefaultAutoSyncConfig()
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()
		autoSyncCfg.Queue = true
		logger.Info("auto_sync dispatching through NATS", "subject", ingest.AutoSyncSubject)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/ask", handleAsk(core, logger))
	mux.HandleFunc("POST /api/ingest", handleIngest(core, nc, autoSyncCfg, logger))
	mux.Handle("GET /api/metrics", reg.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// loadCatalog returns the entity catalog used for detection at prompt
// time. It returns an empty catalog and reads no configuration, so no
// entity aliases or scope names are detected in questions.
func loadCatalog() querygen.EntityCatalog {
	return querygen.EntityCatalog{}
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// AskRequest is the JSON body for POST /api/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the JSON response for POST /api/ask.
type AskResponse struct {
	Answer     string   `json:"answer"`
	Query      string   `json:"query"`
	Confidence float64  `json:"confidence"`
	RowCount   int      `json:"row_count"`
	Warnings   []string `json:"warnings,omitempty"`
}

func handleAsk(core *facade.Core, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.Question == "" {
			http.Error(w, `{"error":"question is required"}`, http.StatusBadRequest)
			return
		}

		answer, err := core.Ask(r.Context(), req.Question)
		if err != nil {
			logger.Error("ask failed", "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(AskResponse{
			Answer:     answer.Text,
			Query:      answer.Cypher,
			Confidence: answer.Confidence,
			RowCount:   answer.RowCount,
			Warnings:   answer.Warnings,
		})
	}
}

// IngestRequest is the JSON body for POST /api/ingest. Exactly one of
// Entity or Entities should be set.
type IngestRequest struct {
	Entity   *domain.EntityDescriptor  `json:"entity,omitempty"`
	Entities []domain.EntityDescriptor `json:"entities,omitempty"`
}

func handleIngest(core *facade.Core, nc *nats.Conn, autoSyncCfg ingest.AutoSyncConfig, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req IngestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")

		// Queued dispatch bypasses the inline coordinator entirely, so the
		// response can only confirm the entity was accepted for delivery.
		if autoSyncCfg.Queue {
			entities := req.Entities
			if req.Entity != nil {
				entities = append(entities, *req.Entity)
			}
			if len(entities) == 0 {
				http.Error(w, `{"error":"entity or entities is required"}`, http.StatusBadRequest)
				return
			}
			for _, e := range entities {
				if err := core.Coordinator().Dispatch(r.Context(), nc, ingest.OpCreate, e, autoSyncCfg); err != nil {
					logger.Error("auto_sync dispatch failed", "entity_id", e.IDString(), "err", err)
					json.NewEncoder(w).Encode(map[string]any{"error": err.Error()})
					return
				}
			}
			json.NewEncoder(w).Encode(map[string]any{"queued": len(entities)})
			return
		}

		if req.Entity != nil {
			status, err := core.Ingest(r.Context(), *req.Entity)
			if err != nil {
				logger.Error("ingest failed", "err", err)
				json.NewEncoder(w).Encode(map[string]any{"error": err.Error()})
				return
			}
			json.NewEncoder(w).Encode(status)
			return
		}

		if len(req.Entities) > 0 {
			summary := core.IngestBatch(r.Context(), req.Entities)
			json.NewEncoder(w).Encode(summary)
			return
		}

		http.Error(w, `{"error":"entity or entities is required"}`, http.StatusBadRequest)
	}
}
