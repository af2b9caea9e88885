// Command ingest watches a directory for entity-descriptor JSON files and
// loads them into the graph and vector stores through the Ingestion
// Coordinator. Each file holds either a single domain.EntityDescriptor or a
// JSON array of them; files are tracked by name and size in a state file so
// a restart doesn't reprocess what already landed.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/WessleyAI/knowcore/engine/domain"
	"github.com/WessleyAI/knowcore/engine/embedprovider"
	"github.com/WessleyAI/knowcore/engine/graphstore"
	"github.com/WessleyAI/knowcore/engine/ingest"
	"github.com/WessleyAI/knowcore/engine/vectorstore"
	"github.com/WessleyAI/knowcore/pkg/metrics"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func main() {
	dir := flag.String("dir", "./incoming", "directory to watch for entity-descriptor JSON files")
	stateFile := flag.String("state", "./ingest-state.json", "path to the processed-file state file")
	interval := flag.Duration("interval", 10*time.Second, "directory poll interval")
	metricsPort := flag.Int("metrics-port", 9091, "port to serve /metrics on")
	neo4jURL := flag.String("neo4j", "neo4j://localhost:7687", "neo4j bolt URL")
	neo4jUser := flag.String("neo4j-user", "neo4j", "neo4j username")
	neo4jPass := flag.String("neo4j-pass", "password", "neo4j password")
	qdrantAddr := flag.String("qdrant", "localhost:6334", "qdrant gRPC address")
	ollamaURL := flag.String("ollama", "http://localhost:11434", "ollama base URL")
	embedModel := flag.String("model", "nomic-embed-text", "ollama embedding model")
	embedDims := flag.Int("embed-dims", 768, "embedding vector dimensions")
	natsURL := flag.String("nats", "", "NATS URL to consume auto_sync.queue deliveries from (disabled if empty)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(*dir, *stateFile, *interval, *metricsPort, *neo4jURL, *neo4jUser, *neo4jPass, *qdrantAddr, *ollamaURL, *embedModel, *embedDims, *natsURL, logger); err != nil {
		logger.Error("ingest worker exited with error", "err", err)
		os.Exit(1)
	}
}

func run(dir, stateFile string, interval time.Duration, metricsPort int, neo4jURL, neo4jUser, neo4jPass, qdrantAddr, ollamaURL, embedModel string, embedDims int, natsURL string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	neo4jDriver, err := neo4j.NewDriverWithContext(neo4jURL, neo4j.BasicAuth(neo4jUser, neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer neo4jDriver.Close(ctx)
	graphStore := graphstore.NewNeo4jProvider(neo4jDriver)

	vectorStore, err := vectorstore.NewQdrantProvider(qdrantAddr)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	embedder := embedprovider.NewOllamaProvider(ollamaURL, embedModel, embedDims, 8192)

	reg := metrics.New()
	mFilesProcessed := reg.Counter("ingest_files_processed_total", "entity-descriptor files processed")
	mFilesFailed := reg.Counter("ingest_files_failed_total", "entity-descriptor files that failed to decode")
	mEntitiesSucceeded := reg.Counter("ingest_entities_succeeded_total", "entities fully ingested into both stores")
	mEntitiesPartial := reg.Counter("ingest_entities_partial_total", "entities ingested into only one store")
	mEntitiesFailed := reg.Counter("ingest_entities_failed_total", "entities that failed ingestion entirely")
	reg.ServeAsync(metricsPort)

	coord := ingest.New(graphStore, vectorStore, embedder, logger, reg)

	// auto_sync.queue (spec §6): this worker doubles as the consumer side
	// of ingest.Dispatch's cfg.Queue switch when -nats is set.
	if natsURL != "" {
		nc, err := nats.Connect(natsURL)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()

		sub, err := coord.StartAutoSyncConsumer(nc, ingest.DefaultAutoSyncConfig())
		if err != nil {
			return fmt.Errorf("start auto_sync consumer: %w", err)
		}
		defer sub.Unsubscribe()
		logger.Info("auto_sync consumer subscribed", "subject", ingest.AutoSyncSubject)
	}

	state, err := loadState(stateFile)
	if err != nil {
		logger.Warn("could not load state file, starting fresh", "err", err)
		state = map[string]bool{}
	}

	logger.Info("ingest worker starting", "dir", dir, "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	scan := func() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			logger.Error("read dir failed", "dir", dir, "err", err)
			return
		}

		dirty := false
		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
				continue
			}

			info, err := entry.Info()
			if err != nil {
				continue
			}
			key := fmt.Sprintf("%s:%d", entry.Name(), info.Size())
			if state[key] {
				continue
			}

			entities, err := loadEntities(filepath.Join(dir, entry.Name()))
			if err != nil {
				logger.Error("decode entity file failed", "file", entry.Name(), "err", err)
				mFilesFailed.Inc()
				continue
			}

			summary := coord.IngestBatch(ctx, entities)
			mEntitiesSucceeded.Add(int64(summary.Succeeded))
			mEntitiesPartial.Add(int64(summary.PartiallySucceeded))
			mEntitiesFailed.Add(int64(summary.Failed))
			mFilesProcessed.Inc()
			logger.Info("file ingested", "file", entry.Name(), "total", summary.Total, "succeeded", summary.Succeeded, "partial", summary.PartiallySucceeded, "failed", summary.Failed)

			state[key] = true
			dirty = true
		}

		if dirty {
			if err := saveState(stateFile, state); err != nil {
				logger.Error("save state failed", "err", err)
			}
		}
	}

	scan()
	for {
		select {
		case <-ticker.C:
			scan()
		case <-ctx.Done():
			logger.Info("shutdown signal received")
			return nil
		}
	}
}

// loadEntities decodes either a single entity descriptor or a JSON array of
// them from the given file.
func loadEntities(path string) ([]domain.EntityDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var batch []domain.EntityDescriptor
	if err := json.Unmarshal(data, &batch); err == nil {
		return batch, nil
	}

	var single domain.EntityDescriptor
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("not a valid entity descriptor or array of them: %w", err)
	}
	return []domain.EntityDescriptor{single}, nil
}

func loadState(path string) (map[string]bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]bool{}, nil
		}
		return nil, err
	}
	var state map[string]bool
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return state, nil
}

func saveState(path string, state map[string]bool) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
