// Package main implements the DocMesh ingest worker. It consumes upload
// jobs from NATS and runs them through the document lifecycle service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/DocMesh/docmesh-mvp/engine/docs"
	"github.com/DocMesh/docmesh-mvp/engine/docstore"
	"github.com/DocMesh/docmesh-mvp/engine/extract"
	"github.com/DocMesh/docmesh-mvp/engine/ingest"
	"github.com/DocMesh/docmesh-mvp/engine/semantic"
	"github.com/DocMesh/docmesh-mvp/pkg/metrics"
	"github.com/DocMesh/docmesh-mvp/pkg/ocr"
	"github.com/DocMesh/docmesh-mvp/pkg/ollama"
)

// Config holds all environment-based configuration for the worker.
type Config struct {
	NATSURL     string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	MetricsPort int    `env:"METRICS_PORT" envDefault:"9091"`

	DataDir   string `env:"DATA_DIR" envDefault:"./data"`
	UploadDir string `env:"UPLOAD_DIR" envDefault:"./data/uploads"`

	IndexBackend  string `env:"INDEX_BACKEND" envDefault:"chromem"`
	QdrantURL     string `env:"QDRANT_URL" envDefault:"localhost:6334"`
	Collection    string `env:"COLLECTION" envDefault:"docmesh"`
	EmbeddingDims int    `env:"EMBEDDING_DIMS" envDefault:"768"`
	ChromemPath   string `env:"CHROMEM_PATH" envDefault:"./data/chromem"`

	OllamaURL  string  `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	EmbedModel string  `env:"EMBED_MODEL" envDefault:"nomic-embed-text"`
	OllamaRPS  float64 `env:"OLLAMA_RPS" envDefault:"10"`

	OCRURL string `env:"OCR_URL"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		logger.Error("config parse failed", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("worker exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ollamaClient := ollama.NewClient(ollama.Opts{BaseURL: cfg.OllamaURL, RequestsPerSecond: cfg.OllamaRPS, Burst: 5})
	embedder := ollama.NewEmbedClient(ollamaClient, cfg.EmbedModel)

	index, closeIndex, err := buildIndex(ctx, cfg, embedder)
	if err != nil {
		return err
	}
	defer closeIndex()

	store, err := docstore.NewSQLite(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening docstore: %w", err)
	}
	defer store.Close()

	var pageOCR extract.OCR
	if cfg.OCRURL != "" {
		pageOCR = ocr.New(cfg.OCRURL)
	}
	extractor := extract.New(pageOCR, nil, logger)

	docsSvc := docs.New(store, index, extractor, nil, cfg.UploadDir, logger)

	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()

	sub, err := ingest.StartConsumer(nc, docsSvc, logger)
	if err != nil {
		return fmt.Errorf("starting consumer: %w", err)
	}
	defer sub.Unsubscribe()

	reg := metrics.New()
	reg.ServeAsync(cfg.MetricsPort)

	logger.Info("ingest worker running", "subject", ingest.Subject, "index_backend", cfg.IndexBackend)
	<-ctx.Done()
	logger.Info("shutdown signal received")
	return nil
}

func buildIndex(ctx context.Context, cfg Config, embedder semantic.Embedder) (semantic.Index, func(), error) {
	switch cfg.IndexBackend {
	case "qdrant":
		idx, err := semantic.NewQdrant(cfg.QdrantURL, cfg.Collection, embedder)
		if err != nil {
			return nil, nil, fmt.Errorf("qdrant connect: %w", err)
		}
		if err := idx.EnsureCollection(ctx, cfg.EmbeddingDims); err != nil {
			idx.Close()
			return nil, nil, fmt.Errorf("qdrant collection: %w", err)
		}
		return idx, func() { idx.Close() }, nil
	case "chromem":
		idx, err := semantic.NewChromem(cfg.ChromemPath, cfg.Collection, embedder)
		if err != nil {
			return nil, nil, fmt.Errorf("chromem open: %w", err)
		}
		return idx, func() {}, nil
	case "memory":
		return semantic.NewMemory(embedder), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown index backend %q", cfg.IndexBackend)
	}
}
