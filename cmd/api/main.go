// Package main implements the DocMesh API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/DocMesh/docmesh-mvp/engine/docs"
	"github.com/DocMesh/docmesh-mvp/engine/docstore"
	"github.com/DocMesh/docmesh-mvp/engine/extract"
	"github.com/DocMesh/docmesh-mvp/engine/rag"
	"github.com/DocMesh/docmesh-mvp/engine/search"
	"github.com/DocMesh/docmesh-mvp/engine/semantic"
	"github.com/DocMesh/docmesh-mvp/engine/theme"
	"github.com/DocMesh/docmesh-mvp/pkg/metrics"
	"github.com/DocMesh/docmesh-mvp/pkg/mid"
	"github.com/DocMesh/docmesh-mvp/pkg/ocr"
	"github.com/DocMesh/docmesh-mvp/pkg/ollama"
)

// Config holds all environment-based configuration.
type Config struct {
	Port       string `env:"PORT" envDefault:"8080"`
	DataDir    string `env:"DATA_DIR" envDefault:"./data"`
	UploadDir  string `env:"UPLOAD_DIR" envDefault:"./data/uploads"`
	CORSOrigin string `env:"CORS_ORIGIN" envDefault:"*"`

	// qdrant, chromem, or memory.
	IndexBackend     string `env:"INDEX_BACKEND" envDefault:"chromem"`
	QdrantURL        string `env:"QDRANT_URL" envDefault:"localhost:6334"`
	Collection       string `env:"COLLECTION" envDefault:"docmesh"`
	EmbeddingDims    int    `env:"EMBEDDING_DIMS" envDefault:"768"`
	ChromemPath      string `env:"CHROMEM_PATH" envDefault:"./data/chromem"`

	OllamaURL      string  `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	EmbedModel     string  `env:"EMBED_MODEL" envDefault:"nomic-embed-text"`
	GenerateModel  string  `env:"GENERATE_MODEL" envDefault:"llama3"`
	OllamaRPS      float64 `env:"OLLAMA_RPS" envDefault:"10"`
	SummaryMinLen  int     `env:"SUMMARY_MIN_WORDS" envDefault:"30"`
	SummaryMaxLen  int     `env:"SUMMARY_MAX_WORDS" envDefault:"130"`

	OCRURL string `env:"OCR_URL"`

	// Empty disables async uploads.
	NATSURL string `env:"NATS_URL"`
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
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- ML collaborators ---
	ollamaClient := ollama.NewClient(ollama.Opts{BaseURL: cfg.OllamaURL, RequestsPerSecond: cfg.OllamaRPS, Burst: 5})
	embedder := ollama.NewEmbedClient(ollamaClient, cfg.EmbedModel)
	generator := ollama.NewGenerateClient(ollamaClient, cfg.GenerateModel)
	summarizer := ollama.NewSummarizeClient(ollamaClient, cfg.GenerateModel, cfg.SummaryMinLen, cfg.SummaryMaxLen)

	// --- Vector index ---
	index, closeIndex, err := buildIndex(ctx, cfg, embedder)
	if err != nil {
		return err
	}
	defer closeIndex()

	// --- Document store ---
	store, err := docstore.NewSQLite(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening docstore: %w", err)
	}
	defer store.Close()

	// --- Extraction ---
	var pageOCR extract.OCR
	if cfg.OCRURL != "" {
		pageOCR = ocr.New(cfg.OCRURL)
	}
	extractor := extract.New(pageOCR, nil, logger)

	// --- Services ---
	docsSvc := docs.New(store, index, extractor, nil, cfg.UploadDir, logger)
	searchSvc := search.New(index, logger)
	themeSvc := theme.New(summarizer, logger)
	ragSvc := rag.New(searchSvc, generator, logger)

	// --- Optional async ingestion ---
	var nc *nats.Conn
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()
	}

	reg := metrics.New()

	// --- HTTP server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newHandler(cfg, docsSvc, searchSvc, themeSvc, ragSvc, nc, reg, logger),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port, "index_backend", cfg.IndexBackend)
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

// buildIndex selects the vector index backend from configuration.
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

func newHandler(cfg Config, docsSvc *docs.Service, searchSvc *search.Service, themeSvc *theme.Service, ragSvc *rag.Service, nc *nats.Conn, reg *metrics.Registry, logger *slog.Logger) http.Handler {
	api := &apiServer{
		docs:    docsSvc,
		search:  searchSvc,
		themes:  themeSvc,
		rag:     ragSvc,
		nats:    nc,
		logger:  logger,
		metrics: reg,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", api.handleHealth)
	mux.HandleFunc("POST /api/documents", api.handleUpload)
	mux.HandleFunc("GET /api/documents", api.handleList)
	mux.HandleFunc("DELETE /api/documents/{id}", api.handleDelete)
	mux.HandleFunc("GET /api/search", api.handleSearch)
	mux.HandleFunc("GET /api/themes", api.handleThemes)
	mux.HandleFunc("POST /api/chat", api.handleChat)
	mux.Handle("GET /metrics", reg.Handler())

	return mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("docmesh-api"),
	)
}
