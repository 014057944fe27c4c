package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/DocMesh/docmesh-mvp/engine/docs"
	"github.com/DocMesh/docmesh-mvp/engine/domain"
	"github.com/DocMesh/docmesh-mvp/engine/ingest"
	"github.com/DocMesh/docmesh-mvp/engine/rag"
	"github.com/DocMesh/docmesh-mvp/engine/search"
	"github.com/DocMesh/docmesh-mvp/engine/theme"
	"github.com/DocMesh/docmesh-mvp/pkg/fn"
	"github.com/DocMesh/docmesh-mvp/pkg/metrics"
)

// maxUploadBytes caps multipart uploads at 50 MiB.
const maxUploadBytes = 50 << 20

type apiServer struct {
	docs    *docs.Service
	search  *search.Service
	themes  *theme.Service
	rag     *rag.Service
	nats    *nats.Conn
	logger  *slog.Logger
	metrics *metrics.Registry
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUpload accepts a multipart PDF upload. With ?async=true and a NATS
// connection the job is queued instead of processed inline.
func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading upload failed")
		return
	}

	if r.URL.Query().Get("async") == "true" && s.nats != nil {
		if err := ingest.Enqueue(r.Context(), s.nats, ingest.Job{Filename: header.Filename, Data: data}); err != nil {
			s.logger.Error("enqueue failed", "err", err)
			writeError(w, http.StatusInternalServerError, "enqueue failed")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "filename": header.Filename})
		return
	}

	result, err := s.docs.Upload(r.Context(), header.Filename, data)
	if err != nil {
		s.metrics.Counter(metrics.WithLabels("docmesh_uploads_total", "status", "error"), "Document uploads").Inc()
		s.writeDomainError(w, err)
		return
	}

	s.metrics.Counter(metrics.WithLabels("docmesh_uploads_total", "status", "ok"), "Document uploads").Inc()
	s.metrics.Histogram("docmesh_upload_duration_seconds", "Upload latency", nil).Since(start)
	writeJSON(w, http.StatusCreated, result)
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := s.docs.List(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	type docView struct {
		ID         int64  `json:"id"`
		Filename   string `json:"filename"`
		ChunkCount int    `json:"chunk_count"`
		UploadedAt string `json:"uploaded_at"`
	}
	views := fn.Map(list, func(d domain.Document) docView {
		return docView{
			ID:         d.ID,
			Filename:   d.Filename,
			ChunkCount: d.ChunkCount,
			UploadedAt: d.UploadedAt.Format(time.RFC3339),
		}
	})
	writeJSON(w, http.StatusOK, map[string]any{"documents": views})
}

func (s *apiServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	result, err := s.docs.Delete(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.metrics.Counter("docmesh_deletes_total", "Document deletes").Inc()
	writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	topK := 0
	if v := r.URL.Query().Get("top_k"); v != "" {
		topK, _ = strconv.Atoi(v)
	}

	start := time.Now()
	results, err := s.search.Search(r.Context(), query, topK)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.metrics.Histogram("docmesh_search_duration_seconds", "Search latency", nil).Since(start)

	if results == nil {
		results = []search.Result{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": query, "results": results})
}

func (s *apiServer) handleThemes(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	topK := 0
	if v := r.URL.Query().Get("top_k"); v != "" {
		topK, _ = strconv.Atoi(v)
	}

	chunks, err := s.search.Search(r.Context(), query, topK)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	themes := s.themes.Synthesize(r.Context(), query, chunks)
	if themes == nil {
		themes = []domain.Theme{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": query, "themes": themes})
}

// ChatRequest is the JSON body for POST /api/chat.
type ChatRequest struct {
	Question string   `json:"question"`
	History  []string `json:"history,omitempty"`
}

func (s *apiServer) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	answer, err := s.rag.Chat(r.Context(), req.Question, req.History)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if answer.Sources == nil {
		answer.Sources = []string{}
	}
	writeJSON(w, http.StatusOK, answer)
}

// writeDomainError maps lifecycle errors onto HTTP status codes.
func (s *apiServer) writeDomainError(w http.ResponseWriter, err error) {
	var exErr *domain.ExtractionError
	switch {
	case errors.Is(err, domain.ErrDuplicateDocument):
		writeError(w, http.StatusConflict, "document already uploaded")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "document not found")
	case errors.Is(err, domain.ErrEmptyFilename),
		errors.Is(err, domain.ErrInvalidFilename),
		errors.Is(err, domain.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &exErr):
		writeError(w, http.StatusUnprocessableEntity, "could not extract text from file")
	default:
		s.logger.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
