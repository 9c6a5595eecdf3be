// Package http provides the HTTP server infrastructure.
// It is the outermost layer: requests are decoded here and handed to the usecases.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/0xcro3dile/chatrag-go/internal/domain/entities"
	"github.com/0xcro3dile/chatrag-go/internal/domain/ports"
	"github.com/0xcro3dile/chatrag-go/internal/domain/usecases"
)

// DefaultK is used when a query request omits k.
const DefaultK = 3

// maxBodyBytes caps request bodies; requests carry queries and filters, not corpora.
const maxBodyBytes = 1 << 20

// Server is the HTTP server for the chat RAG API.
type Server struct {
	queryUseCase  *usecases.QueryUseCase
	ingestUseCase *usecases.IngestUseCase
	evalUseCase   *usecases.EvaluateUseCase
	loader        ports.CorpusLoader
	index         ports.VectorIndex
	source        string
	addr          string

	ingestMu sync.Mutex
}

// NewServer creates a new HTTP server. source is ingested when a request names none.
func NewServer(
	queryUC *usecases.QueryUseCase,
	ingestUC *usecases.IngestUseCase,
	evalUC *usecases.EvaluateUseCase,
	loader ports.CorpusLoader,
	index ports.VectorIndex,
	source string,
	addr string,
) *Server {
	return &Server{
		queryUseCase:  queryUC,
		ingestUseCase: ingestUC,
		evalUseCase:   evalUC,
		loader:        loader,
		index:         index,
		source:        source,
		addr:          addr,
	}
}

// Handler returns the routed API with logging and CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ingest", s.handleIngest)
	mux.HandleFunc("/api/query", s.handleQuery)
	mux.HandleFunc("/api/evaluate", s.handleEvaluate)
	mux.HandleFunc("/api/health", s.handleHealth)
	return corsMiddleware(loggingMiddleware(mux))
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 300 * time.Second, // generation can be slow
	}

	log.Printf("[INFO] ChatRAG server starting on %s", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

type ingestRequest struct {
	Source string `json:"source"`
}

type queryRequest struct {
	Text    string               `json:"text"`
	K       int                  `json:"k"`
	Filters *entities.FilterSpec `json:"filters"`
}

type evaluateRequest struct {
	Query    string `json:"query"`
	Expected string `json:"expected"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Indexed int    `json:"indexed"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleIngest loads and indexes a corpus. Only one ingestion runs at a time.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ingestRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, err)
		return
	}
	source, err := s.resolveSource(req.Source)
	if err != nil {
		writeError(w, err)
		return
	}

	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	stats, err := s.ingestUseCase.IngestSource(r.Context(), s.loader, source)
	if err != nil {
		log.Printf("[ERROR] Ingest of %s failed: %v", source, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// resolveSource limits ingestion to the configured source or a file beside it.
// Other paths and URLs are rejected so callers cannot make the server read them.
func (s *Server) resolveSource(requested string) (string, error) {
	if s.source == "" {
		return "", fmt.Errorf("no source configured: %w", entities.ErrInvalidArgument)
	}
	if requested == "" || requested == s.source {
		return s.source, nil
	}
	if strings.Contains(requested, "://") || strings.Contains(s.source, "://") {
		return "", fmt.Errorf("source %q is not the configured corpus: %w", requested, entities.ErrInvalidArgument)
	}

	dir, err := filepath.Abs(filepath.Dir(s.source))
	if err != nil {
		return "", err
	}
	path, err := filepath.Abs(requested)
	if err != nil {
		return "", fmt.Errorf("source %q: %w", requested, entities.ErrInvalidArgument)
	}
	if filepath.Dir(path) != dir {
		return "", fmt.Errorf("source %q is outside %s: %w", requested, dir, entities.ErrInvalidArgument)
	}
	return path, nil
}

// handleQuery retrieves context and generates a response.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req queryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "text required"})
		return
	}
	if req.K == 0 {
		req.K = DefaultK
	}

	result, err := s.queryUseCase.Query(r.Context(), req.Text, req.K, req.Filters)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleEvaluate returns the ranked diagnostic report for a query.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req evaluateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query required"})
		return
	}

	report, err := s.evalUseCase.Evaluate(r.Context(), req.Query, req.Expected)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	n, err := s.index.Count(r.Context())
	if err != nil {
		log.Printf("[WARN] Health check could not count index: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Indexed: n})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &requestError{err: err}
	}
	return nil
}

// requestError marks a body that could not be decoded.
type requestError struct{ err error }

func (e *requestError) Error() string { return "invalid request body: " + e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

// statusFor maps domain error kinds onto HTTP status codes.
func statusFor(err error) int {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr), errors.Is(err, entities.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, entities.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entities.ErrFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, entities.ErrEmbedding),
		errors.Is(err, entities.ErrIndexQuery),
		errors.Is(err, entities.ErrIndexWrite):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[ERROR] Writing response: %v", err)
	}
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			return
		}
		next.ServeHTTP(w, r)
	})
}
