// Package server exposes the processing pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/joseph-ayodele/receipt-analyzer/internal/history"
	"github.com/joseph-ayodele/receipt-analyzer/internal/index"
	"github.com/joseph-ayodele/receipt-analyzer/internal/pipeline"
)

// Pipeline is the processing surface the handlers call.
type Pipeline interface {
	Process(ctx context.Context, imagePath string) pipeline.Result
	Analyze(ctx context.Context, imagePath string) pipeline.Result
}

// Index is the retrieval surface the handlers call.
type Index interface {
	QuerySimilar(ctx context.Context, query string, limit int) []index.Match
	GetByID(ctx context.Context, receiptID string) *index.Match
}

// Historian produces vendor summaries.
type Historian interface {
	History(ctx context.Context, vendor string) history.Summary
}

// Exporter renders vendor history workbooks.
type Exporter interface {
	ExportVendorHistoryXLSX(ctx context.Context, vendor string) ([]byte, error)
}

type Server struct {
	pipeline  Pipeline
	index     Index
	historian Historian
	exporter  Exporter
	logger    *slog.Logger
}

func New(p Pipeline, ix Index, h Historian, e Exporter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{pipeline: p, index: ix, historian: h, exporter: e, logger: logger}
}

// Router builds the chi mux for the server.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/receipts/process", s.handleProcess)
		r.Post("/receipts/analyze", s.handleAnalyze)
		r.Get("/receipts/similar", s.handleSimilar)
		r.Get("/receipts/{receiptID}", s.handleGetReceipt)
		r.Get("/vendors/{vendor}/history", s.handleVendorHistory)
		r.Get("/vendors/{vendor}/history/export", s.handleVendorExport)
	})
	return r
}

type processRequest struct {
	ImagePath string `json:"image_path"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeProcessRequest(w, r)
	if !ok {
		return
	}
	result := s.pipeline.Process(r.Context(), req.ImagePath)
	writeJSON(w, statusFor(result), result)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeProcessRequest(w, r)
	if !ok {
		return
	}
	result := s.pipeline.Analyze(r.Context(), req.ImagePath)
	writeJSON(w, statusFor(result), result)
}

func (s *Server) decodeProcessRequest(w http.ResponseWriter, r *http.Request) (processRequest, bool) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if req.ImagePath == "" {
		writeError(w, http.StatusBadRequest, "image_path is required")
		return req, false
	}
	return req, true
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	matches := s.index.QuerySimilar(r.Context(), query, limit)
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	receiptID := chi.URLParam(r, "receiptID")
	match := s.index.GetByID(r.Context(), receiptID)
	if match == nil {
		writeError(w, http.StatusNotFound, "receipt not found")
		return
	}
	writeJSON(w, http.StatusOK, match)
}

func (s *Server) handleVendorHistory(w http.ResponseWriter, r *http.Request) {
	vendor := chi.URLParam(r, "vendor")
	summary := s.historian.History(r.Context(), vendor)
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleVendorExport(w http.ResponseWriter, r *http.Request) {
	vendor := chi.URLParam(r, "vendor")
	data, err := s.exporter.ExportVendorHistoryXLSX(r.Context(), vendor)
	if err != nil {
		s.logger.Error("server.export_failed", "vendor", vendor, "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="vendor-history.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func statusFor(result pipeline.Result) int {
	if result.Success {
		return http.StatusOK
	}
	return http.StatusUnprocessableEntity
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
