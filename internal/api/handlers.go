// Package api exposes the scraping pipeline and the product store over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dkovalenko/brain-scraper/internal/database"
	"github.com/dkovalenko/brain-scraper/internal/export"
	"github.com/dkovalenko/brain-scraper/internal/models"
	"github.com/dkovalenko/brain-scraper/internal/normalizer"
	"github.com/dkovalenko/brain-scraper/internal/pipeline"
	"github.com/dkovalenko/brain-scraper/internal/scrape"
)

type Handlers struct {
	pipeline *pipeline.Pipeline
	db       *database.DB
	logger   *slog.Logger
}

func NewHandlers(p *pipeline.Pipeline, db *database.DB, logger *slog.Logger) *Handlers {
	return &Handlers{
		pipeline: p,
		db:       db,
		logger:   logger.With("component", "api"),
	}
}

// Scrape runs the full pipeline for one request.
func (h *Handlers) Scrape(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.pipeline.Run(r.Context(), req)
	if err != nil {
		h.logger.Error("pipeline run failed", "strategy", req.Strategy, "error", err)
		h.respondError(w, statusForError(err), err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// GetProduct fetches a stored product by product code.
func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	product, err := h.db.GetByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("failed to get product", "product_code", code, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get product")
		return
	}

	h.respondJSON(w, http.StatusOK, product)
}

// ListProducts returns stored products, most recently updated first.
func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	products, err := h.db.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	if products == nil {
		products = []*models.PersistedProduct{}
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"products": products,
		"count":    len(products),
	})
}

// ExportCSV streams the stored products as a CSV download.
func (h *Handlers) ExportCSV(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 1000)

	products, err := h.db.List(r.Context(), limit, 0)
	if err != nil {
		h.logger.Error("failed to load products for export", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to export products")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="products.csv"`)
	if err := export.WriteCSV(w, products); err != nil {
		h.logger.Error("csv export failed", "error", err)
	}
}

// Health reports liveness plus database reachability.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := h.db.Pool().Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	h.respondJSON(w, code, map[string]string{"status": status})
}

// statusForError maps pipeline failures onto HTTP status codes. Upstream
// failures surface as gateway errors, bad input as client errors.
func statusForError(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrInvalidRequest),
		errors.Is(err, scrape.ErrUnknownStrategy),
		errors.Is(err, normalizer.ErrNormalization):
		return http.StatusBadRequest
	case errors.Is(err, scrape.ErrNoSearchResult):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, scrape.ErrRetrieval):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
