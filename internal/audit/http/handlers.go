package audithttp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-inventory/internal/audit"
	"github.com/odyssey-erp/odyssey-inventory/internal/masterdata/shared"
	"github.com/odyssey-erp/odyssey-inventory/internal/platform/httpx"
)

// TrailService reads the audit trail.
type TrailService interface {
	List(ctx context.Context, filters audit.Filters) ([]audit.Entry, error)
}

// Exporter renders audit entries for download.
type Exporter interface {
	WriteCSV(entries []audit.Entry) ([]byte, error)
}

// Handler serves the audit trail.
type Handler struct {
	logger   *slog.Logger
	service  TrailService
	exporter Exporter
	now      func() time.Time
}

// NewHandler builds an audit handler.
func NewHandler(logger *slog.Logger, service TrailService, exporter Exporter) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if exporter == nil {
		exporter = audit.NewExporter()
	}
	return &Handler{
		logger:   logger,
		service:  service,
		exporter: exporter,
		now:      time.Now,
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.fail(w, "list audit entries failed", err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.fail(w, "export audit entries failed", err)
		return
	}
	payload, err := h.exporter.WriteCSV(entries)
	if err != nil {
		h.fail(w, "render audit csv failed", err)
		return
	}

	filename := fmt.Sprintf("audit-%s.csv", h.now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func parseFilters(r *http.Request) (audit.Filters, error) {
	q := r.URL.Query()
	var filters audit.Filters
	if raw := strings.TrimSpace(q.Get("product_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return audit.Filters{}, fmt.Errorf("%w: product_id must be a positive integer", shared.ErrValidation)
		}
		filters.ProductID = &id
	}
	filters.Action = audit.Action(strings.ToUpper(strings.TrimSpace(q.Get("action"))))
	filters.Actor = strings.TrimSpace(q.Get("actor"))
	return filters, nil
}
