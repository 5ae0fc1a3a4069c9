package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/domain"
)

// handleHealth handles GET /health.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleSummary handles GET /v1/summary.
func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.engine.Summarize(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, summary)
}

// handleAuditReport handles GET /v1/audit.
// Filters come from query parameters: operation, outcome, target,
// since, until (Unix ms) and limit.
func (h *Handler) handleAuditReport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := domain.AuditFilter{
		Operation: domain.Operation(query.Get("operation")),
		Outcome:   domain.Outcome(query.Get("outcome")),
		TargetID:  query.Get("target"),
	}
	if since := query.Get("since"); since != "" {
		v, err := strconv.ParseInt(since, 10, 64)
		if err != nil {
			h.writeError(w, r, http.StatusBadRequest, "GE-ARG-1001", "since must be a Unix millisecond timestamp", nil)
			return
		}
		filter.Since = v
	}
	if until := query.Get("until"); until != "" {
		v, err := strconv.ParseInt(until, 10, 64)
		if err != nil {
			h.writeError(w, r, http.StatusBadRequest, "GE-ARG-1001", "until must be a Unix millisecond timestamp", nil)
			return
		}
		filter.Until = v
	}
	if limit := query.Get("limit"); limit != "" {
		v, err := strconv.Atoi(limit)
		if err != nil || v < 0 {
			h.writeError(w, r, http.StatusBadRequest, "GE-ARG-1001", "limit must be a non-negative integer", nil)
			return
		}
		filter.Limit = v
	}

	entries, err := h.engine.AuditReport(r.Context(), filter)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, AuditReportResponse{
		Entries: entries,
		Total:   len(entries),
	})
}
