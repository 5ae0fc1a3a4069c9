package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/domain"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/service"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/ledger/proof"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/telemetry/logger"
)

// Handler routes API requests to the engine and registrar.
type Handler struct {
	engine    *service.Engine
	registrar *service.Registrar
	ledger    proof.Source
	logger    *slog.Logger
	mux       *http.ServeMux
}

// New creates a Handler over the given services. The ledger source is
// used for inclusion proofs and commitments and is normally the same
// ledger the registrar writes to.
func New(engine *service.Engine, registrar *service.Registrar, ledger proof.Source, log *slog.Logger) *Handler {
	h := &Handler{
		engine:    engine,
		registrar: registrar,
		ledger:    ledger,
		logger:    log,
		mux:       http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// registerRoutes registers all HTTP routes.
func (h *Handler) registerRoutes() {
	// Health endpoint (no throttling, no envelope dependencies)
	h.mux.HandleFunc("GET /health", h.handleHealth)

	// Token endpoints
	h.mux.HandleFunc("POST /v1/tokens", h.handleCreateToken)
	h.mux.HandleFunc("GET /v1/tokens", h.handleListTokens)
	h.mux.HandleFunc("GET /v1/tokens/{id}", h.handleGetToken)
	h.mux.HandleFunc("POST /v1/tokens/{id}/mutate", h.handleMutateToken)
	h.mux.HandleFunc("DELETE /v1/tokens/{id}", h.handleForgetToken)

	// Beacon and ledger endpoints
	h.mux.HandleFunc("POST /v1/beacons", h.handleRegisterBeacon)
	h.mux.HandleFunc("GET /v1/beacons/{id}", h.handleGetBeacon)
	h.mux.HandleFunc("GET /v1/beacons/{id}/verify", h.handleVerifyBeacon)
	h.mux.HandleFunc("GET /v1/beacons/{id}/proof", h.handleBeaconProof)
	h.mux.HandleFunc("GET /v1/beacons/{id}/commitment", h.handleBeaconCommitment)
	h.mux.HandleFunc("GET /v1/ledger/accumulator", h.handleAccumulator)

	// Reporting endpoints
	h.mux.HandleFunc("GET /v1/summary", h.handleSummary)
	h.mux.HandleFunc("GET /v1/audit", h.handleAuditReport)
}

// writeJSON writes a JSON response with the standard envelope.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := getRequestID(r)
	response := NewResponse(requestID, data)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with the standard envelope.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	requestID := getRequestID(r)
	response := NewErrorResponse(requestID, code, message, details)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// getRequestID extracts the request ID placed in the context by the
// RequestID middleware, falling back to the caller-supplied header.
func getRequestID(r *http.Request) string {
	if id := logger.RequestIDFromContext(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if domain.IsDomainError(err, "") {
		code := domain.GetErrorCode(err)
		status := errorCodeToHTTPStatus(code)
		h.writeError(w, r, status, code, err.Error(), nil)
		return
	}

	h.logger.Error("internal error", "error", err)
	h.writeError(w, r, http.StatusInternalServerError, "GE-SYS-5000", "internal server error", nil)
}

// errorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func errorCodeToHTTPStatus(code string) int {
	// A handful of codes break the suffix convention and map directly.
	switch code {
	case "GE-VAL-4010":
		return http.StatusUnauthorized
	case "GE-TOKN-4010":
		return http.StatusConflict
	case "GE-LEDG-5030":
		return http.StatusServiceUnavailable
	case "GE-LEDG-4001":
		return http.StatusBadRequest
	}

	switch {
	case strings.HasSuffix(code, "-4040"), strings.HasSuffix(code, "-4041"):
		return http.StatusNotFound
	case strings.HasSuffix(code, "-4090"), strings.HasSuffix(code, "-4091"), strings.HasSuffix(code, "-4092"):
		return http.StatusConflict
	case strings.HasSuffix(code, "-4290"):
		return http.StatusTooManyRequests
	case strings.HasSuffix(code, "-4030"):
		return http.StatusForbidden
	case strings.HasPrefix(code, "GE-VAL-"), strings.HasPrefix(code, "GE-ARG-"):
		return http.StatusBadRequest
	case strings.HasSuffix(code, "-4000"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
