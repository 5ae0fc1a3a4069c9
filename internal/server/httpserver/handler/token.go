package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/domain"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/service"
)

// handleCreateToken handles POST /v1/tokens.
func (h *Handler) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	var req CreateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "GE-SYS-4000", "invalid request body", nil)
		return
	}

	svcReq := &service.CreateTokenRequest{
		Class:       domain.TokenClass(req.Class),
		Intensity:   req.Intensity,
		Source:      domain.Source(req.Source),
		Owner:       req.Owner,
		Explanation: req.Explanation,
		TTL:         time.Duration(req.TTLMillis) * time.Millisecond,
	}
	if req.Vector != nil {
		svcReq.Vector = domain.Vector{X: req.Vector.X, Y: req.Vector.Y, Z: req.Vector.Z}
	}

	var (
		token *domain.Token
		err   error
	)
	if req.Persistent {
		token, err = h.engine.Remember(r.Context(), svcReq)
	} else {
		token, err = h.engine.Create(r.Context(), svcReq)
	}
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, token)
}

// handleListTokens handles GET /v1/tokens.
func (h *Handler) handleListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.engine.ListActive(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, ListTokensResponse{
		Items: tokens,
		Total: len(tokens),
	})
}

// handleGetToken handles GET /v1/tokens/{id}.
func (h *Handler) handleGetToken(w http.ResponseWriter, r *http.Request) {
	tokenID := r.PathValue("id")
	if tokenID == "" {
		h.writeError(w, r, http.StatusBadRequest, "GE-ARG-1002", "token id is required", nil)
		return
	}

	token, err := h.engine.Get(r.Context(), tokenID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, token)
}

// handleMutateToken handles POST /v1/tokens/{id}/mutate.
func (h *Handler) handleMutateToken(w http.ResponseWriter, r *http.Request) {
	tokenID := r.PathValue("id")
	if tokenID == "" {
		h.writeError(w, r, http.StatusBadRequest, "GE-ARG-1002", "token id is required", nil)
		return
	}

	var req MutateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "GE-SYS-4000", "invalid request body", nil)
		return
	}

	token, err := h.engine.Mutate(r.Context(), &service.MutateTokenRequest{
		TokenID:     tokenID,
		Verb:        service.MutationVerb(req.Verb),
		Factor:      req.Factor,
		Extension:   time.Duration(req.ExtensionMs) * time.Millisecond,
		Class:       domain.TokenClass(req.Class),
		Explanation: req.Explanation,
		Intensity:   req.Intensity,
		Credential:  req.Credential,
		Source:      domain.Source(req.Source),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, token)
}

// handleForgetToken handles DELETE /v1/tokens/{id}.
// The body is optional; an empty body forgets with a default reason.
func (h *Handler) handleForgetToken(w http.ResponseWriter, r *http.Request) {
	tokenID := r.PathValue("id")
	if tokenID == "" {
		h.writeError(w, r, http.StatusBadRequest, "GE-ARG-1002", "token id is required", nil)
		return
	}

	var req ForgetTokenRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, r, http.StatusBadRequest, "GE-SYS-4000", "invalid request body", nil)
			return
		}
	}
	if req.Source == "" {
		req.Source = string(domain.SourceUser)
	}

	err := h.engine.Forget(r.Context(), &service.ForgetTokenRequest{
		TokenID: tokenID,
		Reason:  req.Reason,
		Source:  domain.Source(req.Source),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, map[string]bool{"forgotten": true})
}
