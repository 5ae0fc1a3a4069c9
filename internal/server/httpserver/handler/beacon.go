package handler

import (
	"encoding/json"
	"net/http"

	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/service"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/ledger/proof"
)

// handleRegisterBeacon handles POST /v1/beacons.
func (h *Handler) handleRegisterBeacon(w http.ResponseWriter, r *http.Request) {
	var req RegisterBeaconRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "GE-SYS-4000", "invalid request body", nil)
		return
	}

	resp, err := h.registrar.Register(r.Context(), &service.RegisterBeaconRequest{
		Scope:          req.Scope,
		ArtifactName:   req.ArtifactName,
		CanonicalOwner: req.CanonicalOwner,
		ExternalID:     req.ExternalID,
		FirstSeen:      req.FirstSeen,
		Hash:           req.Hash,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, RegisterBeaconResponse{
		Beacon:   resp.Beacon,
		Position: resp.Position,
	})
}

// handleGetBeacon handles GET /v1/beacons/{id}.
func (h *Handler) handleGetBeacon(w http.ResponseWriter, r *http.Request) {
	beaconID := r.PathValue("id")
	if beaconID == "" {
		h.writeError(w, r, http.StatusBadRequest, "GE-ARG-1002", "beacon id is required", nil)
		return
	}

	beacon, position, err := h.registrar.Get(r.Context(), beaconID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, BeaconResponse{
		Beacon:   beacon,
		Position: position,
	})
}

// handleVerifyBeacon handles GET /v1/beacons/{id}/verify.
// The candidate hash is passed as the "hash" query parameter; when
// absent the verification reports presence only.
func (h *Handler) handleVerifyBeacon(w http.ResponseWriter, r *http.Request) {
	beaconID := r.PathValue("id")
	if beaconID == "" {
		h.writeError(w, r, http.StatusBadRequest, "GE-ARG-1002", "beacon id is required", nil)
		return
	}

	resp, err := h.registrar.Verify(r.Context(), beaconID, r.URL.Query().Get("hash"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, resp)
}

// handleBeaconProof handles GET /v1/beacons/{id}/proof.
func (h *Handler) handleBeaconProof(w http.ResponseWriter, r *http.Request) {
	beaconID := r.PathValue("id")
	if beaconID == "" {
		h.writeError(w, r, http.StatusBadRequest, "GE-ARG-1002", "beacon id is required", nil)
		return
	}

	p, err := proof.Prove(r.Context(), h.ledger, beaconID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, p)
}

// handleBeaconCommitment handles GET /v1/beacons/{id}/commitment.
func (h *Handler) handleBeaconCommitment(w http.ResponseWriter, r *http.Request) {
	beaconID := r.PathValue("id")
	if beaconID == "" {
		h.writeError(w, r, http.StatusBadRequest, "GE-ARG-1002", "beacon id is required", nil)
		return
	}

	c, err := proof.Commit(r.Context(), h.ledger, beaconID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, c)
}

// handleAccumulator handles GET /v1/ledger/accumulator.
func (h *Handler) handleAccumulator(w http.ResponseWriter, r *http.Request) {
	value, size, err := h.registrar.Accumulator(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, AccumulatorResponse{
		Accumulator: value,
		Size:        size,
	})
}
