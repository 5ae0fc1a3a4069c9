package service

import (
	"context"
	"log/slog"

	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/domain"
)

// LedgerRepository defines the append-only lineage ledger interface.
// Implementations serialize all writes behind one global writer.
type LedgerRepository interface {
	// Append adds a beacon at the end of the ledger and returns its
	// permanent position. Duplicate IDs are rejected.
	Append(ctx context.Context, beacon *domain.Beacon) (position uint64, err error)

	// Get retrieves a beacon and its position by ID.
	Get(ctx context.Context, beaconID string) (*domain.Beacon, uint64, error)

	// Deprecate marks a beacon deprecated. Repeating the call is
	// rejected, not absorbed.
	Deprecate(ctx context.Context, beaconID string) error

	// Accumulator returns the current accumulator value and ledger size.
	Accumulator(ctx context.Context) (value string, size uint64, err error)

	// Scan returns all beacons in insertion order.
	Scan(ctx context.Context) ([]*domain.Beacon, error)

	// NextSequence reserves the next ID sequence number for a scope.
	NextSequence(ctx context.Context, scope string) (int, error)

	// VerifyIntegrity recomputes the accumulator over the full beacon
	// list and compares it to the persisted value.
	VerifyIntegrity(ctx context.Context) error
}

// Registrar fronts the lineage ledger: it assigns beacon IDs,
// validates registrations, and audits every ledger operation.
// Registration is a human-authorized act; nothing registers beacons
// automatically.
type Registrar struct {
	ledger LedgerRepository
	audit  AuditTrail
	log    *slog.Logger
}

// NewRegistrar creates a Registrar.
func NewRegistrar(ledger LedgerRepository, audit AuditTrail, log *slog.Logger) (*Registrar, error) {
	if ledger == nil || audit == nil {
		return nil, domain.ErrMissingArgument.WithDetails("ledger and audit are required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Registrar{ledger: ledger, audit: audit, log: log}, nil
}

// RegisterBeaconRequest contains parameters for beacon registration.
type RegisterBeaconRequest struct {
	Scope          string // Required, registered scope code
	ArtifactName   string // Required
	CanonicalOwner string // Required
	ExternalID     string // Optional
	FirstSeen      string // Required, YYYY-MM-DD
	Hash           string // Required, algorithm-tagged
}

// RegisterBeaconResponse contains the result of a registration.
type RegisterBeaconResponse struct {
	Beacon   *domain.Beacon
	Position uint64
}

// Register validates and appends a new beacon. The beacon ID is
// assigned here from the scope's sequence and never reused; the
// insertion position becomes part of the permanent record.
func (r *Registrar) Register(ctx context.Context, req *RegisterBeaconRequest) (*RegisterBeaconResponse, error) {
	if !domain.ValidScope(req.Scope) {
		verr := domain.ErrBeaconValidation.WithDetails("scope " + req.Scope + " is not registered")
		if aerr := r.recordAudit(ctx, domain.OpRegister, "", domain.OutcomeRejected, verr.Error()); aerr != nil {
			return nil, aerr
		}
		return nil, verr
	}

	seq, err := r.ledger.NextSequence(ctx, req.Scope)
	if err != nil {
		return nil, err
	}
	beacon := &domain.Beacon{
		BeaconID:       domain.FormatBeaconID(req.Scope, seq),
		Scope:          req.Scope,
		ArtifactName:   req.ArtifactName,
		CanonicalOwner: req.CanonicalOwner,
		ExternalID:     req.ExternalID,
		FirstSeen:      req.FirstSeen,
		Hash:           req.Hash,
	}

	if verr := beacon.Validate(); verr != nil {
		if aerr := r.recordAudit(ctx, domain.OpRegister, beacon.BeaconID, domain.OutcomeRejected, verr.Error()); aerr != nil {
			return nil, aerr
		}
		return nil, verr
	}

	position, err := r.ledger.Append(ctx, beacon)
	if err != nil {
		if aerr := r.recordAudit(ctx, domain.OpRegister, beacon.BeaconID, domain.OutcomeRejected, err.Error()); aerr != nil {
			return nil, aerr
		}
		return nil, err
	}
	if err := r.recordAudit(ctx, domain.OpRegister, beacon.BeaconID, domain.OutcomeAccepted, ""); err != nil {
		return nil, err
	}

	r.log.Info("beacon registered", "beacon_id", beacon.BeaconID, "position", position)
	return &RegisterBeaconResponse{Beacon: beacon, Position: position}, nil
}

// Get retrieves a beacon by ID.
func (r *Registrar) Get(ctx context.Context, beaconID string) (*domain.Beacon, uint64, error) {
	if beaconID == "" {
		return nil, 0, domain.ErrMissingArgument.WithDetails("beacon id is required")
	}
	return r.ledger.Get(ctx, beaconID)
}

// VerifyBeaconResponse contains the result of a verification.
type VerifyBeaconResponse struct {
	BeaconID    string `json:"beacon_id"`
	Matched     bool   `json:"matched"`
	StoredHash  string `json:"stored_hash"`
	Accumulator string `json:"accumulator"`
	Deprecated  bool   `json:"deprecated"`
}

// Verify compares a candidate artifact hash against the beacon's
// stored hash and reports the current accumulator alongside. An empty
// candidate hash verifies presence only.
func (r *Registrar) Verify(ctx context.Context, beaconID, candidateHash string) (*VerifyBeaconResponse, error) {
	beacon, _, err := r.ledger.Get(ctx, beaconID)
	if err != nil {
		return nil, err
	}
	value, _, err := r.ledger.Accumulator(ctx)
	if err != nil {
		return nil, err
	}

	matched := candidateHash == "" || candidateHash == beacon.Hash
	outcome := domain.OutcomeAccepted
	reason := ""
	if !matched {
		outcome = domain.OutcomeRejected
		reason = "candidate hash does not match stored hash"
	}
	if err := r.recordAudit(ctx, domain.OpVerify, beaconID, outcome, reason); err != nil {
		return nil, err
	}

	return &VerifyBeaconResponse{
		BeaconID:    beacon.BeaconID,
		Matched:     matched,
		StoredHash:  beacon.Hash,
		Accumulator: value,
		Deprecated:  beacon.Deprecated,
	}, nil
}

// Deprecate marks a beacon as superseded. The beacon itself stays in
// the ledger and keeps its position; only the deprecation flag moves,
// once, false to true.
func (r *Registrar) Deprecate(ctx context.Context, beaconID string) error {
	if beaconID == "" {
		return domain.ErrMissingArgument.WithDetails("beacon id is required")
	}

	if err := r.ledger.Deprecate(ctx, beaconID); err != nil {
		if aerr := r.recordAudit(ctx, domain.OpDeprecate, beaconID, domain.OutcomeRejected, err.Error()); aerr != nil {
			return aerr
		}
		return err
	}
	if err := r.recordAudit(ctx, domain.OpDeprecate, beaconID, domain.OutcomeAccepted, ""); err != nil {
		return err
	}

	r.log.Info("beacon deprecated", "beacon_id", beaconID)
	return nil
}

// Accumulator returns the current accumulator value and ledger size.
func (r *Registrar) Accumulator(ctx context.Context) (string, uint64, error) {
	return r.ledger.Accumulator(ctx)
}

// Export returns all beacons in insertion order.
func (r *Registrar) Export(ctx context.Context) ([]*domain.Beacon, error) {
	return r.ledger.Scan(ctx)
}

// VerifyIntegrity recomputes the ledger accumulator over the full
// beacon list. A mismatch is fatal for ledger writes.
func (r *Registrar) VerifyIntegrity(ctx context.Context) error {
	return r.ledger.VerifyIntegrity(ctx)
}

func (r *Registrar) recordAudit(ctx context.Context, op domain.Operation, targetID string, outcome domain.Outcome, reason string) error {
	entry, err := domain.NewAuditEntry(op, targetID, outcome, reason, domain.SourceUser)
	if err != nil {
		return err
	}
	if err := r.audit.Record(ctx, entry); err != nil {
		r.log.Error("audit write failed", "operation", op, "target_id", targetID, "error", err)
		return domain.ErrStorage.WithCause(err)
	}
	return nil
}
