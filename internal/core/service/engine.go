package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/domain"
)

// DefaultPersistentTTL is the TTL applied by Remember when the request
// does not carry one.
const DefaultPersistentTTL = 7 * 24 * time.Hour

// GenesisTTL is the TTL of the bootstrap anchors.
const GenesisTTL = 365 * 24 * time.Hour

// TokenRepository defines the durable storage interface for token
// operations. Implementations guarantee atomicity per single-token
// operation and serialize writes per token identity.
type TokenRepository interface {
	// Create persists a new token. Fails on duplicate ID.
	Create(ctx context.Context, token *domain.Token) error

	// Get retrieves a token by ID.
	Get(ctx context.Context, id string) (*domain.Token, error)

	// Update replaces a token snapshot (with optimistic locking).
	Update(ctx context.Context, token *domain.Token, expectedVersion uint64) error

	// Delete removes a token from the live set.
	Delete(ctx context.Context, id string) error

	// List retrieves all stored tokens, including ones whose TTL has
	// elapsed but which have not yet been purged.
	List(ctx context.Context) ([]*domain.Token, error)

	// Count returns the number of stored tokens.
	Count(ctx context.Context) (int, error)
}

// AuditTrail defines the append-only audit log interface.
type AuditTrail interface {
	// Record seals and appends one entry. A failure here is a
	// durability failure and is fatal to the calling operation.
	Record(ctx context.Context, entry *domain.AuditEntry) error

	// Query streams stored entries matching the filter, oldest first.
	Query(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEntry, error)
}

// AccumulatorSource exposes the ledger accumulator for read-only
// summaries. The engine never writes to the ledger.
type AccumulatorSource interface {
	Accumulator(ctx context.Context) (value string, size uint64, err error)
}

// MutationVerb selects the mutation applied by Mutate.
type MutationVerb string

const (
	// VerbAttenuate reduces intensity by a factor.
	VerbAttenuate MutationVerb = "attenuate"

	// VerbRefresh extends the TTL.
	VerbRefresh MutationVerb = "refresh"

	// VerbReframe rewrites class, explanation or intensity.
	VerbReframe MutationVerb = "reframe"
)

// Engine orchestrates the token lifecycle: every request is validated
// first, applied to exactly one store, and audited unconditionally,
// rejections included. TTL expiry is evaluated lazily on access; there
// is no background timer.
type Engine struct {
	validator *Validator
	store     TokenRepository
	audit     AuditTrail
	ledger    AccumulatorSource
	log       *slog.Logger

	// credentials maps a token source to the credential hash that
	// authorizes mutations of tokens from that source.
	credentials map[domain.Source]string
}

// EngineConfig wires an Engine.
type EngineConfig struct {
	Validator *Validator
	Store     TokenRepository
	Audit     AuditTrail
	Ledger    AccumulatorSource // optional, summaries degrade without it
	Logger    *slog.Logger

	// Credentials maps source to registered credential hash (gkh_...).
	Credentials map[domain.Source]string
}

// NewEngine creates an Engine from the given configuration.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Validator == nil || cfg.Store == nil || cfg.Audit == nil {
		return nil, domain.ErrMissingArgument.WithDetails("validator, store and audit are required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	for src, hash := range cfg.Credentials {
		if !domain.ValidCredentialHashFormat(hash) {
			return nil, domain.ErrInvalidArgument.WithDetails(
				"credential hash for source " + string(src) + " is malformed")
		}
	}
	return &Engine{
		validator:   cfg.Validator,
		store:       cfg.Store,
		audit:       cfg.Audit,
		ledger:      cfg.Ledger,
		log:         log,
		credentials: cfg.Credentials,
	}, nil
}

// Bootstrap seeds the genesis anchors into an empty store. Idempotent:
// a non-empty store is left untouched.
func (e *Engine) Bootstrap(ctx context.Context) error {
	count, err := e.store.Count(ctx)
	if err != nil {
		return domain.ErrStorage.WithCause(err)
	}
	if count > 0 {
		return nil
	}

	seeds := []struct {
		vector      domain.Vector
		explanation string
	}{
		{domain.Vector{Z: 1}, "Genesis anchor: engine bootstrap state."},
		{domain.Vector{X: 1}, "Genesis anchor: governance rules active."},
	}
	for _, seed := range seeds {
		token, err := domain.NewToken(domain.ClassAnchor, domain.SourceSystem, seed.explanation, GenesisTTL)
		if err != nil {
			return err
		}
		token.Vector = seed.vector
		token.Intensity = 1.0
		token.State = domain.StateActive
		if err := e.store.Create(ctx, token); err != nil {
			return domain.ErrStorage.WithCause(err)
		}
		if err := e.recordAudit(ctx, domain.OpCreate, token.ID, domain.OutcomeAccepted, "", domain.SourceSystem); err != nil {
			return err
		}
	}
	e.log.Info("genesis anchors seeded", "count", len(seeds))
	return nil
}

// ============================================================================
// Create Operations
// ============================================================================

// CreateTokenRequest contains parameters for token creation.
type CreateTokenRequest struct {
	Class       domain.TokenClass // Required
	Vector      domain.Vector     // Optional, defaults to origin
	Intensity   *float64          // Optional, defaults to 0.5
	Source      domain.Source     // Required
	Owner       string            // Optional
	Explanation string            // Required, filtered
	TTL         time.Duration     // Required, > 0
}

// Create validates and creates a new token.
// The token enters StateActive on success; rejections leave the store
// unchanged and are recorded in the audit trail.
func (e *Engine) Create(ctx context.Context, req *CreateTokenRequest) (*domain.Token, error) {
	token, err := domain.NewToken(req.Class, req.Source, req.Explanation, req.TTL)
	if err != nil {
		return nil, err
	}
	token.Vector = req.Vector
	token.Owner = req.Owner
	if req.Intensity != nil {
		token.Intensity = *req.Intensity
	}

	active, err := e.listLive(ctx)
	if err != nil {
		return nil, err
	}

	if verr := e.validator.ValidateCreate(token, len(active)); verr != nil {
		if aerr := e.recordAudit(ctx, domain.OpCreate, token.ID, domain.OutcomeRejected, verr.Error(), req.Source); aerr != nil {
			return nil, aerr
		}
		return nil, verr
	}

	token.State = domain.StateActive
	if err := e.store.Create(ctx, token); err != nil {
		return nil, err
	}
	if err := e.recordAudit(ctx, domain.OpCreate, token.ID, domain.OutcomeAccepted, "", req.Source); err != nil {
		return nil, err
	}

	e.log.Info("token created", "token_id", token.ID, "class", token.Class, "ttl_ms", token.TTL)
	return token, nil
}

// Remember creates a persistent token: same path as Create with a
// long default TTL.
func (e *Engine) Remember(ctx context.Context, req *CreateTokenRequest) (*domain.Token, error) {
	if req.TTL == 0 {
		req.TTL = DefaultPersistentTTL
	}
	if req.Class == "" {
		req.Class = domain.ClassAnchor
	}
	return e.Create(ctx, req)
}

// ============================================================================
// Query Operations
// ============================================================================

// Get retrieves a live token by ID. An elapsed TTL is applied here:
// the token transitions to Expired, is purged, audited, and reported
// as expired to the caller.
func (e *Engine) Get(ctx context.Context, id string) (*domain.Token, error) {
	if id == "" {
		return nil, domain.ErrMissingArgument.WithDetails("token id is required")
	}

	token, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if token.IsExpired() {
		if err := e.expire(ctx, token); err != nil {
			return nil, err
		}
		return nil, domain.ErrTokenExpired.WithDetails(id)
	}
	return token, nil
}

// ListActive returns all live tokens ordered by creation time.
// Expired entries found along the way are purged and audited.
func (e *Engine) ListActive(ctx context.Context) ([]*domain.Token, error) {
	return e.listLive(ctx)
}

func (e *Engine) listLive(ctx context.Context) ([]*domain.Token, error) {
	all, err := e.store.List(ctx)
	if err != nil {
		return nil, err
	}

	live := make([]*domain.Token, 0, len(all))
	for _, token := range all {
		if token.IsExpired() {
			if err := e.expire(ctx, token); err != nil {
				return nil, err
			}
			continue
		}
		live = append(live, token)
	}
	sort.Slice(live, func(i, j int) bool {
		if live[i].CreatedAt != live[j].CreatedAt {
			return live[i].CreatedAt < live[j].CreatedAt
		}
		return live[i].ID < live[j].ID
	})
	return live, nil
}

// expire applies the lazy Active -> Expired transition: purge plus
// exactly one audit entry.
func (e *Engine) expire(ctx context.Context, token *domain.Token) error {
	if err := e.store.Delete(ctx, token.ID); err != nil {
		return err
	}
	e.log.Debug("token expired", "token_id", token.ID)
	return e.recordAudit(ctx, domain.OpExpire, token.ID, domain.OutcomeAccepted, "", domain.SourceSystem)
}

// ============================================================================
// Mutation Operations
// ============================================================================

// MutateTokenRequest contains parameters for a token mutation.
type MutateTokenRequest struct {
	TokenID string       // Required
	Verb    MutationVerb // Required

	// Factor applies to attenuate, in (0, 1].
	Factor float64

	// Extension applies to refresh; defaults to 24h.
	Extension time.Duration

	// Class, Explanation and Intensity apply to reframe; zero values
	// keep the existing field.
	Class       domain.TokenClass
	Explanation string
	Intensity   *float64

	// Credential is the plaintext mutation credential (gak_...).
	Credential string

	// Source is the request origin recorded in the audit trail.
	Source domain.Source
}

// Mutate applies a validated mutation, producing a new field snapshot
// under the same logical identity with incremented ancestry depth.
// The snapshot transitions Active -> Mutated -> Active atomically; the
// stored token is always observed in StateActive.
func (e *Engine) Mutate(ctx context.Context, req *MutateTokenRequest) (*domain.Token, error) {
	if req.TokenID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("token id is required")
	}

	token, err := e.Get(ctx, req.TokenID)
	if err != nil {
		return nil, err
	}
	if !token.CanTransition(domain.StateMutated) {
		return nil, domain.ErrTokenTerminal.WithDetails(string(token.State))
	}

	next := token.Clone()
	if err := e.applyVerb(next, req); err != nil {
		if aerr := e.recordAudit(ctx, domain.OpMutate, token.ID, domain.OutcomeRejected, err.Error(), req.Source); aerr != nil {
			return nil, aerr
		}
		return nil, err
	}
	next.Depth++
	next.MutatedAt = time.Now().UnixMilli()

	ancestry, err := e.ancestryChain(ctx, next)
	if err != nil {
		return nil, err
	}
	if verr := e.validator.ValidateMutation(next, ancestry, req.Credential, e.credentials[token.Source]); verr != nil {
		if aerr := e.recordAudit(ctx, domain.OpMutate, token.ID, domain.OutcomeRejected, verr.Error(), req.Source); aerr != nil {
			return nil, aerr
		}
		return nil, verr
	}
	if verr := next.Validate(); verr != nil {
		if aerr := e.recordAudit(ctx, domain.OpMutate, token.ID, domain.OutcomeRejected, verr.Error(), req.Source); aerr != nil {
			return nil, aerr
		}
		return nil, verr
	}

	oldVersion := next.Version
	next.IncrVersion()
	if err := e.store.Update(ctx, next, oldVersion); err != nil {
		return nil, err
	}
	if err := e.recordAudit(ctx, domain.OpMutate, next.ID, domain.OutcomeAccepted, "", req.Source); err != nil {
		return nil, err
	}

	e.log.Info("token mutated", "token_id", next.ID, "verb", req.Verb, "depth", next.Depth)
	return next, nil
}

func (e *Engine) applyVerb(token *domain.Token, req *MutateTokenRequest) error {
	switch req.Verb {
	case VerbAttenuate:
		if req.Factor <= 0 || req.Factor > 1 {
			return domain.ErrInvalidArgument.WithDetails("attenuate factor must lie in (0, 1]")
		}
		token.Attenuate(req.Factor)
	case VerbRefresh:
		extension := req.Extension
		if extension == 0 {
			extension = 24 * time.Hour
		}
		if extension < 0 {
			return domain.ErrInvalidArgument.WithDetails("refresh extension must be positive")
		}
		token.Refresh(extension)
	case VerbReframe:
		if req.Class != "" {
			token.Class = req.Class
		}
		if req.Explanation != "" {
			token.Explanation = req.Explanation
		}
		if req.Intensity != nil {
			token.Intensity = *req.Intensity
		}
	default:
		return domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("unknown mutation verb %q", req.Verb))
	}
	return nil
}

// ancestryChain walks the ParentID links from the token back toward
// its original creation. The walk is bounded to one step past the
// amplification limit so a cyclic chain still terminates.
func (e *Engine) ancestryChain(ctx context.Context, token *domain.Token) ([]string, error) {
	var chain []string
	parentID := token.ParentID
	for parentID != "" && len(chain) <= e.validator.MaxAncestryDepth() {
		chain = append(chain, parentID)
		if parentID == token.ID {
			break
		}
		parent, err := e.store.Get(ctx, parentID)
		if err != nil {
			if domain.IsDomainError(err, domain.ErrTokenNotFound.Code) {
				break
			}
			return nil, err
		}
		parentID = parent.ParentID
	}
	return chain, nil
}

// ============================================================================
// Forget Operation
// ============================================================================

// ForgetTokenRequest contains parameters for an explicit forget.
type ForgetTokenRequest struct {
	TokenID string        // Required
	Reason  string        // Optional, recorded in the audit trail
	Source  domain.Source // Required
}

// Forget removes a token from the live set. The deletion is visible:
// the token's prior existence remains in the audit trail.
func (e *Engine) Forget(ctx context.Context, req *ForgetTokenRequest) error {
	token, err := e.Get(ctx, req.TokenID)
	if err != nil {
		return err
	}
	if !token.CanTransition(domain.StateForgotten) {
		return domain.ErrTokenTerminal.WithDetails(string(token.State))
	}

	if err := e.store.Delete(ctx, token.ID); err != nil {
		return err
	}
	reason := req.Reason
	if reason == "" {
		reason = "caller requested forget"
	}
	if err := e.recordAudit(ctx, domain.OpForget, token.ID, domain.OutcomeAccepted, reason, req.Source); err != nil {
		return err
	}

	e.log.Info("token forgotten", "token_id", token.ID)
	return nil
}

// ============================================================================
// Reporting Operations
// ============================================================================

// Summary is a read-only snapshot of the engine state.
type Summary struct {
	ActiveTokens      int                       `json:"active_tokens"`
	ByClass           map[domain.TokenClass]int `json:"by_class"`
	LedgerSize        uint64                    `json:"ledger_size"`
	Accumulator       string                    `json:"accumulator"`
	ValidatorChecksum string                    `json:"validator_checksum"`
}

// Summarize builds a point-in-time summary. The token and ledger
// figures come from separate reads and are individually consistent.
func (e *Engine) Summarize(ctx context.Context) (*Summary, error) {
	live, err := e.listLive(ctx)
	if err != nil {
		return nil, err
	}

	byClass := make(map[domain.TokenClass]int)
	for _, token := range live {
		byClass[token.Class]++
	}
	s := &Summary{
		ActiveTokens:      len(live),
		ByClass:           byClass,
		ValidatorChecksum: e.validator.Checksum(),
	}
	if e.ledger != nil {
		value, size, err := e.ledger.Accumulator(ctx)
		if err != nil {
			return nil, err
		}
		s.Accumulator = value
		s.LedgerSize = size
	}
	return s, nil
}

// AuditReport returns audit entries matching the filter, oldest first.
func (e *Engine) AuditReport(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEntry, error) {
	return e.audit.Query(ctx, filter)
}

// StateExport is a portable snapshot of the live token set.
type StateExport struct {
	ExportedAt  int64           `json:"exported_at"`
	Accumulator string          `json:"accumulator,omitempty"`
	Tokens      []*domain.Token `json:"tokens"`
}

// ExportState exports all live tokens plus the current accumulator.
func (e *Engine) ExportState(ctx context.Context) (*StateExport, error) {
	live, err := e.listLive(ctx)
	if err != nil {
		return nil, err
	}
	export := &StateExport{
		ExportedAt: time.Now().UnixMilli(),
		Tokens:     live,
	}
	if e.ledger != nil {
		value, _, err := e.ledger.Accumulator(ctx)
		if err != nil {
			return nil, err
		}
		export.Accumulator = value
	}
	return export, nil
}

// recordAudit writes one sealed entry. An audit write failure is a
// durability failure and overrides whatever outcome was pending.
func (e *Engine) recordAudit(ctx context.Context, op domain.Operation, targetID string, outcome domain.Outcome, reason string, source domain.Source) error {
	entry, err := domain.NewAuditEntry(op, targetID, outcome, reason, source)
	if err != nil {
		return err
	}
	if err := e.audit.Record(ctx, entry); err != nil {
		e.log.Error("audit write failed", "operation", op, "target_id", targetID, "error", err)
		return domain.ErrStorage.WithCause(err)
	}
	return nil
}
