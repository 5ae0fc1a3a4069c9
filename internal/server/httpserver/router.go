package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/service"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/ledger/proof"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/server/httpserver/handler"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Engine handles token lifecycle operations.
	Engine *service.Engine

	// Registrar handles beacon registration and verification.
	Registrar *service.Registrar

	// Ledger serves inclusion proofs and commitments; normally the
	// same ledger the registrar writes to.
	Ledger proof.Source

	// Metrics receives request counters and latencies; nil disables
	// both the instrumentation and the /metrics endpoint.
	Metrics *metric.Registry

	// Logger for request logging.
	Logger *slog.Logger

	// RateLimit is the per-IP request rate (requests/second);
	// zero disables throttling.
	RateLimit float64

	// RateBurst is the per-IP burst allowance.
	RateBurst int
}

// NewRouter creates the HTTP router with all routes and middleware.
// The health and metrics endpoints bypass throttling so probes and
// scrapes keep working while the API is saturated.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	h := handler.New(cfg.Engine, cfg.Registrar, cfg.Ledger, log)

	// Probe middleware chain: no throttling, no metrics.
	probe := []Middleware{
		Recover(log),
		RequestID(),
		Logging(log),
	}

	// API middleware chain. Recover sits outermost so a panic in any
	// later middleware still produces a response.
	api := []Middleware{
		Recover(log),
		RequestID(),
		Logging(log),
	}
	if cfg.Metrics != nil {
		api = append(api, Metrics(cfg.Metrics))
	}
	if cfg.RateLimit > 0 {
		api = append(api, RateLimit(cfg.RateLimit, cfg.RateBurst))
	}

	apiHandler := Chain(h, api...)

	mux := http.NewServeMux()
	mux.Handle("GET /health", Chain(h, probe...))
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", Chain(cfg.Metrics.Handler(), probe...))
	}

	// Token endpoints
	mux.Handle("POST /v1/tokens", apiHandler)
	mux.Handle("GET /v1/tokens", apiHandler)
	mux.Handle("GET /v1/tokens/{id}", apiHandler)
	mux.Handle("POST /v1/tokens/{id}/mutate", apiHandler)
	mux.Handle("DELETE /v1/tokens/{id}", apiHandler)

	// Beacon and ledger endpoints
	mux.Handle("POST /v1/beacons", apiHandler)
	mux.Handle("GET /v1/beacons/{id}", apiHandler)
	mux.Handle("GET /v1/beacons/{id}/verify", apiHandler)
	mux.Handle("GET /v1/beacons/{id}/proof", apiHandler)
	mux.Handle("GET /v1/beacons/{id}/commitment", apiHandler)
	mux.Handle("GET /v1/ledger/accumulator", apiHandler)

	// Reporting endpoints
	mux.Handle("GET /v1/summary", apiHandler)
	mux.Handle("GET /v1/audit", apiHandler)

	return mux
}
