// Command oracled runs the oracle attestation service and the proposal
// validation endpoint behind a small HTTP surface.
//
//	POST /v1/validate  — decode a proposal, run the rule engine, return verdict
//	POST /v1/attest    — verify a filtered view and counter-sign its root
//	GET  /healthz
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/clearlane/forwardcore/pkg/attest"
	"github.com/clearlane/forwardcore/pkg/config"
	"github.com/clearlane/forwardcore/pkg/contracts"
	"github.com/clearlane/forwardcore/pkg/crypto"
	"github.com/clearlane/forwardcore/pkg/merkle"
	"github.com/clearlane/forwardcore/pkg/observability"
	"github.com/clearlane/forwardcore/pkg/oracle"
	"github.com/clearlane/forwardcore/pkg/validator"
	"github.com/clearlane/forwardcore/pkg/wire"
)

func main() {
	var (
		addr       = flag.String("addr", ":8480", "listen address")
		configPath = flag.String("config", "", "optional YAML config file")
	)
	flag.Parse()

	cfg := config.Load()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			slog.Error("config load failed", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceName = "forwardcore-oracled"
	obsCfg.OTLPEndpoint = cfg.OTLPEndpoint
	obsCfg.Insecure = true
	obsCfg.Enabled = cfg.OTLPEndpoint != ""
	obs, err := observability.New(ctx, obsCfg)
	if err != nil {
		logger.Error("observability init failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	signer, err := buildSigner(cfg)
	if err != nil {
		logger.Error("oracle signer init failed", "error", err)
		os.Exit(1)
	}

	store, closeStore, err := buildStore(cfg)
	if err != nil {
		logger.Error("spot store init failed", "backend", string(cfg.StoreBackend), "error", err)
		os.Exit(1)
	}
	defer closeStore()

	svcOpts := []attest.ServiceOption{
		attest.WithLogger(logger),
		attest.WithAttestationTokens(5 * time.Minute),
	}
	if cfg.AttestRatePerSec > 0 {
		svcOpts = append(svcOpts, attest.WithRateLimit(rate.Limit(cfg.AttestRatePerSec), cfg.AttestBurst))
	}
	svc := attest.NewService(store, signer, svcOpts...)

	engine := validator.New(
		validator.WithPolicy(validator.Policy{
			RequireFutureMaturity:  cfg.Policy.RequireFutureMaturity,
			FullExtinguishmentOnly: cfg.Policy.FullExtinguishmentOnly,
		}),
		validator.WithOracleKey(svc.Key()),
	)

	srv := &server{svc: svc, engine: engine, obs: obs, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/validate", srv.handleValidate)
	mux.HandleFunc("/v1/attest", srv.handleAttest)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	httpSrv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("oracled listening",
		"addr", *addr,
		"oracle_key", string(svc.Key()),
		"store", string(cfg.StoreBackend),
	)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

type server struct {
	svc    *attest.Service
	engine *validator.Validator
	obs    *observability.Provider
	logger *slog.Logger
}

type validateRequest struct {
	Proposal json.RawMessage   `json:"proposal"`
	Command  contracts.Command `json:"command"`
}

type validateResponse struct {
	Accepted bool   `json:"accepted"`
	Class    string `json:"class,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Root     string `json:"root,omitempty"`
}

func (s *server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p, err := wire.DecodeProposal(req.Proposal)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	verdict := s.engine.Validate(r.Context(), p, req.Command)
	s.obs.RecordVerdict(r.Context(), verdict.Accepted, string(verdict.Class))
	s.obs.RecordDuration(r.Context(), "validate", time.Since(start))

	resp := validateResponse{Accepted: verdict.Accepted}
	if !verdict.Accepted {
		resp.Class = string(verdict.Class)
		resp.Reason = verdict.Reason
	} else if root, err := attest.TransactionID(p); err == nil {
		resp.Root = root
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleAttest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()

	var view merkle.FilteredView
	if err := json.NewDecoder(r.Body).Decode(&view); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	att, err := s.svc.Attest(r.Context(), &view)
	s.obs.RecordDuration(r.Context(), "attest", time.Since(start))

	if errors.Is(err, attest.ErrRateLimited) {
		s.obs.RecordAttestation(r.Context(), false, "rate_limited")
		http.Error(w, err.Error(), http.StatusTooManyRequests)
		return
	}
	var rej *contracts.Rejection
	if errors.As(err, &rej) {
		s.obs.RecordAttestation(r.Context(), false, rej.Reason)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"class":  string(rej.Class),
			"reason": rej.Reason,
		})
		return
	}
	if err != nil {
		s.obs.RecordAttestation(r.Context(), false, "internal")
		s.logger.Error("attestation failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.obs.RecordAttestation(r.Context(), true, "")
	writeJSON(w, http.StatusOK, att)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// buildSigner derives the oracle key from the configured seed, or generates an
// ephemeral key when no seed is set (useful for local runs only).
func buildSigner(cfg *config.Config) (*crypto.Ed25519Signer, error) {
	if cfg.OracleKeySeed == "" {
		return crypto.NewEd25519Signer(cfg.OracleKeyID)
	}
	seed := []byte(cfg.OracleKeySeed)
	if decoded, err := hex.DecodeString(cfg.OracleKeySeed); err == nil {
		seed = decoded
	}
	return crypto.DeriveSigner(seed, cfg.OracleKeyID)
}

func buildStore(cfg *config.Config) (oracle.SpotPriceStore, func(), error) {
	noop := func() {}
	switch cfg.StoreBackend {
	case config.BackendRedis:
		s := oracle.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		return s, func() { _ = s.Close() }, nil
	case config.BackendSQLite:
		s, err := oracle.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return s, func() { _ = s.Close() }, nil
	case config.BackendPostgres:
		s, err := oracle.OpenPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, noop, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return oracle.NewMemoryStore(oracle.KnownSpots(time.Now().UTC().Truncate(time.Hour))...), noop, nil
	}
}
