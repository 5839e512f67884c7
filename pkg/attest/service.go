package attest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/clearlane/forwardcore/pkg/contracts"
	"github.com/clearlane/forwardcore/pkg/crypto"
	"github.com/clearlane/forwardcore/pkg/merkle"
	"github.com/clearlane/forwardcore/pkg/oracle"
)

// Attestation rejection reasons. Stable; callers key diagnostics on them.
const (
	ReasonViewMismatch      = "filtered view does not recombine to its claimed root"
	ReasonExtraneousLeaf    = "disclosed component is not an oracle price command"
	ReasonOracleNotNamed    = "the oracle is not a required signer of the disclosed command"
	ReasonUnknownSpot       = "unknown instrument/time"
	ReasonSpotPriceMismatch = "claimed spot price does not match the oracle's records"
	ReasonNothingDisclosed  = "the filtered view discloses nothing to attest"
)

// ErrRateLimited reports throttling. Unlike a rejection it says nothing about
// the view's validity; the caller may retry the same request later.
var ErrRateLimited = errors.New("attest: request rate limit exceeded")

// Attestation is the oracle's signature over a transaction's root
// identifier. The oracle signs the commitment, never the full content.
type Attestation struct {
	Root      string              `json:"root"`
	KeyID     string              `json:"key_id"`
	OracleKey contracts.PublicKey `json:"oracle_key"`
	Signature string              `json:"signature"`
	// Token is an optional JWS envelope for the transport layer.
	Token string `json:"token,omitempty"`
}

// Service is the oracle attestation service: it verifies a filtered view,
// checks every disclosed price against its own store, and signs the root.
// It never signs a partially valid view.
type Service struct {
	store     oracle.SpotPriceStore
	signer    *crypto.Ed25519Signer
	limiter   *rate.Limiter
	tokenTTL  time.Duration
	mintToken bool
	logger    *slog.Logger
	tracer    trace.Tracer
}

// ServiceOption configures the attestation service.
type ServiceOption func(*Service)

// WithRateLimit bounds attestation requests per second.
func WithRateLimit(limit rate.Limit, burst int) ServiceOption {
	return func(s *Service) { s.limiter = rate.NewLimiter(limit, burst) }
}

// WithAttestationTokens makes Attest also mint a JWS token with the given
// lifetime.
func WithAttestationTokens(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.mintToken = true
		s.tokenTTL = ttl
	}
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService constructs the attestation service around a price store and the
// oracle's signer.
func NewService(store oracle.SpotPriceStore, signer *crypto.Ed25519Signer, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		signer: signer,
		logger: slog.Default(),
		tracer: otel.Tracer("forwardcore/attest"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the oracle's public key, for callers assembling signer sets.
func (s *Service) Key() contracts.PublicKey {
	return s.signer.PublicKey()
}

// Attest verifies the filtered view and, if every disclosed price command
// checks out against the store, signs over the transaction's root
// identifier. Any failure is a hard rejection.
func (s *Service) Attest(ctx context.Context, view *merkle.FilteredView) (*Attestation, error) {
	ctx, span := s.tracer.Start(ctx, "attest.Attest",
		trace.WithAttributes(attribute.String("tx.root", view.Root)))
	defer span.End()

	if s.limiter != nil && !s.limiter.Allow() {
		return nil, ErrRateLimited
	}

	if err := view.Verify(); err != nil {
		return nil, s.reject(view.Root, ReasonViewMismatch)
	}
	if len(view.Disclosed) == 0 {
		return nil, s.reject(view.Root, ReasonNothingDisclosed)
	}

	myKey := s.signer.PublicKey()
	commands, rej := s.decodeDisclosed(view, myKey)
	if rej != nil {
		return nil, rej
	}

	for _, oc := range commands {
		stored, err := s.store.Lookup(ctx, oc.Spot.Instrument, oc.Spot.AsOf)
		if errors.Is(err, oracle.ErrUnknownSpot) {
			return nil, s.reject(view.Root, ReasonUnknownSpot)
		}
		if err != nil {
			return nil, fmt.Errorf("attest: price lookup failed: %w", err)
		}
		if !stored.Equal(oc.Spot) {
			// Logged distinctly: a price mismatch can mean a stale feed on
			// one side or a proposal lying about the market.
			s.logger.Warn("spot price mismatch on attestation request",
				"root", view.Root,
				"instrument", oc.Spot.Instrument,
				"as_of", oc.Spot.AsOf,
				"claimed", oc.Spot.Value.String(),
				"stored", stored.Value.String(),
			)
			return nil, s.reject(view.Root, ReasonSpotPriceMismatch)
		}
	}

	sig, err := s.signer.Sign([]byte(view.Root))
	if err != nil {
		return nil, fmt.Errorf("attest: signing failed: %w", err)
	}

	att := &Attestation{
		Root:      view.Root,
		KeyID:     s.signer.KeyID(),
		OracleKey: myKey,
		Signature: sig,
	}
	if s.mintToken {
		first := commands[0].Spot
		token, err := crypto.MintAttestationToken(s.signer, view.Root, first.Instrument, first.AsOf, s.tokenTTL)
		if err != nil {
			return nil, fmt.Errorf("attest: token mint failed: %w", err)
		}
		att.Token = token
	}
	return att, nil
}

// decodeDisclosed checks honest disclosure: every disclosed leaf must be an
// oracle command that names this oracle. Anything else means the requester
// revealed more than the minimal fragment, or asked the wrong oracle.
func (s *Service) decodeDisclosed(view *merkle.FilteredView, myKey contracts.PublicKey) ([]contracts.OracleCommand, *contracts.Rejection) {
	commands := make([]contracts.OracleCommand, 0, len(view.Disclosed))
	for _, leaf := range view.Disclosed {
		if !strings.HasPrefix(leaf.Path, PathOracleCommands+"/") {
			return nil, s.reject(view.Root, ReasonExtraneousLeaf)
		}
		var oc contracts.OracleCommand
		if err := json.Unmarshal(leaf.Content, &oc); err != nil {
			return nil, s.reject(view.Root, ReasonExtraneousLeaf)
		}
		if !oc.HasSigner(myKey) {
			return nil, s.reject(view.Root, ReasonOracleNotNamed)
		}
		commands = append(commands, oc)
	}
	return commands, nil
}

func (s *Service) reject(root, reason string) *contracts.Rejection {
	s.logger.Info("attestation rejected", "root", root, "reason", reason)
	return contracts.NewRejection(contracts.AttestationViolation, reason)
}
