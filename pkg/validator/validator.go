// Package validator implements the forward-contract rule engine: a pure,
// deterministic decision over a proposed transaction and its declared
// command. Each command dispatches to a conjunction of named predicates, all
// of which must hold; the first failing predicate's reason becomes the
// rejection reason.
//
// The validator holds no mutable state across calls and never blocks on
// network or disk, so it is safe to run on a parallel worker pool. Every node
// validating the same proposal must reach the same verdict.
package validator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/clearlane/forwardcore/pkg/contracts"
	"github.com/clearlane/forwardcore/pkg/settlement"
)

// Policy holds the rule-set switches the source history left open. Both
// settings change which proposals are accepted, never how an accepted
// proposal is interpreted.
type Policy struct {
	// RequireFutureMaturity rejects creations whose settlement timestamp is
	// not strictly ahead of validation time.
	RequireFutureMaturity bool
	// FullExtinguishmentOnly disables the partial cash-settlement path: any
	// SettleCash leaving a residual record is rejected.
	FullExtinguishmentOnly bool
}

// DefaultPolicy enables the future-maturity check and keeps partial cash
// settlement available.
func DefaultPolicy() Policy {
	return Policy{RequireFutureMaturity: true}
}

// Validator judges transaction proposals. Construct with New.
type Validator struct {
	policy    Policy
	clock     func() time.Time
	oracleKey contracts.PublicKey
	tracer    trace.Tracer
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock injects the time source used by the maturity gates.
func WithClock(clock func() time.Time) Option {
	return func(v *Validator) { v.clock = clock }
}

// WithPolicy overrides the default policy.
func WithPolicy(p Policy) Option {
	return func(v *Validator) { v.policy = p }
}

// WithOracleKey pins the trusted oracle identity. When set, cash settlements
// must name exactly this key on their price command.
func WithOracleKey(key contracts.PublicKey) Option {
	return func(v *Validator) { v.oracleKey = key }
}

// New constructs a Validator.
func New(opts ...Option) *Validator {
	v := &Validator{
		policy: DefaultPolicy(),
		clock:  time.Now,
		tracer: otel.Tracer("forwardcore/validator"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate decides whether the proposal legally performs the command. It is
// side-effect free; the context is used only for tracing.
func (v *Validator) Validate(ctx context.Context, p *contracts.Proposal, cmd contracts.Command) Verdict {
	_, span := v.tracer.Start(ctx, "validator.Validate",
		trace.WithAttributes(attribute.String("command.tag", string(cmd.Tag))))
	defer span.End()

	verdict := v.dispatch(p, cmd)
	span.SetAttributes(attribute.Bool("verdict.accepted", verdict.Accepted))
	if !verdict.Accepted {
		span.SetAttributes(
			attribute.String("verdict.class", string(verdict.Class)),
			attribute.String("verdict.reason", verdict.Reason),
		)
	}
	return verdict
}

func (v *Validator) dispatch(p *contracts.Proposal, cmd contracts.Command) Verdict {
	// A nil proposal is malformed but well-typed input; it must reject like
	// any other shape failure, never panic.
	if p == nil {
		return Reject(contracts.ShapeViolation, ReasonNoProposal)
	}
	switch cmd.Tag {
	case contracts.CmdCreate:
		return v.validateCreate(p, cmd)
	case contracts.CmdSettle:
		return v.validateSettle(p, cmd)
	case contracts.CmdSettleCash:
		return v.validateSettleCash(p, cmd)
	case contracts.CmdSettlePhysical:
		return v.validateSettlePhysical(p, cmd)
	default:
		return Reject(contracts.UnrecognizedCommand, ReasonUnknownCommand)
	}
}

func (v *Validator) validateCreate(p *contracts.Proposal, cmd contracts.Command) Verdict {
	if len(p.Inputs) != 0 {
		return Reject(contracts.ShapeViolation, ReasonCreateHasInputs)
	}
	if len(p.Outputs) != 1 {
		return Reject(contracts.ShapeViolation, ReasonCreateOneOutput)
	}
	out := p.Outputs[0]
	if !out.DeliveryPrice.IsPositive() {
		return Reject(contracts.InvariantViolation, ReasonPriceNotPositive)
	}
	if !out.Quantity.IsPositive() {
		return Reject(contracts.InvariantViolation, ReasonQtyNotPositive)
	}
	if out.Initiator.Equal(out.Acceptor) {
		return Reject(contracts.InvariantViolation, ReasonSameCounterparty)
	}
	if !signerSetEquals(cmd.Signers, out.Initiator.Key, out.Acceptor.Key) {
		return Reject(contracts.AuthorizationViolation, ReasonCreateSignerSet)
	}
	if v.policy.RequireFutureMaturity && !out.SettlementAt.After(v.clock()) {
		return Reject(contracts.InvariantViolation, ReasonMaturityNotAhead)
	}
	return Accept()
}

// validateSettle is the generic two-state replace: one record in, one record
// out, nothing else touched. The tighter cash and physical commands carry the
// full rule sets.
func (v *Validator) validateSettle(p *contracts.Proposal, cmd contracts.Command) Verdict {
	if len(p.Inputs) != 1 {
		return Reject(contracts.ShapeViolation, ReasonOneInput)
	}
	if len(p.Outputs) != 1 {
		return Reject(contracts.ShapeViolation, ReasonOneOutput)
	}
	in, out := p.Inputs[0], p.Outputs[0]
	if !in.MaturedAt(v.clock()) {
		return Reject(contracts.InvariantViolation, ReasonNotMatured)
	}
	if out.LinearID != in.LinearID {
		return Reject(contracts.InvariantViolation, ReasonIdentifierMismatch)
	}
	if !signersCover(cmd.Signers, in.Initiator.Key, in.Acceptor.Key) {
		return Reject(contracts.AuthorizationViolation, ReasonCounterpartySigners)
	}
	return Accept()
}

func (v *Validator) validateSettlePhysical(p *contracts.Proposal, cmd contracts.Command) Verdict {
	if len(p.Inputs) != 1 {
		return Reject(contracts.ShapeViolation, ReasonOneInput)
	}
	if len(p.Outputs) != 0 {
		return Reject(contracts.ShapeViolation, ReasonPhysicalResidual)
	}
	in := p.Inputs[0]
	if in.SettlementType != contracts.SettleTypePhysical {
		return Reject(contracts.InvariantViolation, ReasonNotPhysicalType)
	}
	if !in.MaturedAt(v.clock()) {
		return Reject(contracts.InvariantViolation, ReasonNotMatured)
	}
	if !signersCover(cmd.Signers, in.Initiator.Key, in.Acceptor.Key) {
		return Reject(contracts.AuthorizationViolation, ReasonCounterpartySigners)
	}
	return Accept()
}

func (v *Validator) validateSettleCash(p *contracts.Proposal, cmd contracts.Command) Verdict {
	if len(p.Inputs) != 1 {
		return Reject(contracts.ShapeViolation, ReasonOneInput)
	}
	if len(p.Outputs) > 1 {
		return Reject(contracts.ShapeViolation, ReasonAtMostOneOutput)
	}
	in := p.Inputs[0]
	if in.SettlementType != contracts.SettleTypeCash {
		return Reject(contracts.InvariantViolation, ReasonNotCashType)
	}
	if !in.MaturedAt(v.clock()) {
		return Reject(contracts.InvariantViolation, ReasonNotMatured)
	}

	oc, ok := singleOracleCommand(p, in)
	if !ok {
		return Reject(contracts.AttestationViolation, ReasonOracleCommandRequired)
	}
	if v.oracleKey != "" && !oc.HasSigner(v.oracleKey) {
		return Reject(contracts.AuthorizationViolation, ReasonOracleNotSigner)
	}
	if v.oracleKey == "" && len(oc.Signers) == 0 {
		return Reject(contracts.AuthorizationViolation, ReasonOracleNotSigner)
	}

	owed, err := settlement.ComputeOwed(in, oc.Spot)
	if err != nil {
		return Reject(contracts.InvariantViolation, ReasonCalcFailed)
	}

	var transferred int64
	if owed.Payee != nil {
		transferred = p.TransferredTo(owed.Payee.Key, in.Currency)
	}

	switch len(p.Outputs) {
	case 1:
		if v.policy.FullExtinguishmentOnly {
			return Reject(contracts.ShapeViolation, ReasonPartialDisallowed)
		}
		out := p.Outputs[0]
		if out.LinearID != in.LinearID {
			return Reject(contracts.InvariantViolation, ReasonIdentifierMismatch)
		}
		if !in.TermsEqual(out) {
			return Reject(contracts.InvariantViolation, ReasonTermsChanged)
		}
		delta := out.PaidMinor - in.PaidMinor
		if delta <= 0 {
			return Reject(contracts.InvariantViolation, ReasonPaidMustIncrease)
		}
		if delta != transferred {
			return Reject(contracts.InvariantViolation, ReasonPaidDeltaMismatch)
		}
		if out.PaidMinor > owed.Amount.AmountMinor {
			return Reject(contracts.InvariantViolation, ReasonPaidExceedsOwed)
		}
		if out.PaidMinor == owed.Amount.AmountMinor {
			// Equality triggers full settlement, which must extinguish.
			return Reject(contracts.InvariantViolation, ReasonFullSettlementLeaves)
		}
	case 0:
		if in.PaidMinor+transferred != owed.Amount.AmountMinor {
			return Reject(contracts.InvariantViolation, ReasonFinalPaymentMismatch)
		}
	}

	if !signersCover(cmd.Signers, in.Initiator.Key, in.Acceptor.Key) {
		return Reject(contracts.AuthorizationViolation, ReasonCounterpartySigners)
	}
	return Accept()
}

// singleOracleCommand returns the proposal's price command for the consumed
// record, requiring exactly one matched on instrument and as-of time.
func singleOracleCommand(p *contracts.Proposal, in contracts.ForwardRecord) (contracts.OracleCommand, bool) {
	var found contracts.OracleCommand
	var count int
	for _, oc := range p.OracleCommands {
		if oc.Spot.Instrument == in.Instrument && oc.Spot.AsOf.Equal(in.SettlementAt) {
			found = oc
			count++
		}
	}
	return found, count == 1
}

// signerSetEquals reports whether the signer list, viewed as a set, is
// exactly {a, b}.
func signerSetEquals(signers []contracts.PublicKey, a, b contracts.PublicKey) bool {
	set := make(map[contracts.PublicKey]struct{}, len(signers))
	for _, s := range signers {
		set[s] = struct{}{}
	}
	if len(set) != 2 {
		return false
	}
	_, hasA := set[a]
	_, hasB := set[b]
	return hasA && hasB
}

// signersCover reports whether every given key appears in the signer list.
func signersCover(signers []contracts.PublicKey, keys ...contracts.PublicKey) bool {
	set := make(map[contracts.PublicKey]struct{}, len(signers))
	for _, s := range signers {
		set[s] = struct{}{}
	}
	for _, k := range keys {
		if _, ok := set[k]; !ok {
			return false
		}
	}
	return true
}
