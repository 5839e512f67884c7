package validator

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearlane/forwardcore/pkg/contracts"
)

var (
	p1 = contracts.Party{Name: "PartyA", Key: "aa01"}
	p2 = contracts.Party{Name: "PartyB", Key: "bb02"}

	oracleKey = contracts.PublicKey("0c0c")

	// maturity is the settlement timestamp used throughout.
	maturity = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	beforeMaturity = maturity.Add(-24 * time.Hour)
	atMaturity     = maturity
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func newValidator(now time.Time, opts ...Option) *Validator {
	return New(append([]Option{WithClock(fixedClock(now))}, opts...)...)
}

func forward(t *testing.T, st contracts.SettlementType) contracts.ForwardRecord {
	t.Helper()
	rec, err := contracts.NewForwardRecord(p1, p2, "X",
		decimal.NewFromInt(10), decimal.NewFromInt(100), "USD", maturity, st)
	require.NoError(t, err)
	return rec
}

func bothSigners() []contracts.PublicKey {
	return []contracts.PublicKey{p1.Key, p2.Key}
}

func spotCommand(rec contracts.ForwardRecord, value string) contracts.OracleCommand {
	return contracts.OracleCommand{
		Spot: contracts.SpotPrice{
			Instrument: rec.Instrument,
			AsOf:       rec.SettlementAt,
			Value:      decimal.RequireFromString(value),
		},
		Signers: []contracts.PublicKey{oracleKey},
	}
}

// --- Create ---

func createProposal(rec contracts.ForwardRecord) *contracts.Proposal {
	return &contracts.Proposal{Outputs: []contracts.ForwardRecord{rec}}
}

func TestCreateAccepted(t *testing.T) {
	v := newValidator(beforeMaturity)
	rec := forward(t, contracts.SettleTypeCash)

	verdict := v.Validate(context.Background(), createProposal(rec),
		contracts.Command{Tag: contracts.CmdCreate, Signers: bothSigners()})

	assert.True(t, verdict.Accepted)
	assert.Nil(t, verdict.Rejection())
}

func TestCreateFlippedConditionsReject(t *testing.T) {
	rec := forward(t, contracts.SettleTypeCash)

	zeroPrice := rec
	zeroPrice.DeliveryPrice = decimal.Zero
	zeroQty := rec
	zeroQty.Quantity = decimal.Zero
	selfDeal := rec
	selfDeal.Acceptor = p1

	cases := []struct {
		name    string
		p       *contracts.Proposal
		signers []contracts.PublicKey
		class   contracts.ViolationClass
		reason  string
	}{
		{
			name:    "consumes an input",
			p:       &contracts.Proposal{Inputs: []contracts.ForwardRecord{rec}, Outputs: []contracts.ForwardRecord{rec}},
			signers: bothSigners(),
			class:   contracts.ShapeViolation,
			reason:  ReasonCreateHasInputs,
		},
		{
			name:    "two outputs",
			p:       &contracts.Proposal{Outputs: []contracts.ForwardRecord{rec, rec}},
			signers: bothSigners(),
			class:   contracts.ShapeViolation,
			reason:  ReasonCreateOneOutput,
		},
		{
			name:    "zero outputs",
			p:       &contracts.Proposal{},
			signers: bothSigners(),
			class:   contracts.ShapeViolation,
			reason:  ReasonCreateOneOutput,
		},
		{
			name:    "non-positive price",
			p:       createProposal(zeroPrice),
			signers: bothSigners(),
			class:   contracts.InvariantViolation,
			reason:  ReasonPriceNotPositive,
		},
		{
			name:    "non-positive quantity",
			p:       createProposal(zeroQty),
			signers: bothSigners(),
			class:   contracts.InvariantViolation,
			reason:  ReasonQtyNotPositive,
		},
		{
			name:    "same counterparty",
			p:       createProposal(selfDeal),
			signers: []contracts.PublicKey{p1.Key, p2.Key},
			class:   contracts.InvariantViolation,
			reason:  ReasonSameCounterparty,
		},
		{
			name:    "missing acceptor signer",
			p:       createProposal(rec),
			signers: []contracts.PublicKey{p1.Key},
			class:   contracts.AuthorizationViolation,
			reason:  ReasonCreateSignerSet,
		},
		{
			name:    "extra signer",
			p:       createProposal(rec),
			signers: []contracts.PublicKey{p1.Key, p2.Key, "ee05"},
			class:   contracts.AuthorizationViolation,
			reason:  ReasonCreateSignerSet,
		},
		{
			name:    "duplicated single signer",
			p:       createProposal(rec),
			signers: []contracts.PublicKey{p1.Key, p1.Key},
			class:   contracts.AuthorizationViolation,
			reason:  ReasonCreateSignerSet,
		},
	}

	v := newValidator(beforeMaturity)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verdict := v.Validate(context.Background(), tc.p,
				contracts.Command{Tag: contracts.CmdCreate, Signers: tc.signers})
			require.False(t, verdict.Accepted)
			assert.Equal(t, tc.class, verdict.Class)
			assert.Equal(t, tc.reason, verdict.Reason)
		})
	}
}

func TestCreateMaturityPolicy(t *testing.T) {
	rec := forward(t, contracts.SettleTypeCash)
	cmd := contracts.Command{Tag: contracts.CmdCreate, Signers: bothSigners()}

	// Validation time past the settlement timestamp: rejected by default.
	v := newValidator(maturity.Add(time.Hour))
	verdict := v.Validate(context.Background(), createProposal(rec), cmd)
	require.False(t, verdict.Accepted)
	assert.Equal(t, ReasonMaturityNotAhead, verdict.Reason)

	// A policy without the future-maturity requirement accepts it.
	relaxed := newValidator(maturity.Add(time.Hour), WithPolicy(Policy{}))
	verdict = relaxed.Validate(context.Background(), createProposal(rec), cmd)
	assert.True(t, verdict.Accepted)
}

// --- Settle (generic) ---

func TestSettleGeneric(t *testing.T) {
	rec := forward(t, contracts.SettleTypeCash)
	p := &contracts.Proposal{
		Inputs:  []contracts.ForwardRecord{rec},
		Outputs: []contracts.ForwardRecord{rec.WithPaid(1)},
	}
	cmd := contracts.Command{Tag: contracts.CmdSettle, Signers: bothSigners()}

	verdict := newValidator(atMaturity).Validate(context.Background(), p, cmd)
	assert.True(t, verdict.Accepted)

	// Premature settlement always rejects regardless of other fields.
	verdict = newValidator(beforeMaturity).Validate(context.Background(), p, cmd)
	require.False(t, verdict.Accepted)
	assert.Equal(t, contracts.InvariantViolation, verdict.Class)
	assert.Equal(t, ReasonNotMatured, verdict.Reason)

	// The output must continue the same logical contract.
	other := forward(t, contracts.SettleTypeCash)
	broken := &contracts.Proposal{
		Inputs:  []contracts.ForwardRecord{rec},
		Outputs: []contracts.ForwardRecord{other},
	}
	verdict = newValidator(atMaturity).Validate(context.Background(), broken, cmd)
	require.False(t, verdict.Accepted)
	assert.Equal(t, ReasonIdentifierMismatch, verdict.Reason)

	// Missing a counterparty signer.
	short := contracts.Command{Tag: contracts.CmdSettle, Signers: []contracts.PublicKey{p1.Key}}
	verdict = newValidator(atMaturity).Validate(context.Background(), p, short)
	require.False(t, verdict.Accepted)
	assert.Equal(t, contracts.AuthorizationViolation, verdict.Class)
}

// --- SettlePhysical ---

func TestSettlePhysical(t *testing.T) {
	rec := forward(t, contracts.SettleTypePhysical)
	cmd := contracts.Command{Tag: contracts.CmdSettlePhysical, Signers: bothSigners()}

	full := &contracts.Proposal{Inputs: []contracts.ForwardRecord{rec}}
	verdict := newValidator(atMaturity).Validate(context.Background(), full, cmd)
	assert.True(t, verdict.Accepted)

	// A residual output is a shape violation: physical settlement must
	// extinguish the record.
	residual := &contracts.Proposal{
		Inputs:  []contracts.ForwardRecord{rec},
		Outputs: []contracts.ForwardRecord{rec},
	}
	verdict = newValidator(atMaturity).Validate(context.Background(), residual, cmd)
	require.False(t, verdict.Accepted)
	assert.Equal(t, contracts.ShapeViolation, verdict.Class)
	assert.Equal(t, ReasonPhysicalResidual, verdict.Reason)

	// Maturity gate.
	verdict = newValidator(beforeMaturity).Validate(context.Background(), full, cmd)
	require.False(t, verdict.Accepted)
	assert.Equal(t, ReasonNotMatured, verdict.Reason)

	// A cash record cannot be settled physically.
	cash := forward(t, contracts.SettleTypeCash)
	wrongType := &contracts.Proposal{Inputs: []contracts.ForwardRecord{cash}}
	verdict = newValidator(atMaturity).Validate(context.Background(), wrongType, cmd)
	require.False(t, verdict.Accepted)
	assert.Equal(t, ReasonNotPhysicalType, verdict.Reason)
}

// --- SettleCash ---

// fullCashSettlement pays out the entire amount owed at spot 120 against a
// delivery price of 100 over quantity 10: the initiator owes 200.00 USD.
func fullCashSettlement(rec contracts.ForwardRecord) *contracts.Proposal {
	return &contracts.Proposal{
		Inputs:         []contracts.ForwardRecord{rec},
		OracleCommands: []contracts.OracleCommand{spotCommand(rec, "120")},
		CashMovements: []contracts.CashMovement{
			{From: p1.Key, To: p2.Key, Amount: contracts.NewMoney(20000, "USD")},
		},
	}
}

func cashCmd() contracts.Command {
	return contracts.Command{Tag: contracts.CmdSettleCash, Signers: bothSigners()}
}

func TestSettleCashFullExtinguishment(t *testing.T) {
	rec := forward(t, contracts.SettleTypeCash)
	v := newValidator(atMaturity, WithOracleKey(oracleKey))

	verdict := v.Validate(context.Background(), fullCashSettlement(rec), cashCmd())
	assert.True(t, verdict.Accepted, "got %s", verdict)
}

func TestSettleCashBeforeMaturity(t *testing.T) {
	rec := forward(t, contracts.SettleTypeCash)
	v := newValidator(beforeMaturity, WithOracleKey(oracleKey))

	verdict := v.Validate(context.Background(), fullCashSettlement(rec), cashCmd())
	require.False(t, verdict.Accepted)
	assert.Equal(t, contracts.InvariantViolation, verdict.Class)
	assert.Equal(t, ReasonNotMatured, verdict.Reason)
}

func TestSettleCashPartial(t *testing.T) {
	rec := forward(t, contracts.SettleTypeCash)
	v := newValidator(atMaturity, WithOracleKey(oracleKey))

	partial := fullCashSettlement(rec)
	partial.Outputs = []contracts.ForwardRecord{rec.WithPaid(10000)}
	partial.CashMovements = []contracts.CashMovement{
		{From: p1.Key, To: p2.Key, Amount: contracts.NewMoney(10000, "USD")},
	}

	verdict := v.Validate(context.Background(), partial, cashCmd())
	assert.True(t, verdict.Accepted, "got %s", verdict)
}

func TestSettleCashRejections(t *testing.T) {
	rec := forward(t, contracts.SettleTypeCash)

	repriced := rec.WithPaid(10000)
	repriced.DeliveryPrice = decimal.NewFromInt(90)

	cases := []struct {
		name   string
		mutate func(*contracts.Proposal)
		class  contracts.ViolationClass
		reason string
	}{
		{
			name:   "no oracle command",
			mutate: func(p *contracts.Proposal) { p.OracleCommands = nil },
			class:  contracts.AttestationViolation,
			reason: ReasonOracleCommandRequired,
		},
		{
			name: "duplicate oracle commands",
			mutate: func(p *contracts.Proposal) {
				p.OracleCommands = append(p.OracleCommands, p.OracleCommands[0])
			},
			class:  contracts.AttestationViolation,
			reason: ReasonOracleCommandRequired,
		},
		{
			name: "oracle not a signer of the price command",
			mutate: func(p *contracts.Proposal) {
				p.OracleCommands[0].Signers = []contracts.PublicKey{p1.Key}
			},
			class:  contracts.AuthorizationViolation,
			reason: ReasonOracleNotSigner,
		},
		{
			name: "final payment short",
			mutate: func(p *contracts.Proposal) {
				p.CashMovements[0].Amount = contracts.NewMoney(19999, "USD")
			},
			class:  contracts.InvariantViolation,
			reason: ReasonFinalPaymentMismatch,
		},
		{
			name: "partial with terms changed",
			mutate: func(p *contracts.Proposal) {
				p.Outputs = []contracts.ForwardRecord{repriced}
				p.CashMovements[0].Amount = contracts.NewMoney(10000, "USD")
			},
			class:  contracts.InvariantViolation,
			reason: ReasonTermsChanged,
		},
		{
			name: "partial paid delta does not match transfer",
			mutate: func(p *contracts.Proposal) {
				p.Outputs = []contracts.ForwardRecord{rec.WithPaid(10000)}
				p.CashMovements[0].Amount = contracts.NewMoney(5000, "USD")
			},
			class:  contracts.InvariantViolation,
			reason: ReasonPaidDeltaMismatch,
		},
		{
			name: "fully paid residual record",
			mutate: func(p *contracts.Proposal) {
				p.Outputs = []contracts.ForwardRecord{rec.WithPaid(20000)}
			},
			class:  contracts.InvariantViolation,
			reason: ReasonFullSettlementLeaves,
		},
		{
			name: "paid exceeds owed",
			mutate: func(p *contracts.Proposal) {
				p.Outputs = []contracts.ForwardRecord{rec.WithPaid(25000)}
				p.CashMovements[0].Amount = contracts.NewMoney(25000, "USD")
			},
			class:  contracts.InvariantViolation,
			reason: ReasonPaidExceedsOwed,
		},
		{
			name: "paid not increased",
			mutate: func(p *contracts.Proposal) {
				p.Outputs = []contracts.ForwardRecord{rec}
				p.CashMovements = nil
			},
			class:  contracts.InvariantViolation,
			reason: ReasonPaidMustIncrease,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := newValidator(atMaturity, WithOracleKey(oracleKey))
			p := fullCashSettlement(rec)
			tc.mutate(p)

			verdict := v.Validate(context.Background(), p, cashCmd())
			require.False(t, verdict.Accepted)
			assert.Equal(t, tc.class, verdict.Class)
			assert.Equal(t, tc.reason, verdict.Reason)
		})
	}
}

func TestSettleCashAtParNeedsNoPayment(t *testing.T) {
	rec := forward(t, contracts.SettleTypeCash)
	v := newValidator(atMaturity, WithOracleKey(oracleKey))

	p := &contracts.Proposal{
		Inputs:         []contracts.ForwardRecord{rec},
		OracleCommands: []contracts.OracleCommand{spotCommand(rec, "100")},
	}
	verdict := v.Validate(context.Background(), p, cashCmd())
	assert.True(t, verdict.Accepted, "got %s", verdict)
}

func TestSettleCashFullExtinguishmentOnlyPolicy(t *testing.T) {
	rec := forward(t, contracts.SettleTypeCash)
	v := newValidator(atMaturity,
		WithOracleKey(oracleKey),
		WithPolicy(Policy{FullExtinguishmentOnly: true}))

	partial := fullCashSettlement(rec)
	partial.Outputs = []contracts.ForwardRecord{rec.WithPaid(10000)}
	partial.CashMovements = []contracts.CashMovement{
		{From: p1.Key, To: p2.Key, Amount: contracts.NewMoney(10000, "USD")},
	}

	verdict := v.Validate(context.Background(), partial, cashCmd())
	require.False(t, verdict.Accepted)
	assert.Equal(t, contracts.ShapeViolation, verdict.Class)
	assert.Equal(t, ReasonPartialDisallowed, verdict.Reason)

	// Full extinguishment still works under the stricter policy.
	verdict = v.Validate(context.Background(), fullCashSettlement(rec), cashCmd())
	assert.True(t, verdict.Accepted)
}

// --- Protocol ---

func TestNilProposalRejects(t *testing.T) {
	v := newValidator(atMaturity, WithOracleKey(oracleKey))

	tags := []contracts.CommandTag{
		contracts.CmdCreate,
		contracts.CmdSettle,
		contracts.CmdSettleCash,
		contracts.CmdSettlePhysical,
		contracts.CommandTag("NOVATE"),
	}
	for _, tag := range tags {
		verdict := v.Validate(context.Background(), nil,
			contracts.Command{Tag: tag, Signers: bothSigners()})
		require.False(t, verdict.Accepted, "tag %s", tag)
		assert.Equal(t, contracts.ShapeViolation, verdict.Class, "tag %s", tag)
		assert.Equal(t, ReasonNoProposal, verdict.Reason, "tag %s", tag)
	}
}

func TestUnrecognizedCommand(t *testing.T) {
	v := newValidator(atMaturity)
	verdict := v.Validate(context.Background(), &contracts.Proposal{},
		contracts.Command{Tag: contracts.CommandTag("NOVATE")})

	require.False(t, verdict.Accepted)
	assert.Equal(t, contracts.UnrecognizedCommand, verdict.Class)
	assert.Equal(t, ReasonUnknownCommand, verdict.Reason)
}

func TestVerdictIsDeterministic(t *testing.T) {
	rec := forward(t, contracts.SettleTypeCash)
	v := newValidator(beforeMaturity, WithOracleKey(oracleKey))
	p := fullCashSettlement(rec)
	cmd := cashCmd()

	first := v.Validate(context.Background(), p, cmd)
	second := v.Validate(context.Background(), p, cmd)
	assert.Equal(t, first, second)
}

func TestValidateNeverMutatesTheProposal(t *testing.T) {
	rec := forward(t, contracts.SettleTypeCash)
	p := fullCashSettlement(rec)
	inputID := p.Inputs[0].LinearID

	_ = newValidator(atMaturity, WithOracleKey(oracleKey)).
		Validate(context.Background(), p, cashCmd())

	assert.Equal(t, inputID, p.Inputs[0].LinearID)
	assert.Len(t, p.CashMovements, 1)
}
