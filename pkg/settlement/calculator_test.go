package settlement

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearlane/forwardcore/pkg/contracts"
)

var (
	seller = contracts.Party{Name: "PartyA", Key: "aa01"}
	buyer  = contracts.Party{Name: "PartyB", Key: "bb02"}
)

func cashRecord(t *testing.T, quantity, deliveryPrice string) contracts.ForwardRecord {
	t.Helper()
	rec, err := contracts.NewForwardRecord(seller, buyer, "X",
		decimal.RequireFromString(quantity), decimal.RequireFromString(deliveryPrice),
		"USD", time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC), contracts.SettleTypeCash)
	require.NoError(t, err)
	return rec
}

func spotFor(rec contracts.ForwardRecord, value string) contracts.SpotPrice {
	return contracts.SpotPrice{
		Instrument: rec.Instrument,
		AsOf:       rec.SettlementAt,
		Value:      decimal.RequireFromString(value),
	}
}

func TestComputeOwedAtPar(t *testing.T) {
	rec := cashRecord(t, "10", "100")

	owed, err := ComputeOwed(rec, spotFor(rec, "100"))
	require.NoError(t, err)

	assert.True(t, owed.IsZero())
	assert.Nil(t, owed.Payer)
	assert.Nil(t, owed.Payee)
}

func TestComputeOwedSpotAboveDelivery(t *testing.T) {
	rec := cashRecord(t, "10", "100")

	// Spot 120: the initiator (seller) owes (120-100)*10 = 200 USD.
	owed, err := ComputeOwed(rec, spotFor(rec, "120"))
	require.NoError(t, err)

	assert.Equal(t, int64(20000), owed.Amount.AmountMinor)
	assert.Equal(t, "USD", owed.Amount.Currency)
	require.NotNil(t, owed.Payer)
	require.NotNil(t, owed.Payee)
	assert.True(t, owed.Payer.Equal(seller))
	assert.True(t, owed.Payee.Equal(buyer))
}

func TestComputeOwedSpotBelowDelivery(t *testing.T) {
	rec := cashRecord(t, "10", "100")

	// Spot 80: the acceptor (buyer) owes (100-80)*10 = 200 USD.
	owed, err := ComputeOwed(rec, spotFor(rec, "80"))
	require.NoError(t, err)

	assert.Equal(t, int64(20000), owed.Amount.AmountMinor)
	assert.True(t, owed.Payer.Equal(buyer))
	assert.True(t, owed.Payee.Equal(seller))
}

func TestComputeOwedTruncatesMinorUnits(t *testing.T) {
	rec := cashRecord(t, "3", "100")

	// (100.0001-100)*3 = 0.0003 → 0.03 cents → truncates to 0, never rounds.
	owed, err := ComputeOwed(rec, spotFor(rec, "100.0001"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), owed.Amount.AmountMinor)

	// (100.555-100)*3 = 1.665 → 166.5 cents → 166, not 167.
	owed, err = ComputeOwed(rec, spotFor(rec, "100.555"))
	require.NoError(t, err)
	assert.Equal(t, int64(166), owed.Amount.AmountMinor)
}

func TestComputeOwedJPYUsesZeroScale(t *testing.T) {
	rec, err := contracts.NewForwardRecord(seller, buyer, "X",
		decimal.NewFromInt(3), decimal.NewFromInt(100), "JPY",
		time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC), contracts.SettleTypeCash)
	require.NoError(t, err)

	owed, err := ComputeOwed(rec, spotFor(rec, "100.9"))
	require.NoError(t, err)
	// 0.9*3 = 2.7 → 2 whole yen after truncation.
	assert.Equal(t, int64(2), owed.Amount.AmountMinor)
}

func TestComputeOwedRejectsMismatches(t *testing.T) {
	rec := cashRecord(t, "10", "100")

	wrongInstrument := spotFor(rec, "120")
	wrongInstrument.Instrument = "Y"
	_, err := ComputeOwed(rec, wrongInstrument)
	assert.Error(t, err)

	wrongTime := spotFor(rec, "120")
	wrongTime.AsOf = rec.SettlementAt.Add(time.Hour)
	_, err = ComputeOwed(rec, wrongTime)
	assert.Error(t, err)

	physical := rec
	physical.SettlementType = contracts.SettleTypePhysical
	_, err = ComputeOwed(physical, spotFor(rec, "120"))
	assert.Error(t, err)
}
