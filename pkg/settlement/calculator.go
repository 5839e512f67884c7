// Package settlement computes the cash owed when a forward contract settles
// against an oracle-attested spot price.
package settlement

import (
	"fmt"

	"github.com/clearlane/forwardcore/pkg/contracts"
)

// Owed is the outcome of the settlement calculation. When Amount is zero no
// money changes hands and Payer/Payee are nil.
type Owed struct {
	Amount contracts.Money
	Payer  *contracts.Party
	Payee  *contracts.Party
}

// IsZero reports whether nothing is owed.
func (o Owed) IsZero() bool {
	return o.Amount.IsZero()
}

// ComputeOwed compares the record's fixed delivery price against the attested
// spot value:
//
//   - spot == delivery price: nothing is owed.
//   - spot  < delivery price: the acceptor (buyer) owes the initiator
//     (seller) (deliveryPrice − spot) × quantity.
//   - spot  > delivery price: the initiator owes the acceptor
//     (spot − deliveryPrice) × quantity.
//
// The amount is computed in decimal and converted to the settlement
// currency's minor unit by truncation toward zero, not rounding. Truncation
// is a fixed, reproducible rule: every independent validator must apply the
// same conversion for amounts to match.
func ComputeOwed(rec contracts.ForwardRecord, spot contracts.SpotPrice) (Owed, error) {
	if rec.SettlementType != contracts.SettleTypeCash {
		return Owed{}, fmt.Errorf("settlement: record %s is not cash-settled", rec.LinearID)
	}
	if spot.Instrument != rec.Instrument {
		return Owed{}, fmt.Errorf("settlement: spot instrument %q does not match record instrument %q",
			spot.Instrument, rec.Instrument)
	}
	if !spot.AsOf.Equal(rec.SettlementAt) {
		return Owed{}, fmt.Errorf("settlement: spot as-of %s does not match settlement timestamp %s",
			spot.AsOf, rec.SettlementAt)
	}

	cmp := spot.Value.Cmp(rec.DeliveryPrice)
	if cmp == 0 {
		return Owed{Amount: contracts.NewMoney(0, rec.Currency)}, nil
	}

	diff := spot.Value.Sub(rec.DeliveryPrice).Abs()
	scale := contracts.ScaleFor(rec.Currency)
	// Shift into minor units, then truncate. IntPart discards the fraction
	// toward zero, which is exactly the documented conversion rule.
	minor := diff.Mul(rec.Quantity).Shift(int32(scale)).IntPart()

	owed := Owed{Amount: contracts.NewMoney(minor, rec.Currency)}
	initiator, acceptor := rec.Initiator, rec.Acceptor
	if cmp < 0 {
		// Spot below delivery price: the buyer pays the difference.
		owed.Payer, owed.Payee = &acceptor, &initiator
	} else {
		// Spot above delivery price: the seller pays the difference.
		owed.Payer, owed.Payee = &initiator, &acceptor
	}
	return owed, nil
}
