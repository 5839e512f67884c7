package contracts

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clearlane/forwardcore/pkg/canonicalize"
)

// SettlementType is the agreed settlement mechanism for a forward.
type SettlementType string

const (
	// SettleTypeCash settles the price difference against an attested spot.
	SettleTypeCash SettlementType = "cash"
	// SettleTypePhysical settles by delivery of the underlying instrument.
	SettleTypePhysical SettlementType = "physical"
)

// Valid reports whether t is a member of the closed settlement-type set.
func (t SettlementType) Valid() bool {
	return t == SettleTypeCash || t == SettleTypePhysical
}

// ForwardRecord is the versioned state of one forward contract. Successive
// versions of the same logical contract share a LinearID so they can be
// correlated across transactions.
//
// Records are immutable values: lifecycle transitions produce a new record
// via WithPaid, never mutate one in place.
type ForwardRecord struct {
	LinearID       uuid.UUID       `json:"linear_id"`
	Initiator      Party           `json:"initiator"`
	Acceptor       Party           `json:"acceptor"`
	Instrument     string          `json:"instrument"`
	Quantity       decimal.Decimal `json:"quantity"`
	DeliveryPrice  decimal.Decimal `json:"delivery_price"`
	Currency       string          `json:"currency"`
	SettlementAt   time.Time       `json:"settlement_at"`
	SettlementType SettlementType  `json:"settlement_type"`
	// PaidMinor is the amount already settled, in Currency minor units.
	PaidMinor int64 `json:"paid_minor"`
}

// NewForwardRecord constructs a freshly issued record and enforces the
// creation invariants: distinct counterparties, strictly positive price and
// quantity, a valid settlement type.
func NewForwardRecord(initiator, acceptor Party, instrument string, quantity, deliveryPrice decimal.Decimal,
	currency string, settlementAt time.Time, settlementType SettlementType) (ForwardRecord, error) {

	if initiator.Equal(acceptor) {
		return ForwardRecord{}, fmt.Errorf("initiator and acceptor cannot be the same entity")
	}
	if !deliveryPrice.IsPositive() {
		return ForwardRecord{}, fmt.Errorf("delivery price must be positive, got %s", deliveryPrice)
	}
	if !quantity.IsPositive() {
		return ForwardRecord{}, fmt.Errorf("quantity must be positive, got %s", quantity)
	}
	if currency == "" {
		return ForwardRecord{}, fmt.Errorf("currency is required")
	}
	if !settlementType.Valid() {
		return ForwardRecord{}, fmt.Errorf("unknown settlement type %q", settlementType)
	}

	return ForwardRecord{
		LinearID:       uuid.New(),
		Initiator:      initiator,
		Acceptor:       acceptor,
		Instrument:     canonicalize.NFC(instrument),
		Quantity:       quantity,
		DeliveryPrice:  deliveryPrice,
		Currency:       currency,
		SettlementAt:   settlementAt.UTC(),
		SettlementType: settlementType,
	}, nil
}

// WithPaid returns a copy of the record with PaidMinor set. All other fields,
// including the settlement timestamp, are carried over unchanged.
func (r ForwardRecord) WithPaid(paidMinor int64) ForwardRecord {
	next := r
	next.PaidMinor = paidMinor
	return next
}

// MaturedAt reports whether the record has reached its settlement timestamp.
func (r ForwardRecord) MaturedAt(now time.Time) bool {
	return !now.Before(r.SettlementAt)
}

// Participants returns the two counterparties.
func (r ForwardRecord) Participants() []Party {
	return []Party{r.Initiator, r.Acceptor}
}

// TermsEqual reports whether two versions of a record agree on every field
// except the paid amount. Settlement transitions may only ever move PaidMinor.
func (r ForwardRecord) TermsEqual(other ForwardRecord) bool {
	return r.LinearID == other.LinearID &&
		r.Initiator.Equal(other.Initiator) &&
		r.Acceptor.Equal(other.Acceptor) &&
		r.Instrument == other.Instrument &&
		r.Quantity.Equal(other.Quantity) &&
		r.DeliveryPrice.Equal(other.DeliveryPrice) &&
		r.Currency == other.Currency &&
		r.SettlementAt.Equal(other.SettlementAt) &&
		r.SettlementType == other.SettlementType
}
