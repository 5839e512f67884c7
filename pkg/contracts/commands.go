package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommandTag identifies the declared intent of a transaction. The set is a
// closed enumeration; anything else is a protocol error, not a business
// rejection.
type CommandTag string

const (
	CmdCreate         CommandTag = "CREATE"
	CmdSettle         CommandTag = "SETTLE"
	CmdSettleCash     CommandTag = "SETTLE_CASH"
	CmdSettlePhysical CommandTag = "SETTLE_PHYSICAL"
)

// Known reports whether the tag is a member of the closed command set.
func (t CommandTag) Known() bool {
	switch t {
	case CmdCreate, CmdSettle, CmdSettleCash, CmdSettlePhysical:
		return true
	}
	return false
}

// Command is a tagged intent plus the public keys required to co-sign it.
type Command struct {
	Tag     CommandTag  `json:"tag"`
	Signers []PublicKey `json:"signers"`
}

// HasSigner reports whether key appears in the command's required-signer set.
func (c Command) HasSigner(key PublicKey) bool {
	for _, s := range c.Signers {
		if s == key {
			return true
		}
	}
	return false
}

// SpotPrice is an oracle-attested market price for an instrument at a point
// in time. Queries and responses are matched on both instrument and
// timestamp. The decimal value serializes as a string so precision is never
// lost before the settlement calculator's own truncation step.
type SpotPrice struct {
	Instrument string          `json:"instrument"`
	AsOf       time.Time       `json:"as_of"`
	Value      decimal.Decimal `json:"value"`
}

// Equal reports exact price identity: same instrument, same instant, same
// decimal value. The oracle applies no tolerance band.
func (s SpotPrice) Equal(other SpotPrice) bool {
	return s.Instrument == other.Instrument &&
		s.AsOf.Equal(other.AsOf) &&
		s.Value.Equal(other.Value)
}

// OracleCommand wraps the spot price the oracle is asked to counter-sign.
// It must never appear without the oracle's key in its signer set.
type OracleCommand struct {
	Spot    SpotPrice   `json:"spot"`
	Signers []PublicKey `json:"signers"`
}

// HasSigner reports whether key appears in the oracle command's signer set.
func (c OracleCommand) HasSigner(key PublicKey) bool {
	for _, s := range c.Signers {
		if s == key {
			return true
		}
	}
	return false
}
