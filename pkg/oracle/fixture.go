package oracle

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/clearlane/forwardcore/pkg/contracts"
)

// KnownSpots returns a small demo price set pinned to the given as-of time.
// Used by local setups and tests that need a populated store.
func KnownSpots(asOf time.Time) []contracts.SpotPrice {
	return []contracts.SpotPrice{
		{Instrument: "Robusta Coffee", AsOf: asOf, Value: decimal.RequireFromString("1.17")},
		{Instrument: "Arabica Coffee", AsOf: asOf, Value: decimal.RequireFromString("2.48")},
		{Instrument: "Brent Crude", AsOf: asOf, Value: decimal.RequireFromString("74.30")},
	}
}
