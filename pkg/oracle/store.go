// Package oracle holds the spot-price stores the attestation service reads
// from. Stores are read-mostly; whichever backend serves them, a lookup
// observes one consistent snapshot, never a torn read.
//
// Lookup misses are ErrUnknownSpot. Retry policy on transient backend
// failures belongs to the caller that owns the backend; the core never
// retries.
package oracle

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/clearlane/forwardcore/pkg/canonicalize"
	"github.com/clearlane/forwardcore/pkg/contracts"
)

// ErrUnknownSpot is returned when no price is recorded for the requested
// (instrument, as-of) pair.
var ErrUnknownSpot = errors.New("oracle: unknown instrument/time")

// SpotPriceStore maps (instrument, as-of time) to an attested decimal price.
type SpotPriceStore interface {
	Lookup(ctx context.Context, instrument string, asOf time.Time) (contracts.SpotPrice, error)
}

type spotKey struct {
	instrument string
	asOfNanos  int64
}

func keyFor(instrument string, asOf time.Time) spotKey {
	return spotKey{
		instrument: canonicalize.NFC(instrument),
		asOfNanos:  asOf.UTC().UnixNano(),
	}
}

// MemoryStore keeps the price set in memory behind an atomically swapped
// snapshot. Replace installs a whole new set in one step, so concurrent
// lookups either see the old set or the new one, never a mix.
type MemoryStore struct {
	snapshot atomic.Pointer[map[spotKey]contracts.SpotPrice]
}

// NewMemoryStore builds a store preloaded with the given prices.
func NewMemoryStore(prices ...contracts.SpotPrice) *MemoryStore {
	s := &MemoryStore{}
	s.Replace(prices)
	return s
}

// Replace atomically swaps the entire price set.
func (s *MemoryStore) Replace(prices []contracts.SpotPrice) {
	next := make(map[spotKey]contracts.SpotPrice, len(prices))
	for _, p := range prices {
		next[keyFor(p.Instrument, p.AsOf)] = p
	}
	s.snapshot.Store(&next)
}

// Lookup returns the stored price or ErrUnknownSpot.
func (s *MemoryStore) Lookup(_ context.Context, instrument string, asOf time.Time) (contracts.SpotPrice, error) {
	snap := s.snapshot.Load()
	if snap == nil {
		return contracts.SpotPrice{}, ErrUnknownSpot
	}
	price, ok := (*snap)[keyFor(instrument, asOf)]
	if !ok {
		return contracts.SpotPrice{}, ErrUnknownSpot
	}
	return price, nil
}
