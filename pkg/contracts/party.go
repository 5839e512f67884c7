// Package contracts defines the data model for the forward-contract core:
// parties, the versioned ForwardRecord, the command set, spot prices and the
// transaction proposal judged by the validator.
//
// Everything in this package is a plain immutable value. The core never
// mutates a proposal it is handed; it only judges it.
package contracts

// PublicKey is a hex-encoded ed25519 public key. Identities are treated as
// opaque comparable values plus their associated key.
type PublicKey string

// Party is one counterparty to a forward agreement.
type Party struct {
	Name string    `json:"name"`
	Key  PublicKey `json:"key"`
}

// Equal reports whether two parties are the same identity.
func (p Party) Equal(other Party) bool {
	return p.Name == other.Name && p.Key == other.Key
}
