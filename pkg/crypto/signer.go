// Package crypto provides the ed25519 signing and verification primitives
// used by counterparties and the price oracle.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/clearlane/forwardcore/pkg/contracts"
)

// Signer signs transaction roots and attestation payloads.
type Signer interface {
	Sign(data []byte) (string, error)
	PublicKey() contracts.PublicKey
	PublicKeyBytes() []byte
	KeyID() string
}

// Ed25519Signer is the default Signer implementation.
type Ed25519Signer struct {
	privKey ed25519.PrivateKey
	pubKey  ed25519.PublicKey
	keyID   string
}

// NewEd25519Signer generates a fresh keypair.
func NewEd25519Signer(keyID string) (*Ed25519Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("key generation failed: %w", err)
	}
	return &Ed25519Signer{privKey: priv, pubKey: pub, keyID: keyID}, nil
}

// NewEd25519SignerFromKey wraps an existing private key.
func NewEd25519SignerFromKey(priv ed25519.PrivateKey, keyID string) *Ed25519Signer {
	return &Ed25519Signer{
		privKey: priv,
		pubKey:  priv.Public().(ed25519.PublicKey),
		keyID:   keyID,
	}
}

func (s *Ed25519Signer) Sign(data []byte) (string, error) {
	sig := ed25519.Sign(s.privKey, data)
	return hex.EncodeToString(sig), nil
}

func (s *Ed25519Signer) PublicKey() contracts.PublicKey {
	return contracts.PublicKey(hex.EncodeToString(s.pubKey))
}

func (s *Ed25519Signer) PublicKeyBytes() []byte {
	return s.pubKey
}

func (s *Ed25519Signer) KeyID() string {
	return s.keyID
}

// Private exposes the raw private key for the JWS token minter.
func (s *Ed25519Signer) Private() ed25519.PrivateKey {
	return s.privKey
}

// Verify verifies a hex-encoded signature against a hex-encoded public key.
func Verify(pubKey contracts.PublicKey, sigHex string, data []byte) (bool, error) {
	pub, err := hex.DecodeString(string(pubKey))
	if err != nil {
		return false, fmt.Errorf("invalid public key hex: %w", err)
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, fmt.Errorf("invalid signature hex: %w", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return false, fmt.Errorf("invalid public key size")
	}
	return ed25519.Verify(ed25519.PublicKey(pub), data, sig), nil
}
