package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DeriveSigner deterministically derives an ed25519 signer from a master
// seed and a key identifier via HKDF-SHA256. The same (seed, keyID) pair
// always yields the same keypair, so a service restarted with the same
// configuration keeps its identity.
func DeriveSigner(seed []byte, keyID string) (*Ed25519Signer, error) {
	if len(seed) < 16 {
		return nil, fmt.Errorf("derive: seed must be at least 16 bytes, got %d", len(seed))
	}
	kdf := hkdf.New(sha256.New, seed, nil, []byte("fwd:signer:v1:"+keyID))
	raw := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(kdf, raw); err != nil {
		return nil, fmt.Errorf("derive: hkdf expand failed: %w", err)
	}
	return NewEd25519SignerFromKey(ed25519.NewKeyFromSeed(raw), keyID), nil
}
