package crypto

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/clearlane/forwardcore/pkg/contracts"
)

// AttestationClaims is the JWS payload the oracle hands back to the
// signature-collection transport alongside its raw signature. The token binds
// the transaction root to the instrument and as-of time that were attested.
type AttestationClaims struct {
	Root       string    `json:"root"`
	Instrument string    `json:"instrument"`
	AsOf       time.Time `json:"as_of"`
	jwt.RegisteredClaims
}

// MintAttestationToken issues an EdDSA-signed token over the attested root.
func MintAttestationToken(s *Ed25519Signer, root, instrument string, asOf time.Time, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := AttestationClaims{
		Root:       root,
		Instrument: instrument,
		AsOf:       asOf.UTC(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.KeyID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(s.Private())
}

// ParseAttestationToken verifies the token signature against the oracle's
// public key and returns its claims.
func ParseAttestationToken(raw string, oracleKey contracts.PublicKey) (*AttestationClaims, error) {
	pub, err := hex.DecodeString(string(oracleKey))
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("token: invalid oracle public key")
	}

	claims := &AttestationClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("token: unexpected signing method %s", t.Method.Alg())
		}
		return ed25519.PublicKey(pub), nil
	})
	if err != nil {
		return nil, fmt.Errorf("token: parse failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token: signature invalid")
	}
	return claims, nil
}
