// Package vcpcrypto provides Ed25519 signing and verification for sealed
// events, plus the file-backed key material a vcpd process loads at
// startup.
package vcpcrypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Signer signs event hashes and reports the key identity it signs under.
type Signer interface {
	// Sign returns a hex-encoded Ed25519 signature over data.
	Sign(data []byte) (string, error)
	// KeyID is the signer_key_id stamped onto every event this signer seals.
	KeyID() string
	// PublicKeyHex is the hex-encoded raw public key.
	PublicKeyHex() string
}

// Ed25519Signer is the sole Signer implementation.
type Ed25519Signer struct {
	priv  ed25519.PrivateKey
	pub   ed25519.PublicKey
	keyID string
}

// NewEd25519Signer generates a fresh keypair. Used by `vcpd keygen`.
func NewEd25519Signer(keyID string) (*Ed25519Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("vcpcrypto: key generation failed: %w", err)
	}
	return &Ed25519Signer{priv: priv, pub: pub, keyID: keyID}, nil
}

// NewEd25519SignerFromKey wraps an already-loaded private key, e.g. one read
// from disk at startup.
func NewEd25519SignerFromKey(priv ed25519.PrivateKey, keyID string) (*Ed25519Signer, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("vcpcrypto: private key has wrong size %d, want %d", len(priv), ed25519.PrivateKeySize)
	}
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("vcpcrypto: could not derive public key")
	}
	return &Ed25519Signer{priv: priv, pub: pub, keyID: keyID}, nil
}

func (s *Ed25519Signer) Sign(data []byte) (string, error) {
	sig := ed25519.Sign(s.priv, data)
	return hex.EncodeToString(sig), nil
}

func (s *Ed25519Signer) KeyID() string { return s.keyID }

func (s *Ed25519Signer) PublicKeyHex() string { return hex.EncodeToString(s.pub) }

// PublicKeyBytes returns the raw public key, for persistence as a public
// key export document.
func (s *Ed25519Signer) PublicKeyBytes() ed25519.PublicKey { return s.pub }

// PrivateKeyBytes returns the raw private key, for persistence by the
// keygen command. Never logged or returned over the API.
func (s *Ed25519Signer) PrivateKeyBytes() ed25519.PrivateKey { return s.priv }

// Verify checks a hex-encoded signature over data against a hex-encoded
// public key. It is a package-level function, not tied to any Signer
// instance, because the offline verifier checks signatures for key ids
// it never held a live Signer for.
func Verify(pubKeyHex, sigHex string, data []byte) (bool, error) {
	pubBytes, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return false, fmt.Errorf("vcpcrypto: bad public key hex: %w", err)
	}
	if len(pubBytes) != ed25519.PublicKeySize {
		return false, fmt.Errorf("vcpcrypto: public key has wrong size %d, want %d", len(pubBytes), ed25519.PublicKeySize)
	}
	sigBytes, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, fmt.Errorf("vcpcrypto: bad signature hex: %w", err)
	}
	return ed25519.Verify(ed25519.PublicKey(pubBytes), data, sigBytes), nil
}
