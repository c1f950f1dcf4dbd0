package vcpcrypto

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrKeyExists is returned by GenerateAndSave when a private key file
// already exists and force overwrite was not requested.
var ErrKeyExists = errors.New("vcpcrypto: key file already exists")

// LoadSigner reads a raw Ed25519 private key from privKeyPath and wraps it
// as a Signer under keyID. A missing or unreadable key file is fatal at
// startup — the caller is expected to propagate this error up to main
// and exit, not to run with no signer.
func LoadSigner(privKeyPath, keyID string) (*Ed25519Signer, error) {
	raw, err := os.ReadFile(privKeyPath)
	if err != nil {
		return nil, fmt.Errorf("vcpcrypto: reading private key %s: %w", privKeyPath, err)
	}
	priv, err := decodePrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("vcpcrypto: decoding private key %s: %w", privKeyPath, err)
	}
	return NewEd25519SignerFromKey(priv, keyID)
}

// decodePrivateKey accepts either a raw 64-byte seed+pub key or a 32-byte
// seed, matching the two historical on-disk shapes seen across Ed25519
// tooling (strict 64-byte PrivateKeySize, or a bare seed expanded via
// NewKeyFromSeed).
func decodePrivateKey(raw []byte) (ed25519.PrivateKey, error) {
	trimmed := trimTrailingNewline(raw)
	switch len(trimmed) {
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(trimmed), nil
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(trimmed), nil
	case hex.EncodedLen(ed25519.PrivateKeySize):
		decoded, err := hex.DecodeString(string(trimmed))
		if err != nil {
			return nil, err
		}
		return ed25519.PrivateKey(decoded), nil
	case hex.EncodedLen(ed25519.SeedSize):
		decoded, err := hex.DecodeString(string(trimmed))
		if err != nil {
			return nil, err
		}
		return ed25519.NewKeyFromSeed(decoded), nil
	default:
		return nil, fmt.Errorf("unexpected key length %d", len(trimmed))
	}
}

func trimTrailingNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

// GenerateAndSave creates a fresh Ed25519 keypair and writes the private key
// (0600) and public key (0644) to the given paths, for `vcpd keygen`. It
// refuses to overwrite an existing private key unless force is true.
func GenerateAndSave(privKeyPath, pubKeyPath, keyID string, force bool) (*Ed25519Signer, error) {
	if !force {
		if _, err := os.Stat(privKeyPath); err == nil {
			return nil, ErrKeyExists
		}
	}

	signer, err := NewEd25519Signer(keyID)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(privKeyPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("vcpcrypto: creating key directory: %w", err)
		}
	}

	if err := os.WriteFile(privKeyPath, signer.PrivateKeyBytes(), 0600); err != nil {
		return nil, fmt.Errorf("vcpcrypto: writing private key: %w", err)
	}
	pubHex := []byte(signer.PublicKeyHex() + "\n")
	if err := os.WriteFile(pubKeyPath, pubHex, 0644); err != nil {
		return nil, fmt.Errorf("vcpcrypto: writing public key: %w", err)
	}
	return signer, nil
}
