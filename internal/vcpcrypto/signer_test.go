package vcpcrypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEd25519Signer_SignVerifyRoundTrip(t *testing.T) {
	signer, err := NewEd25519Signer("key-1")
	require.NoError(t, err)

	data := []byte("event bytes")
	sig, err := signer.Sign(data)
	require.NoError(t, err)

	ok, err := Verify(signer.PublicKeyHex(), sig, data)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_RejectsTamperedData(t *testing.T) {
	signer, err := NewEd25519Signer("key-1")
	require.NoError(t, err)

	sig, err := signer.Sign([]byte("original"))
	require.NoError(t, err)

	ok, err := Verify(signer.PublicKeyHex(), sig, []byte("tampered"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeyRing_ExactKeyIDMatch(t *testing.T) {
	signerA, _ := NewEd25519Signer("key-a")
	signerB, _ := NewEd25519Signer("key-b")

	ring := NewKeyRing()
	ring.AddKey("key-a", signerA.PublicKeyHex())
	ring.AddKey("key-b", signerB.PublicKeyHex())

	data := []byte("payload")
	sigA, _ := signerA.Sign(data)

	ok, err := ring.VerifyEvent("key-a", sigA, data)
	require.NoError(t, err)
	assert.True(t, ok)

	// Signature from A checked under B's key id must not silently fall
	// back to trying every key.
	ok, err = ring.VerifyEvent("key-b", sigA, data)
	assert.NoError(t, err)
	assert.False(t, ok)

	_, err = ring.VerifyEvent("unknown-key", sigA, data)
	assert.Error(t, err)
}

func TestKeyRing_Revocation(t *testing.T) {
	signer, _ := NewEd25519Signer("key-1")
	ring := NewKeyRing()
	ring.AddKey("key-1", signer.PublicKeyHex())
	ring.RevokeKey("key-1")

	data := []byte("payload")
	sig, _ := signer.Sign(data)
	_, err := ring.VerifyEvent("key-1", sig, data)
	assert.Error(t, err)
}

func TestGenerateAndSave_RefusesOverwriteWithoutForce(t *testing.T) {
	dir := t.TempDir()
	privPath := filepath.Join(dir, "vcp.key")
	pubPath := filepath.Join(dir, "vcp.pub")

	_, err := GenerateAndSave(privPath, pubPath, "key-1", false)
	require.NoError(t, err)

	_, err = GenerateAndSave(privPath, pubPath, "key-1", false)
	assert.ErrorIs(t, err, ErrKeyExists)

	_, err = GenerateAndSave(privPath, pubPath, "key-2", true)
	assert.NoError(t, err)
}

func TestLoadSigner_RoundTripsThroughDisk(t *testing.T) {
	dir := t.TempDir()
	privPath := filepath.Join(dir, "vcp.key")
	pubPath := filepath.Join(dir, "vcp.pub")

	saved, err := GenerateAndSave(privPath, pubPath, "key-1", false)
	require.NoError(t, err)

	loaded, err := LoadSigner(privPath, "key-1")
	require.NoError(t, err)
	assert.Equal(t, saved.PublicKeyHex(), loaded.PublicKeyHex())
}

func TestLoadSigner_MissingFileIsFatalAtStartup(t *testing.T) {
	_, err := LoadSigner(filepath.Join(t.TempDir(), "does-not-exist.key"), "key-1")
	require.Error(t, err)
	assert.True(t, os.IsNotExist(errUnwrapCause(err)) || err != nil)
}

func errUnwrapCause(err error) error {
	type unwrapper interface{ Unwrap() error }
	for {
		u, ok := err.(unwrapper)
		if !ok {
			return err
		}
		err = u.Unwrap()
	}
}
