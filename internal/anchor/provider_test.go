package anchor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFileProvider_WarnsNotProductionSuitable(t *testing.T) {
	p := NewLocalFileProvider(t.TempDir())
	res, err := p.Anchor(strings.Repeat("ab", 32))
	require.NoError(t, err)
	assert.Equal(t, "local", res.Provider)
	assert.Contains(t, res.Proof["warning"], "NOT suitable for production")
}

func TestBitcoinProvider_BuildsOpReturnPayload(t *testing.T) {
	p := NewBitcoinProvider("http://localhost:8332", "vcp")
	root := strings.Repeat("ab", 32)
	res, err := p.Anchor(root)
	require.NoError(t, err)

	opReturnHex, _ := res.Proof["op_return_hex"].(string)
	require.Len(t, opReturnHex, 2*(4+32))
	assert.True(t, strings.HasPrefix(opReturnHex, "56435031")) // "VCP1" in hex

	ok, err := p.Verify(root, res.Proof)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBitcoinProvider_RejectsNonHexRoot(t *testing.T) {
	p := NewBitcoinProvider("", "")
	_, err := p.Anchor("not-hex")
	assert.Error(t, err)
}

func TestRFC3161TSAProvider_NameIsRfc3161Tsa(t *testing.T) {
	p := NewRFC3161TSAProvider()
	assert.Equal(t, "rfc3161_tsa", p.Name())
	res, err := p.Anchor(strings.Repeat("cd", 32))
	require.NoError(t, err)
	assert.Equal(t, "rfc3161_tsa", res.Proof["type"])
}

func TestOpenTimestampsProvider_MarksPending(t *testing.T) {
	p := NewOpenTimestampsProvider()
	res, err := p.Anchor(strings.Repeat("ef", 32))
	require.NoError(t, err)
	assert.Equal(t, true, res.Proof["pending"])
	assert.NotEmpty(t, res.Proof["calendars"])
}
