package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProfile_ParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tier: gold\nanchor_interval_seconds: 1800\ndefault_policy_id: policy-x\n"), 0644))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "gold", p.Tier)
	assert.Equal(t, 1800, p.AnchorIntervalSeconds)
	assert.Equal(t, "policy-x", p.DefaultPolicyID)
}

func TestAnchorInterval_PrecedenceOrder(t *testing.T) {
	cfg := &Config{}
	profile := &Profile{AnchorIntervalSeconds: 900}

	assert.Equal(t, 15*time.Minute, AnchorInterval(cfg, profile, "gold"))
	assert.Equal(t, DefaultTierIntervals["silver"], AnchorInterval(cfg, nil, "silver"))

	cfg.AnchorIntervalEnv = 2 * time.Minute
	assert.Equal(t, 2*time.Minute, AnchorInterval(cfg, profile, "gold"))
}
