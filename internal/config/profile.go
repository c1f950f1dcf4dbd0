package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile carries the tier-driven settings deployment configures
// separately from the process environment: which anchor cadence and
// default policy a tier implies. Loaded from YAML, mirroring
// profile_loader.go's RegionalProfile.
type Profile struct {
	Tier                  string `yaml:"tier"`
	AnchorIntervalSeconds int    `yaml:"anchor_interval_seconds"`
	DefaultPolicyID       string `yaml:"default_policy_id"`
}

// DefaultTierIntervals are the fallback anchor cadences for each tier
// when no profile file overrides them: daily for silver, hourly for
// gold, and a tight interval for platinum.
var DefaultTierIntervals = map[string]time.Duration{
	"silver":   24 * time.Hour,
	"gold":     1 * time.Hour,
	"platinum": 5 * time.Minute,
}

// LoadProfile reads a tier profile YAML file from path.
func LoadProfile(path string) (*Profile, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading profile %s: %w", path, err)
	}
	var p Profile
	if err := yaml.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("config: parsing profile %s: %w", path, err)
	}
	return &p, nil
}

// AnchorInterval resolves the effective anchor cadence for tier, applying
// the precedence: explicit env override > profile file > tier default.
func AnchorInterval(cfg *Config, profile *Profile, tier string) time.Duration {
	if cfg != nil && cfg.AnchorIntervalEnv > 0 {
		return cfg.AnchorIntervalEnv
	}
	if profile != nil && profile.AnchorIntervalSeconds > 0 {
		return time.Duration(profile.AnchorIntervalSeconds) * time.Second
	}
	if d, ok := DefaultTierIntervals[tier]; ok {
		return d
	}
	return DefaultTierIntervals["gold"]
}
