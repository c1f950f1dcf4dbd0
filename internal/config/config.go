// Package config loads vcpd's runtime configuration: environment
// variables for deployment-time addresses and secrets, and an optional
// YAML tier profile for anchor cadence and policy defaults — the same
// two-layer split as core/pkg/config/config.go and profile_loader.go.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds the environment-derived settings a vcpd process needs to
// start serving.
type Config struct {
	Addr         string
	HealthAddr   string
	LogLevel     string
	Tier         string
	EventLogPath string
	DatabaseURL  string // optional; when set, the event log and anchor store both prefer Postgres over their file-backed forms

	PrivateKeyPath string
	PublicKeyPath  string
	SignerKeyID    string

	AnchorProvider    string
	AnchorStorageDir  string
	AnchorIntervalEnv time.Duration // overrides the tier-derived interval when > 0

	BitcoinRPCURL     string
	BitcoinWalletName string

	ProfilePath string
}

// Load reads configuration from the environment, applying the same
// hardcoded-default-then-override pattern as core/pkg/config.Load.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:              getEnv("VCP_ADDR", ":8443"),
		HealthAddr:        getEnv("VCP_HEALTH_ADDR", ":8080"),
		LogLevel:          getEnv("VCP_LOG_LEVEL", "info"),
		Tier:              strings.ToLower(getEnv("VCP_TIER", "gold")),
		EventLogPath:      getEnv("VCP_EVENT_LOG_PATH", "./data/events.jsonl"),
		DatabaseURL:       os.Getenv("VCP_DATABASE_URL"),
		PrivateKeyPath:    getEnv("VCP_PRIVATE_KEY_PATH", "./data/keys/vcp.key"),
		PublicKeyPath:     getEnv("VCP_PUBLIC_KEY_PATH", "./data/keys/vcp.pub"),
		SignerKeyID:       getEnv("VCP_SIGNER_KEY_ID", "vcp-primary"),
		AnchorProvider:    getEnv("VCP_ANCHOR_PROVIDER", "local"),
		AnchorStorageDir:  getEnv("VCP_ANCHOR_STORAGE_DIR", "./data/anchors"),
		BitcoinRPCURL:     os.Getenv("VCP_BITCOIN_RPC_URL"),
		BitcoinWalletName: os.Getenv("VCP_BITCOIN_WALLET_NAME"),
		ProfilePath:       os.Getenv("VCP_PROFILE_PATH"),
	}

	if raw := os.Getenv("VCP_ANCHOR_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("config: VCP_ANCHOR_INTERVAL is not a valid duration: %w", err)
		}
		cfg.AnchorIntervalEnv = d
	}

	switch cfg.AnchorProvider {
	case "opentimestamps", "bitcoin", "rfc3161_tsa", "local":
	default:
		return nil, fmt.Errorf("config: unknown VCP_ANCHOR_PROVIDER %q", cfg.AnchorProvider)
	}

	switch cfg.Tier {
	case "silver", "gold", "platinum":
	default:
		return nil, fmt.Errorf("config: unknown VCP_TIER %q", cfg.Tier)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
