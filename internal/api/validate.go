package api

import (
	"fmt"
	"strings"

	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/chain"
)

var validTiers = map[string]bool{"SILVER": true, "GOLD": true, "PLATINUM": true}

var validClockSync = map[string]bool{"BEST_EFFORT": true, "NTP_SYNCED": true, "PTP_LOCKED": true}

// validateEvent enforces the inbound webhook's required-field schema. A
// failure here is a schema-kind error: 400, no log append, no chain
// state touched.
func validateEvent(ev chain.Event) error {
	var missing []string
	if ev.EventID == "" {
		missing = append(missing, "event_id")
	}
	if ev.Timestamp == "" {
		missing = append(missing, "timestamp")
	}
	if ev.EventType == "" {
		missing = append(missing, "event_type")
	}
	if ev.Tier == "" {
		missing = append(missing, "tier")
	}
	if ev.PolicyID == "" {
		missing = append(missing, "policy_id")
	}
	if ev.ClockSync == "" {
		missing = append(missing, "clock_sync")
	}
	if ev.SystemID == "" {
		missing = append(missing, "system_id")
	}
	if ev.AccountID == "" {
		missing = append(missing, "account_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required field(s): %s", strings.Join(missing, ", "))
	}

	if ev.EventType != "" && !chain.KnownEventTypes[ev.EventType] {
		return fmt.Errorf("event_type %q is not one of the recognized values", ev.EventType)
	}
	if ev.Tier != "" && !validTiers[strings.ToUpper(ev.Tier)] {
		return fmt.Errorf("tier %q must be one of SILVER, GOLD, PLATINUM", ev.Tier)
	}
	if ev.ClockSync != "" && !validClockSync[strings.ToUpper(ev.ClockSync)] {
		return fmt.Errorf("clock_sync %q must be one of BEST_EFFORT, NTP_SYNCED, PTP_LOCKED", ev.ClockSync)
	}
	return nil
}
