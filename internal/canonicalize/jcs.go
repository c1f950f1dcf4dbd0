// Package canonicalize produces RFC 8785 (JSON Canonicalization Scheme)
// byte-exact serializations so that two implementations hashing the same
// logical event always agree on the bytes being hashed.
package canonicalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/gowebpki/jcs"
)

// FieldOrder lists the canonical subset of a SealedEvent that gets
// hashed. prev_hash is included only when present.
var FieldOrder = []string{
	"account_id",
	"clock_sync",
	"event_id",
	"event_type",
	"payload",
	"policy_id",
	"prev_hash",
	"system_id",
	"tier",
	"timestamp",
	"vcp_version",
}

// Subset builds the map of fields that get canonicalized and hashed for a
// sealed event: the input event's fields plus prev_hash if non-empty.
// timestamp is carried through verbatim as the string the caller sent —
// it is never re-parsed or re-formatted, since doing so would make the
// hash depend on this implementation's timestamp normalization rather
// than on the wire bytes the upstream platform actually emitted.
func Subset(accountID, clockSync, eventID, eventType string, payload any, policyID, prevHash, systemID, tier, timestamp, vcpVersion string) map[string]any {
	m := map[string]any{
		"account_id":  accountID,
		"clock_sync":  clockSync,
		"event_id":    eventID,
		"event_type":  eventType,
		"payload":     payload,
		"policy_id":   policyID,
		"system_id":   systemID,
		"tier":        tier,
		"timestamp":   timestamp,
		"vcp_version": vcpVersion,
	}
	if prevHash != "" {
		m["prev_hash"] = prevHash
	}
	return m
}

// JCS returns the RFC 8785 canonical JSON byte representation of v.
//
// v is first marshaled with the standard library (which sorts map keys and
// preserves json.Number literals verbatim), then run through gowebpki/jcs's
// Transform, which performs the ES Number::toString-compatible number
// reformatting and UTF-16-order key sort that RFC 8785 actually requires —
// Go's own json.Marshal sorts keys by byte order, which coincides with
// UTF-16 code unit order only for the ASCII-only keys this schema uses, and
// does not reformat numbers at all.
func JCS(v any) ([]byte, error) {
	if err := rejectNonFinite(reflect.ValueOf(v)); err != nil {
		return nil, err
	}

	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: pre-marshal failed: %w", err)
	}

	canonical, err := jcs.Transform(intermediate)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: jcs transform failed: %w", err)
	}
	return canonical, nil
}

// JCSString is JCS rendered as a string.
func JCSString(v any) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Idempotent reports whether re-canonicalizing the canonical bytes of v
// yields byte-identical output.
func Idempotent(v any) (bool, error) {
	first, err := JCS(v)
	if err != nil {
		return false, err
	}
	var decoded any
	dec := json.NewDecoder(bytes.NewReader(first))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return false, fmt.Errorf("canonicalize: re-decode failed: %w", err)
	}
	second, err := JCS(decoded)
	if err != nil {
		return false, err
	}
	return bytes.Equal(first, second), nil
}

// rejectNonFinite walks v looking for NaN/±Inf float values, which cannot
// be represented in JSON. encoding/json already refuses to marshal these,
// but we check up front so the caller gets a canonicalization-kind error
// rather than a bare json error.
func rejectNonFinite(v reflect.Value) error {
	if !v.IsValid() {
		return nil
	}
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("canonicalize: non-finite number is not representable in canonical JSON")
		}
	case reflect.Map:
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j]) })
		for _, k := range keys {
			if err := rejectNonFinite(v.MapIndex(k)); err != nil {
				return err
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := rejectNonFinite(v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Interface, reflect.Ptr:
		if !v.IsNil() {
			return rejectNonFinite(v.Elem())
		}
	}
	return nil
}
