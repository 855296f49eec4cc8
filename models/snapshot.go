// Package models defines the core data structures shared across all layers of
// the UPS collector. Nothing here depends on any other internal package.
package models

import (
	"math"
	"strconv"
	"strings"
)

// Snapshot maps a dotted-decimal OID (no leading dot) to its decoded scalar
// value. Values are int64, float64 or string as produced by decoder.Cast.
type Snapshot map[string]interface{}

// Merge overlays src onto s, last write wins per key, and returns the result.
// Keys present in s but absent from src are kept. A nil receiver allocates a
// fresh map so callers can write snap = snap.Merge(res).
func (s Snapshot) Merge(src Snapshot) Snapshot {
	if s == nil {
		s = make(Snapshot, len(src))
	}
	for k, v := range src {
		s[k] = v
	}
	return s
}

// Clone returns a shallow copy. Values are immutable scalars so a shallow
// copy is enough to hand the snapshot to readers.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Has reports whether oid has a value.
func (s Snapshot) Has(oid string) bool {
	_, ok := s[oid]
	return ok
}

// Int returns the value at oid as an integer. Floats are truncated and
// numeric strings are parsed; anything else reports false.
func (s Snapshot) Int(oid string) (int64, bool) {
	switch v := s[oid].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int64(v), true
	case string:
		t := strings.TrimSpace(v)
		if i, err := strconv.ParseInt(t, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return int64(f), true
		}
	}
	return 0, false
}

// Float returns the value at oid widened to float64.
func (s Snapshot) Float(oid string) (float64, bool) {
	switch v := s[oid].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// Text returns the value at oid rendered as a string.
func (s Snapshot) Text(oid string) (string, bool) {
	switch v := s[oid].(type) {
	case string:
		return v, true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int:
		return strconv.Itoa(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	}
	return "", false
}
