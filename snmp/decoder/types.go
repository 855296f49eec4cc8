// Package decoder converts raw gosnmp PDU responses into the scalar values
// stored in a models.Snapshot.
package decoder

import (
	"encoding/hex"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"

	"github.com/gosnmp/gosnmp"
)

// ─────────────────────────────────────────────────────────────────────────────
// SNMP PDU Type → String
// ─────────────────────────────────────────────────────────────────────────────

// PDUTypeString returns the human-readable name for a gosnmp Asn1BER type tag.
func PDUTypeString(t gosnmp.Asn1BER) string {
	switch t {
	case gosnmp.Integer:
		return "Integer"
	case gosnmp.BitString:
		return "BitString"
	case gosnmp.OctetString:
		return "OctetString"
	case gosnmp.Null:
		return "Null"
	case gosnmp.ObjectIdentifier:
		return "ObjectIdentifier"
	case gosnmp.ObjectDescription:
		return "ObjectDescription"
	case gosnmp.IPAddress:
		return "IpAddress"
	case gosnmp.Counter32:
		return "Counter32"
	case gosnmp.Gauge32:
		return "Gauge32"
	case gosnmp.TimeTicks:
		return "TimeTicks"
	case gosnmp.Opaque:
		return "Opaque"
	case gosnmp.Counter64:
		return "Counter64"
	case gosnmp.Uinteger32:
		return "Unsigned32"
	case gosnmp.OpaqueFloat:
		return "OpaqueFloat"
	case gosnmp.OpaqueDouble:
		return "OpaqueDouble"
	case gosnmp.NoSuchObject:
		return "NoSuchObject"
	case gosnmp.NoSuchInstance:
		return "NoSuchInstance"
	case gosnmp.EndOfMibView:
		return "EndOfMibView"
	default:
		return fmt.Sprintf("Unknown(0x%02X)", uint8(t))
	}
}

// IsErrorType returns true when the PDU type signals an SNMP retrieval error
// rather than an actual value. Callers should skip these varbinds.
func IsErrorType(t gosnmp.Asn1BER) bool {
	return t == gosnmp.NoSuchObject || t == gosnmp.NoSuchInstance || t == gosnmp.EndOfMibView || t == gosnmp.Null
}

// ─────────────────────────────────────────────────────────────────────────────
// Value coercion
// ─────────────────────────────────────────────────────────────────────────────

// Cast renders a PDU value as text and coerces it with CastString. The result
// is always one of int64, float64 or string, so decoding never fails.
func Cast(rawType gosnmp.Asn1BER, rawValue interface{}) interface{} {
	return CastString(Render(rawType, rawValue))
}

// CastString tries an integer parse, then a float parse, and otherwise keeps
// the string. The first successful parse wins:
//
//	"42"   → int64(42)
//	"3.14" → float64(3.14)
//	"abc"  → "abc"
func CastString(s string) interface{} {
	t := strings.TrimSpace(s)
	if t == "" {
		return s
	}
	if i, err := strconv.ParseInt(t, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil {
		return f
	}
	return s
}

// Render formats a raw gosnmp value the way the agent would print it: numbers
// in decimal, octet strings as text, OIDs dotted, IP addresses dotted-quad.
func Render(t gosnmp.Asn1BER, v interface{}) string {
	switch t {
	case gosnmp.Integer:
		if i, err := toInt64(v); err == nil {
			return strconv.FormatInt(i, 10)
		}
	case gosnmp.Counter32, gosnmp.Gauge32, gosnmp.TimeTicks, gosnmp.Uinteger32, gosnmp.Counter64:
		if u, err := toUint64(v); err == nil {
			return strconv.FormatUint(u, 10)
		}
	case gosnmp.OctetString, gosnmp.ObjectDescription:
		return toDisplayString(v)
	case gosnmp.ObjectIdentifier:
		return toOIDString(v)
	case gosnmp.IPAddress:
		return toIPString(v)
	case gosnmp.OpaqueFloat, gosnmp.OpaqueDouble:
		if f, err := toFloat64(v); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	}
	return fallbackString(v)
}

// ─────────────────────────────────────────────────────────────────────────────
// Low-level conversion helpers
// ─────────────────────────────────────────────────────────────────────────────

// toInt64 converts the raw gosnmp value to int64.
// gosnmp returns integers as int / int32 / int64 depending on the PDU.
func toInt64(v interface{}) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("uint64 value %d overflows int64", x)
		}
		return int64(x), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", v)
	}
}

// toUint64 converts the raw gosnmp value to uint64.
func toUint64(v interface{}) (uint64, error) {
	switch x := v.(type) {
	case int:
		if x < 0 {
			return 0, fmt.Errorf("negative value %d cannot be converted to uint64", x)
		}
		return uint64(x), nil
	case int64:
		if x < 0 {
			return 0, fmt.Errorf("negative value %d cannot be converted to uint64", x)
		}
		return uint64(x), nil
	case uint:
		return uint64(x), nil
	case uint32:
		return uint64(x), nil
	case uint64:
		return x, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to uint64", v)
	}
}

func toFloat64(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", v)
	}
}

// toDisplayString converts an OctetString to text, stripping the trailing
// null bytes some agents append.
func toDisplayString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return strings.TrimRight(x, "\x00")
	case []byte:
		return strings.TrimRight(string(x), "\x00")
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toOIDString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return NormaliseOID(x)
	case []byte:
		return NormaliseOID(string(x))
	default:
		return fmt.Sprintf("%v", v)
	}
}

// toIPString converts an IpAddress value (4-byte slice or string) to dotted-
// decimal notation.
func toIPString(v interface{}) string {
	switch x := v.(type) {
	case string:
		if b := []byte(x); len(b) == 4 && net.ParseIP(x) == nil {
			return net.IP(b).String()
		}
		return x
	case []byte:
		if len(x) == 4 || len(x) == 16 {
			return net.IP(x).String()
		}
		return hex.EncodeToString(x)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func fallbackString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return strings.TrimRight(string(x), "\x00")
	default:
		return fmt.Sprintf("%v", v)
	}
}
