// Package contexthash canonicalizes context payloads and hashes them the
// same way on every process, every host, every run — the hash is a cache
// and storage key, so any drift here silently splits what should be one
// translation into two. See spec §9 "Hashing stability".
package contexthash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"transhub/internal/types"
)

// Hash returns the context_hash for payload: GlobalContextSentinel for
// nil/empty, otherwise SHA-256 of the canonical JSON encoding.
func Hash(payload map[string]any) string {
	if len(payload) == 0 {
		return types.GlobalContextSentinel
	}
	canonical := Canonicalize(payload)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// Canonicalize renders v as JSON with keys sorted ascending by Unicode
// code point, no insignificant whitespace, and arrays left in input
// order. It does not claim general JSON-canonicalization correctness
// (e.g. exotic float formatting) beyond what this system's payloads need:
// strings, numbers, bools, null, nested maps/slices.
func Canonicalize(v any) string {
	var b strings.Builder
	writeCanonical(&b, v)
	return b.String()
}

func writeCanonical(b *strings.Builder, v any) {
	switch val := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if val {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case string:
		writeJSONString(b, val)
	case float64:
		writeCanonicalNumber(b, val)
	case int:
		b.WriteString(strconv.Itoa(val))
	case int64:
		b.WriteString(strconv.FormatInt(val, 10))
	case map[string]any:
		writeCanonicalObject(b, val)
	case []any:
		writeCanonicalArray(b, val)
	default:
		// Fallback for unexpected concrete types: best-effort %v, quoted.
		writeJSONString(b, fmt.Sprintf("%v", val))
	}
}

func writeCanonicalObject(b *strings.Builder, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		writeJSONString(b, k)
		b.WriteByte(':')
		writeCanonical(b, m[k])
	}
	b.WriteByte('}')
}

func writeCanonicalArray(b *strings.Builder, arr []any) {
	b.WriteByte('[')
	for i, item := range arr {
		if i > 0 {
			b.WriteByte(',')
		}
		writeCanonical(b, item)
	}
	b.WriteByte(']')
}

// writeJSONString writes s as a JSON string literal in NFC form.
func writeJSONString(b *strings.Builder, s string) {
	s = norm.NFC.String(s)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
}

// writeCanonicalNumber strips trailing decimal zeros so 1.0 and 1 hash
// identically across encoders that might otherwise disagree.
func writeCanonicalNumber(b *strings.Builder, f float64) {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	b.WriteString(s)
}
