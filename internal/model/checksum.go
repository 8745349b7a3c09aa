package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Checksum computes a deterministic SHA-256 checksum over a raw nutrition
// mapping. Key-value pairs are sorted by key before hashing, so the result
// is independent of map insertion order. Sources stamp it on each record at
// collection time; the bronze validator recomputes it to detect tampering.
func Checksum(raw map[string]any) string {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%v;", k, raw[k])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
