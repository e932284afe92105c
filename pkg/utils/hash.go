package utils

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// Fingerprint returns a short FNV-1a hash of the input, hex encoded. It is the
// single identifier generator shared by filter states, question dedup, and
// export ids.
func Fingerprint(input string) string {
	h := fnv.New64a()
	h.Write([]byte(input))
	return fmt.Sprintf("%016x", h.Sum64())
}

// NormalizeText lowercases, trims, and collapses whitespace so near-identical
// questions hash to the same fingerprint.
func NormalizeText(input string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(input))), " ")
}
