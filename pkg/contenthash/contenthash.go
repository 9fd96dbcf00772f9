package contenthash

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// Generate creates the global dedup key for a generation prompt.
// The hash is a SHA256 of the canonicalized prompt text, so two ideas
// that differ only in casing or whitespace collapse to one request.
func Generate(promptText string) string {
	canonical := Canonicalize(promptText)
	hash := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(hash[:])
}

// Canonicalize lowercases the prompt and collapses all whitespace runs
// to single spaces.
func Canonicalize(promptText string) string {
	lowered := strings.ToLower(strings.TrimSpace(promptText))

	var b strings.Builder
	b.Grow(len(lowered))
	inSpace := false
	for _, r := range lowered {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
