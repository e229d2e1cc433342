package extraction

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ContentHash keys the extraction cache. Messages that differ only in case or
// whitespace hash equally.
func ContentHash(sender, subject, body string) string {
	h := sha256.New()
	h.Write([]byte(normalizeForHash(sender)))
	h.Write([]byte{0x1f})
	h.Write([]byte(normalizeForHash(subject)))
	h.Write([]byte{0x1f})
	h.Write([]byte(normalizeForHash(body)))
	return hex.EncodeToString(h.Sum(nil))
}

func normalizeForHash(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
