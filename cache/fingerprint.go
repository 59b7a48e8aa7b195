package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/BaSui01/webbridge/types"
)

// Fingerprint derives a stable identity for a conversation from its model
// and ordered messages.
//
// The digest input is "model:" followed by "role:content;" for each message
// in order. The layout is part of the on-disk contract: fingerprints stored
// by earlier deployments must keep matching, so it never changes.
func Fingerprint(messages types.History, model string) string {
	var b strings.Builder
	b.WriteString(model)
	b.WriteString(":")
	for _, msg := range messages {
		b.WriteString(string(msg.Role))
		b.WriteString(":")
		b.WriteString(msg.Content)
		b.WriteString(";")
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// PrefixFingerprint fingerprints everything before the final message, which
// is how an incoming request is matched against stored conversations: the
// history minus the new user turn is exactly what a prior request stored.
// Returns false when the history is too short to have a usable prefix.
func PrefixFingerprint(messages types.History, model string) (string, bool) {
	prefix := messages.Prefix()
	if prefix == nil {
		return "", false
	}
	return Fingerprint(prefix, model), true
}
