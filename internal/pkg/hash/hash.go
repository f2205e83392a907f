// Package hash provides hashing utilities.
package hash

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// textNamespace scopes text-derived UUIDs so they never collide with other v5 ids.
var textNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/ricesearch/rice-eval/text"))

// SHA256 computes the SHA256 hash of data and returns it as a hex string.
func SHA256(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SHA256String computes the SHA256 hash of a string.
func SHA256String(s string) string {
	return SHA256([]byte(s))
}

// SHA256Short returns the first n characters of a SHA256 hash.
func SHA256Short(data []byte, n int) string {
	h := SHA256(data)
	if n > len(h) {
		return h
	}
	return h[:n]
}

// TextUUID returns a deterministic UUID (version 5) for a text.
// Qdrant point ids must be UUIDs or integers, so stored embeddings are keyed by this.
func TextUUID(text string) string {
	return uuid.NewSHA1(textNamespace, []byte(text)).String()
}
