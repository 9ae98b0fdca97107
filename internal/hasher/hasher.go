// Package hasher produces content fingerprints for change detection.
//
// Fingerprints only need to distinguish "same bytes" from "different bytes"
// cheaply; they are not cryptographic.
package hasher

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// EmptyHash is the sentinel fingerprint for empty content.
const EmptyHash = "empty"

// maxFallbackBytes caps how much of the document feeds the key-content
// digest when no title or paragraph is found.
const maxFallbackBytes = 2048

// HashContent returns the fingerprint of the full content.
func HashContent(content []byte) string {
	if len(content) == 0 {
		return EmptyHash
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(content))
}

// HashKeyContent fingerprints only the stable parts of an HTML document:
// the first <title>, and the first <p> when it is under 1000 bytes.
// Cosmetic edits elsewhere in the page then leave the fingerprint
// unchanged. Falls back to the first 2 KB when neither contributes any
// text.
func HashKeyContent(html string) string {
	if html == "" {
		return EmptyHash
	}

	var key strings.Builder

	if title, ok := between(html, "<title>", "</title>"); ok {
		key.WriteString(title)
	}

	if para, ok := between(html, "<p>", "</p>"); ok && len(para) < 1000 {
		key.WriteString(para)
	}

	if key.Len() == 0 {
		n := len(html)
		if n > maxFallbackBytes {
			n = maxFallbackBytes
		}
		key.WriteString(html[:n])
	}

	return HashContent([]byte(key.String()))
}

// between returns the substring of s between the first occurrence of open
// and the next occurrence of close after it.
func between(s, open, close string) (string, bool) {
	start := strings.Index(s, open)
	if start < 0 {
		return "", false
	}
	start += len(open)

	end := strings.Index(s[start:], close)
	if end < 0 {
		return "", false
	}
	return s[start : start+end], true
}
