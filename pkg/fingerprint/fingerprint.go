// Package fingerprint computes the content identity used for deduplication.
//
// A fingerprint is the hex MD5 digest of the post text after whitespace
// normalization. The hex encoding is shared with the storage layer, which
// keeps it in the content_hash column.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// Fingerprint is a 32-character lowercase hex digest
type Fingerprint string

// Size is the length of an encoded fingerprint
const Size = md5.Size * 2

// Empty is the fingerprint of text with no content
var Empty = Of("")

// Normalize collapses every run of whitespace, line breaks included, into a
// single space and trims both ends.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Of returns the fingerprint of the normalized text
func Of(text string) Fingerprint {
	sum := md5.Sum([]byte(Normalize(text)))
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// Parse validates a stored fingerprint
func Parse(s string) (Fingerprint, bool) {
	if len(s) != Size {
		return "", false
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", false
	}
	return Fingerprint(strings.ToLower(s)), true
}

func (f Fingerprint) String() string {
	return string(f)
}

// IsZero reports whether f is unset
func (f Fingerprint) IsZero() bool {
	return f == ""
}
