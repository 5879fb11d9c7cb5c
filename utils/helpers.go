package utils

import (
	"crypto/rand"
	"math/big"
	"time"
)

const slugAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// SlugLength is the width of generated note slugs
const SlugLength = 20

// NewNoteSlug returns a random lowercase base36 slug suitable for use as a
// note id and URL path segment.
func NewNoteSlug() string {
	buf := make([]byte, SlugLength)
	max := big.NewInt(int64(len(slugAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform source is broken
			panic(err)
		}
		buf[i] = slugAlphabet[n.Int64()]
	}
	return string(buf)
}

// FlagString converts a boolean into its "0"/"1" wire representation
func FlagString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// FlagBool parses the "0"/"1" wire representation of a boolean
func FlagBool(s string) bool {
	return s == "1"
}

// FormatTime formats a timestamp as RFC3339 for API responses
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
