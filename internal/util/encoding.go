package util

import (
	"encoding/base64"

	"golang.org/x/text/unicode/norm"
)

// Normalize maps visually identical passphrases to one byte sequence so the
// same password typed on different keyboards derives the same key.
func Normalize(s string) string {
	return norm.NFKD.String(s)
}

func B64Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func B64Decode(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
