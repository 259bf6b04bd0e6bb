package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// ShortHashLength is the width of identity, change and content fingerprints.
const ShortHashLength = 16

func Sha256Hex(in string) string {
	hash := sha256.New()
	hash.Write([]byte(in))
	hashVal := hash.Sum(nil)
	return hex.EncodeToString(hashVal[:])
}

// ShortHash returns the first 16 hex characters of the sha256 of in.
func ShortHash(in string) string {
	return Sha256Hex(in)[:ShortHashLength]
}

// ContentHash fingerprints a downloaded payload.
func ContentHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])[:ShortHashLength]
}
