package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// hashKey returns "<kind>:<hex sha256 of parts>". Parts are NUL-terminated
// so ("ab", "c") and ("a", "bc") hash differently.
func hashKey(kind string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return kind + ":" + hex.EncodeToString(h.Sum(nil))
}

// Hash returns the hex SHA-256 of data. [FileCache] names entry files with it.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
