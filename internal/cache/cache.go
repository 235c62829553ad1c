// Package cache stores computed layouts keyed by a digest of their input.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache holds serialized values with a TTL. Implementations must be safe for
// concurrent use.
type Cache interface {
	// Get returns the value and true if present and not expired.
	Get(key string) ([]byte, bool)

	// Set stores value under key. A ttl of 0 selects the cache default.
	Set(key string, value []byte, ttl time.Duration)

	Delete(key string)
	Clear()
	Stats() Stats
}

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	KeysAdded uint64
	Evictions uint64
	Size      int64 // approximate bytes held
	Items     int64
}

// Key derives a stable key from namespace and the given parts. Parts are
// length-prefixed so ("ab","c") and ("a","bc") differ.
func Key(namespace string, parts ...[]byte) string {
	h := sha256.New()
	var n [8]byte
	for _, p := range parts {
		l := uint64(len(p))
		for i := range n {
			n[i] = byte(l >> (8 * i))
		}
		h.Write(n[:])
		h.Write(p)
	}
	return namespace + ":" + hex.EncodeToString(h.Sum(nil))
}
