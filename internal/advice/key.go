package advice

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
)

// CacheKey derives the content address for one advice request. Identical
// (category, scrubbed text) pairs always map to the same key, so cached
// advice is shared across actors without ever storing raw input.
//
// Fields are length-prefixed before hashing so ("ab","c") and ("a","bc")
// cannot collide.
func CacheKey(category, scrubbedText string) string {
	h := sha256.New()
	writeField(h, category)
	writeField(h, scrubbedText)
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(h hash.Hash, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}
