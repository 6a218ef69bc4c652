package storage

import (
	"fmt"
	"time"
)

// Key schema:
//
//	evt:<txhash>:<logindex>        → EventRecord
//	mir:<created unix nano>:<id>   → MirrorRecord
//	mid:<id>                       → mirror key (index by ID)
//
// Timestamps are zero-padded (20 digits) for lexicographic sorting.
const (
	prefixEvent    = "evt:"
	prefixMirror   = "mir:"
	prefixMirrorID = "mid:"
)

func eventKey(key string) []byte {
	return []byte(prefixEvent + key)
}

func mirrorKey(createdAt time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", prefixMirror, createdAt.UnixNano(), id))
}

func mirrorIDKey(id string) []byte {
	return []byte(prefixMirrorID + id)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
