package ranking

import (
	"hash/fnv"
)

// Jitter maps (userID, articleID, salt) to a stable value in [0, 1).
// A pure hash rather than a seeded generator keeps re-ranking reproducible
// for the same state version.
func Jitter(userID, articleID, salt string) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(userID))
	_, _ = h.Write([]byte{':'})
	_, _ = h.Write([]byte(articleID))
	_, _ = h.Write([]byte{':'})
	_, _ = h.Write([]byte(salt))
	return float64(h.Sum64()>>11) / float64(1<<53)
}
