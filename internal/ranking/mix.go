package ranking

import (
	"github.com/dailylens/internal/models"
	"github.com/dailylens/internal/types"
)

// mixBucketOrder fixes the tie-break order when two buckets carry the same
// deficit.
var mixBucketOrder = []types.TopicBucket{
	types.BucketCore,
	types.BucketAdjacent,
	types.BucketFrontier,
}

// TargetMixFor returns the core/adjacent/frontier shares for the user's
// role and focus mode. ICP roles get a more core-heavy mix at every mode.
func TargetMixFor(user *models.User) map[types.TopicBucket]float64 {
	mode := types.NormalizeFocusMode(string(user.FocusMode))
	if user.ICP() {
		switch mode {
		case types.FocusStrict:
			return map[types.TopicBucket]float64{
				types.BucketCore: 0.85, types.BucketAdjacent: 0.12, types.BucketFrontier: 0.03,
			}
		case types.FocusDiscovery:
			return map[types.TopicBucket]float64{
				types.BucketCore: 0.55, types.BucketAdjacent: 0.25, types.BucketFrontier: 0.20,
			}
		}
		return map[types.TopicBucket]float64{
			types.BucketCore: 0.70, types.BucketAdjacent: 0.20, types.BucketFrontier: 0.10,
		}
	}
	switch mode {
	case types.FocusStrict:
		return map[types.TopicBucket]float64{
			types.BucketCore: 0.55, types.BucketAdjacent: 0.35, types.BucketFrontier: 0.10,
		}
	case types.FocusDiscovery:
		return map[types.TopicBucket]float64{
			types.BucketCore: 0.35, types.BucketAdjacent: 0.35, types.BucketFrontier: 0.30,
		}
	}
	return map[types.TopicBucket]float64{
		types.BucketCore: 0.45, types.BucketAdjacent: 0.35, types.BucketFrontier: 0.20,
	}
}

// mixByDeficit reassembles a score-sorted ranking so the realized bucket
// composition tracks the target mix. At each position the bucket with the
// largest cumulative share deficit contributes its best remaining item,
// which makes the realized mix converge to the target over the full
// ordering rather than only at fixed offsets.
func mixByDeficit(ranked []models.ScoredArticle, targetMix map[types.TopicBucket]float64) []models.ScoredArticle {
	if len(ranked) == 0 {
		return nil
	}

	buckets := make(map[types.TopicBucket][]models.ScoredArticle, len(mixBucketOrder))
	for _, item := range ranked {
		bucket := item.Article.Subject.Bucket()
		buckets[bucket] = append(buckets[bucket], item)
	}

	counts := make(map[types.TopicBucket]int, len(mixBucketOrder))
	mixed := make([]models.ScoredArticle, 0, len(ranked))

	for len(mixed) < len(ranked) {
		var selected types.TopicBucket
		best := 0.0
		found := false
		for _, bucket := range mixBucketOrder {
			if len(buckets[bucket]) == 0 {
				continue
			}
			deficit := targetMix[bucket]*float64(len(mixed)+1) - float64(counts[bucket])
			if !found || deficit > best {
				selected = bucket
				best = deficit
				found = true
			}
		}
		if !found {
			break
		}
		mixed = append(mixed, buckets[selected][0])
		buckets[selected] = buckets[selected][1:]
		counts[selected]++
	}
	return mixed
}

// interleaveHead enforces the exploit/explore cadence over the first depth
// positions so exploration-flagged items surface on the first page instead
// of only at the tail. The relative order inside each class is preserved,
// and nothing past the head region moves.
func interleaveHead(items []models.ScoredArticle, exploitPer, explorePer, depth int) []models.ScoredArticle {
	if depth <= 0 || exploitPer <= 0 || explorePer <= 0 || len(items) < 2 {
		return items
	}
	if depth > len(items) {
		depth = len(items)
	}

	head := items[:depth]
	var exploit, explore []models.ScoredArticle
	for _, item := range head {
		if item.ExploreFlagged {
			explore = append(explore, item)
		} else {
			exploit = append(exploit, item)
		}
	}

	out := make([]models.ScoredArticle, 0, len(items))
	ei, xi := 0, 0
	for ei < len(exploit) || xi < len(explore) {
		for n := 0; n < exploitPer && ei < len(exploit); n++ {
			out = append(out, exploit[ei])
			ei++
		}
		for n := 0; n < explorePer && xi < len(explore); n++ {
			out = append(out, explore[xi])
			xi++
		}
		// One side drained; take the rest of the other as-is.
		if ei >= len(exploit) {
			out = append(out, explore[xi:]...)
			break
		}
		if xi >= len(explore) {
			out = append(out, exploit[ei:]...)
			break
		}
	}
	return append(out, items[depth:]...)
}
