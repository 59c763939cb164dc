package facematch

import (
	"math"

	"github.com/kozaktomas/face-id/internal/identity"
)

// Confidence maps a distance to a score in [0, 1]: 1 at distance 0, falling
// linearly to 0 at the threshold.
func Confidence(distance, threshold float64) float64 {
	if threshold <= 0 || math.IsNaN(distance) {
		return 0
	}
	return clamp(1-distance/threshold, 0, 1)
}

// Query finds the record nearest to query under metric. The nearest record
// is returned as a match when its distance is at most threshold; otherwise
// the result is identity.NoMatch. Equally close records resolve to the
// lowest ID. A non-positive threshold never matches.
//
// Query does not modify its arguments and runs in O(len(records)).
func Query(query identity.Embedding, records []identity.Record, metric Metric, threshold float64) identity.Match {
	if threshold <= 0 || len(query) == 0 {
		return identity.NoMatch
	}

	best := -1
	bestDistance := math.Inf(1)
	for i := range records {
		d := metric.Distance(query, records[i].Embedding)
		if math.IsNaN(d) || math.IsInf(d, 1) {
			continue
		}
		if d < bestDistance || (d == bestDistance && records[i].ID < records[best].ID) {
			best = i
			bestDistance = d
		}
	}

	if best < 0 || bestDistance > threshold {
		return identity.NoMatch
	}

	return identity.Match{
		Matched:    true,
		ID:         records[best].ID,
		Name:       records[best].Name,
		Confidence: Confidence(bestDistance, threshold),
		Distance:   bestDistance,
	}
}
