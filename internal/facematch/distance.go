package facematch

import (
	"fmt"
	"math"
	"strings"
)

// Metric names a distance function between embeddings.
type Metric string

const (
	// MetricEuclidean is the L2 distance.
	MetricEuclidean Metric = "euclidean"
	// MetricCosine is 1 - cosine similarity, in [0, 2].
	MetricCosine Metric = "cosine"
)

// ParseMetric parses a metric name, case-insensitively.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(s))); m {
	case MetricEuclidean, MetricCosine:
		return m, nil
	default:
		return "", fmt.Errorf("unknown distance metric %q (want %q or %q)", s, MetricEuclidean, MetricCosine)
	}
}

// Distance computes the distance between a and b under m. Vectors of
// different length are infinitely far apart.
func (m Metric) Distance(a, b []float32) float64 {
	switch m {
	case MetricCosine:
		return CosineDistance(a, b)
	default:
		return EuclideanDistance(a, b)
	}
}

// EuclideanDistance computes the L2 distance between two vectors.
// Returns +Inf for vectors of different or zero length.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// CosineDistance computes the cosine distance between two vectors
// Returns a value between 0 (identical) and 2 (opposite)
// Cosine distance = 1 - cosine similarity
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0 // Maximum distance for invalid input
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 2.0 // Maximum distance for zero vectors
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	similarity = max(-1, min(1, similarity))

	return 1 - similarity
}
