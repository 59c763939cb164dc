// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Image processing constants
const (
	// MaxImageSize is the maximum dimension (width or height) for image processing.
	// Larger images are downscaled before detection.
	MaxImageSize = 1920

	// MaxDecodePixels caps width*height read from an image header before decoding
	MaxDecodePixels = 50_000_000

	// MinFaceSize is the minimum side length in pixels of a usable face crop
	MinFaceSize = 16
)

// Matching constants
const (
	// DefaultEmbeddingDim is the embedding length produced by the default models
	DefaultEmbeddingDim = 128

	// DefaultHNSWCandidates is the number of approximate neighbours re-ranked exactly
	DefaultHNSWCandidates = 16
)

// Processing constants
const (
	// WorkerPoolSize is the default number of parallel workers for bulk enrollment
	WorkerPoolSize = 4

	// WatchDebounce is the delay in milliseconds after the last filesystem event
	// before a watched file is enrolled
	WatchDebounce = 500
)
