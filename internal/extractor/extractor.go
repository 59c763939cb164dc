// Package extractor turns an uploaded photo into a single face embedding.
//
// Detection and embedding are delegated to a Detector backend (the remote
// face embedding server or local ONNX models); this package owns decoding,
// downscaling, face selection and dimension checks.
package extractor

import (
	"context"
	"crypto/sha256"
	"fmt"
	"image"

	"github.com/kozaktomas/face-id/internal/facematch"
	"github.com/kozaktomas/face-id/internal/identity"
)

// Face is a single face found by a Detector.
type Face struct {
	Index     int
	BBox      []float64 // [x1, y1, x2, y2] in pixels
	Score     float64
	Embedding identity.Embedding
}

// Detector finds faces in an image and computes their embeddings.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Face, error)
	Close() error
}

// MultiFacePolicy decides what happens when a photo contains several faces.
type MultiFacePolicy string

const (
	PolicyLargest MultiFacePolicy = "largest"
	PolicyReject  MultiFacePolicy = "reject"
)

// ParseMultiFacePolicy parses a policy name.
func ParseMultiFacePolicy(s string) (MultiFacePolicy, error) {
	switch MultiFacePolicy(s) {
	case PolicyLargest, "":
		return PolicyLargest, nil
	case PolicyReject:
		return PolicyReject, nil
	}
	return "", fmt.Errorf("unknown multi-face policy %q", s)
}

type Options struct {
	Dim       int
	Policy    MultiFacePolicy
	MinScore  float64
	CacheSize int
}

// Extractor produces embeddings from images.
type Extractor struct {
	detector Detector
	opts     Options
	cache    *Cache
}

// New creates an extractor on top of the given detector.
func New(detector Detector, opts Options) (*Extractor, error) {
	if opts.Dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", opts.Dim)
	}
	if opts.Policy == "" {
		opts.Policy = PolicyLargest
	}
	cache, err := NewCache(opts.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Extractor{detector: detector, opts: opts, cache: cache}, nil
}

// State reports the detector's circuit breaker state, or "" when the
// detector has none.
func (e *Extractor) State() string {
	if b, ok := e.detector.(interface{ State() string }); ok {
		return b.State()
	}
	return ""
}

// Dim returns the embedding dimension every result is checked against.
func (e *Extractor) Dim() int {
	return e.opts.Dim
}

// ExtractBytes decodes raw upload bytes and extracts the embedding of the
// selected face. Successful results are cached by content hash.
func (e *Extractor) ExtractBytes(ctx context.Context, data []byte) (identity.Embedding, error) {
	key := sha256.Sum256(data)
	if emb, ok := e.cache.Get(key); ok {
		return emb, nil
	}

	img, err := Decode(data)
	if err != nil {
		return nil, err
	}

	emb, err := e.Extract(ctx, img)
	if err != nil {
		return nil, err
	}
	e.cache.Add(key, emb)
	return emb.Clone(), nil
}

// Extract runs detection on a decoded image and returns one embedding.
func (e *Extractor) Extract(ctx context.Context, img image.Image) (identity.Embedding, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("empty image: %w", identity.ErrInvalidImage)
	}

	img = Downscale(img)

	faces, err := e.detector.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("detecting faces: %w", err)
	}

	face, err := e.selectFace(faces)
	if err != nil {
		return nil, err
	}

	if face.Embedding.Dim() != e.opts.Dim {
		return nil, fmt.Errorf("got %d-dim embedding, expected %d: %w",
			face.Embedding.Dim(), e.opts.Dim, identity.ErrDimensionMismatch)
	}
	return face.Embedding.Clone(), nil
}

// Close releases the detector.
func (e *Extractor) Close() error {
	return e.detector.Close()
}

func (e *Extractor) selectFace(faces []Face) (Face, error) {
	var usable []Face
	for _, f := range faces {
		if f.Score >= e.opts.MinScore && len(f.Embedding) > 0 {
			usable = append(usable, f)
		}
	}

	switch {
	case len(usable) == 0:
		return Face{}, identity.ErrNoFaceDetected
	case len(usable) == 1:
		return usable[0], nil
	case e.opts.Policy == PolicyReject:
		return Face{}, fmt.Errorf("%d faces found: %w", len(usable), identity.ErrMultipleFaces)
	}

	return largestFace(usable), nil
}

// largestFace picks the face with the biggest bounding box. Ties go to the
// higher detection score, then to the lower detection index.
func largestFace(faces []Face) Face {
	best := faces[0]
	bestArea := facematch.BBoxArea(best.BBox)
	for _, f := range faces[1:] {
		area := facematch.BBoxArea(f.BBox)
		switch {
		case area > bestArea:
		case area == bestArea && f.Score > best.Score:
		case area == bestArea && f.Score == best.Score && f.Index < best.Index:
		default:
			continue
		}
		best, bestArea = f, area
	}
	return best
}
