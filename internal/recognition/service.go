// Package recognition implements the enroll and recognize operations on top
// of the extractor, the identity store and the matcher.
package recognition

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-id/internal/database"
	"github.com/kozaktomas/face-id/internal/facematch"
	"github.com/kozaktomas/face-id/internal/identity"
	"github.com/kozaktomas/face-id/internal/metrics"
)

// Extractor turns upload bytes into one face embedding.
type Extractor interface {
	ExtractBytes(ctx context.Context, data []byte) (identity.Embedding, error)
}

// Options configures matching.
type Options struct {
	Metric    facematch.Metric
	Threshold float64
	// Candidates limits how many index candidates are re-ranked exactly.
	// Only used when the store has an HNSW index.
	Candidates int
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Service handles enroll and recognize requests.
type Service struct {
	extractor Extractor
	store     *database.Store
	opts      Options
	logger    *zap.Logger
}

// NewService creates a recognition service.
func NewService(extractor Extractor, store *database.Store, opts Options) *Service {
	if opts.Metric == "" {
		opts.Metric = facematch.MetricEuclidean
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.Metrics.SetIdentities(store.Count())
	return &Service{extractor: extractor, store: store, opts: opts, logger: logger}
}

// Threshold returns the maximum distance accepted as a match.
func (s *Service) Threshold() float64 {
	return s.opts.Threshold
}

// Enroll adds a new identity. The name is checked before the image is
// touched. Unexpected failures are returned as an error.
func (s *Service) Enroll(ctx context.Context, name string, image []byte) (Outcome, error) {
	out, err := s.enroll(ctx, name, image)
	s.observe("enroll", out, err)
	return out, err
}

func (s *Service) enroll(ctx context.Context, name string, image []byte) (Outcome, error) {
	clean, err := identity.CleanName(name)
	if err != nil {
		return invalidInput("name cannot be empty"), nil
	}
	if len(image) == 0 {
		return invalidInput("image file is empty"), nil
	}

	emb, err := s.extract(ctx, image)
	if err != nil {
		return classify(err)
	}

	rec, err := s.store.Insert(ctx, clean, emb)
	if err != nil {
		return classify(err)
	}

	s.opts.Metrics.SetIdentities(s.store.Count())
	s.logger.Info("identity enrolled", zap.String("name", rec.Name), zap.Int64("id", rec.ID))
	return Outcome{Kind: KindEnrolled, FaceID: rec.ID, Name: rec.Name}, nil
}

// Recognize finds the enrolled identity closest to the face in image.
func (s *Service) Recognize(ctx context.Context, image []byte) (Outcome, error) {
	out, err := s.recognize(ctx, image)
	s.observe("recognize", out, err)
	return out, err
}

func (s *Service) recognize(ctx context.Context, image []byte) (Outcome, error) {
	if len(image) == 0 {
		return invalidInput("image file is empty"), nil
	}

	emb, err := s.extract(ctx, image)
	if err != nil {
		return classify(err)
	}

	candidates := s.store.Candidates(emb, s.opts.Candidates)
	match := facematch.Query(emb, candidates, s.opts.Metric, s.opts.Threshold)
	if !match.Matched {
		s.logger.Info("face not recognized", zap.Int("candidates", len(candidates)))
		return Outcome{Kind: KindNoMatch}, nil
	}

	s.logger.Info("face recognized",
		zap.String("name", match.Name),
		zap.Int64("id", match.ID),
		zap.Float64("confidence", match.Confidence),
		zap.Float64("distance", match.Distance))
	return Outcome{
		Kind:       KindMatched,
		FaceID:     match.ID,
		Name:       match.Name,
		Confidence: match.Confidence,
		Distance:   match.Distance,
	}, nil
}

func (s *Service) extract(ctx context.Context, image []byte) (identity.Embedding, error) {
	start := time.Now()
	emb, err := s.extractor.ExtractBytes(ctx, image)
	s.opts.Metrics.ObserveExtraction(time.Since(start).Seconds())
	return emb, err
}

func (s *Service) observe(operation string, out Outcome, err error) {
	label := out.Kind.String()
	if err != nil {
		label = "error"
		s.logger.Error(operation+" failed", zap.Error(err))
	}
	s.opts.Metrics.ObserveOutcome(operation, label)
}

func invalidInput(detail string) Outcome {
	return Outcome{Kind: KindInvalidInput, Detail: detail}
}

// classify maps the extractor and store sentinel errors to outcomes. Any
// other error is unexpected and returned as is.
func classify(err error) (Outcome, error) {
	switch {
	case errors.Is(err, identity.ErrNoFaceDetected):
		return Outcome{Kind: KindNoFaceDetected}, nil
	case errors.Is(err, identity.ErrInvalidImage):
		return Outcome{Kind: KindInvalidImage}, nil
	case errors.Is(err, identity.ErrMultipleFaces):
		return Outcome{Kind: KindMultipleFaces}, nil
	case errors.Is(err, identity.ErrInvalidName):
		return invalidInput("name cannot be empty"), nil
	}
	return Outcome{}, err
}
