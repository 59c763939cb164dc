package extractor

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-id/internal/config"
)

// NewFromConfig builds the extractor selected by EXTRACTOR_BACKEND.
func NewFromConfig(cfg *config.Config, logger *zap.Logger) (*Extractor, error) {
	ec := cfg.Extractor

	var detector Detector
	switch ec.Backend {
	case "remote":
		detector = NewRemoteDetector(ec.URL, ec.Timeout, logger)
	case "onnx":
		d, err := NewONNXDetector(ONNXOptions{
			LibraryPath:   ec.ONNX.LibraryPath,
			DetectorPath:  ec.ONNX.DetectorPath,
			EmbedderPath:  ec.ONNX.EmbedderPath,
			EmbedderInput: ec.ONNX.EmbedderInput,
			Dim:           ec.Dim,
			MinScore:      ec.MinScore,
		})
		if err != nil {
			return nil, err
		}
		detector = d
	default:
		return nil, fmt.Errorf("unknown extractor backend %q", ec.Backend)
	}

	policy, err := ParseMultiFacePolicy(ec.MultiFacePolicy)
	if err != nil {
		detector.Close()
		return nil, err
	}

	ex, err := New(detector, Options{
		Dim:       ec.Dim,
		Policy:    policy,
		MinScore:  ec.MinScore,
		CacheSize: ec.CacheSize,
	})
	if err != nil {
		detector.Close()
		return nil, err
	}
	return ex, nil
}
