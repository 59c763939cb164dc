//go:build !cgo

package extractor

import (
	"context"
	"errors"
	"image"
)

// ONNXOptions locates the local face models.
type ONNXOptions struct {
	LibraryPath   string
	DetectorPath  string
	EmbedderPath  string
	EmbedderInput int
	Dim           int
	MinScore      float64
}

// ONNXDetector stub type when built without CGO (see onnx.go for real implementation).
type ONNXDetector struct{}

// NewONNXDetector returns an error when built without CGO (ONNX not available).
func NewONNXDetector(_ ONNXOptions) (*ONNXDetector, error) {
	return nil, errors.New("ONNX detector requires CGO; build with CGO_ENABLED=1 and onnxruntime")
}

func (d *ONNXDetector) Detect(context.Context, image.Image) ([]Face, error) {
	return nil, errors.New("ONNX detector not available")
}

func (d *ONNXDetector) Close() error { return nil }
