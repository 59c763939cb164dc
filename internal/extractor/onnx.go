//go:build cgo

package extractor

import (
	"context"
	"fmt"
	"image"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/kozaktomas/face-id/internal/constants"
	"github.com/kozaktomas/face-id/internal/identity"
)

const ultraFacePriors = 4420 // version-RFB-320 anchors at 320x240

// ONNXOptions locates the local face models.
type ONNXOptions struct {
	LibraryPath   string
	DetectorPath  string
	EmbedderPath  string
	EmbedderInput int
	Dim           int
	MinScore      float64
}

// ONNXDetector runs an UltraFace detector and a FaceNet/ArcFace style
// embedder with ONNX Runtime. It requires CGO and the onnxruntime shared library.
type ONNXDetector struct {
	opts ONNXOptions

	detector    *ort.AdvancedSession
	detInput    *ort.Tensor[float32]
	detScores   *ort.Tensor[float32]
	detBoxes    *ort.Tensor[float32]
	embedder    *ort.AdvancedSession
	embedInput  *ort.Tensor[float32]
	embedOutput *ort.Tensor[float32]
	mu          sync.Mutex
}

// NewONNXDetector loads both models. InitializeEnvironment is called if not already done.
func NewONNXDetector(opts ONNXOptions) (*ONNXDetector, error) {
	if opts.EmbedderInput <= 0 {
		opts.EmbedderInput = 160
	}
	if !ort.IsInitialized() {
		if opts.LibraryPath != "" {
			ort.SetSharedLibraryPath(opts.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	d := &ONNXDetector{opts: opts}
	if err := d.initDetector(); err != nil {
		d.Close()
		return nil, err
	}
	if err := d.initEmbedder(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *ONNXDetector) initDetector() error {
	var err error
	d.detInput, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 3, ultraFaceHeight, ultraFaceWidth))
	if err != nil {
		return fmt.Errorf("failed to create detector input tensor: %w", err)
	}
	d.detScores, err = ort.NewEmptyTensor[float32](ort.NewShape(1, ultraFacePriors, 2))
	if err != nil {
		return fmt.Errorf("failed to create scores tensor: %w", err)
	}
	d.detBoxes, err = ort.NewEmptyTensor[float32](ort.NewShape(1, ultraFacePriors, 4))
	if err != nil {
		return fmt.Errorf("failed to create boxes tensor: %w", err)
	}
	d.detector, err = ort.NewAdvancedSession(
		d.opts.DetectorPath,
		[]string{"input"},
		[]string{"scores", "boxes"},
		[]ort.ArbitraryTensor{d.detInput},
		[]ort.ArbitraryTensor{d.detScores, d.detBoxes},
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to create detector session: %w", err)
	}
	return nil
}

func (d *ONNXDetector) initEmbedder() error {
	size := int64(d.opts.EmbedderInput)
	var err error
	d.embedInput, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		return fmt.Errorf("failed to create embedder input tensor: %w", err)
	}
	d.embedOutput, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(d.opts.Dim)))
	if err != nil {
		return fmt.Errorf("failed to create embedder output tensor: %w", err)
	}
	d.embedder, err = ort.NewAdvancedSession(
		d.opts.EmbedderPath,
		[]string{"input"},
		[]string{"output"},
		[]ort.ArbitraryTensor{d.embedInput},
		[]ort.ArbitraryTensor{d.embedOutput},
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to create embedder session: %w", err)
	}
	return nil
}

// Detect finds faces and embeds each of them.
func (d *ONNXDetector) Detect(ctx context.Context, img image.Image) ([]Face, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	copy(d.detInput.GetData(), imageToCHW(img, ultraFaceWidth, ultraFaceHeight, 127, 128))
	if err := d.detector.Run(); err != nil {
		return nil, fmt.Errorf("detector inference failed: %w", err)
	}

	b := img.Bounds()
	faces := decodeUltraFace(d.detScores.GetData(), d.detBoxes.GetData(), d.opts.MinScore, b.Dx(), b.Dy())

	size := d.opts.EmbedderInput
	for i := range faces {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bbox := faces[i].BBox
		if bbox[2]-bbox[0] < constants.MinFaceSize || bbox[3]-bbox[1] < constants.MinFaceSize {
			continue
		}

		crop := cropFace(img, bbox)
		copy(d.embedInput.GetData(), imageToCHW(crop, size, size, 127.5, 128))
		if err := d.embedder.Run(); err != nil {
			return nil, fmt.Errorf("embedder inference failed: %w", err)
		}

		emb := make(identity.Embedding, d.opts.Dim)
		copy(emb, d.embedOutput.GetData())
		normalizeL2(emb)
		faces[i].Embedding = emb
	}
	return faces, nil
}

// Close destroys the sessions and tensors.
func (d *ONNXDetector) Close() error {
	var err error
	if d.detector != nil {
		err = d.detector.Destroy()
		d.detector = nil
	}
	if d.embedder != nil {
		if e := d.embedder.Destroy(); err == nil {
			err = e
		}
		d.embedder = nil
	}
	for _, t := range []*ort.Tensor[float32]{d.detInput, d.detScores, d.detBoxes, d.embedInput, d.embedOutput} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	d.detInput, d.detScores, d.detBoxes, d.embedInput, d.embedOutput = nil, nil, nil, nil, nil
	return err
}
