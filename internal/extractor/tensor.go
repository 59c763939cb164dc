package extractor

import (
	"image"
	"math"
	"sort"

	"golang.org/x/image/draw"

	"github.com/kozaktomas/face-id/internal/facematch"
)

const (
	ultraFaceWidth  = 320
	ultraFaceHeight = 240
	nmsIoU          = 0.3
	maxDetections   = 32
)

// imageToCHW resizes img to w x h and returns the pixels in planar RGB order,
// normalised as (v - mean) / std.
func imageToCHW(img image.Image, w, h int, mean, std float32) []float32 {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	plane := w * h
	out := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := dst.PixOffset(x, y)
			p := y*w + x
			out[p] = (float32(dst.Pix[i]) - mean) / std
			out[plane+p] = (float32(dst.Pix[i+1]) - mean) / std
			out[2*plane+p] = (float32(dst.Pix[i+2]) - mean) / std
		}
	}
	return out
}

// cropFace cuts the bounding box out of img, clamped to the image bounds.
func cropFace(img image.Image, bbox []float64) image.Image {
	b := img.Bounds()
	r := image.Rect(
		b.Min.X+int(math.Floor(bbox[0])), b.Min.Y+int(math.Floor(bbox[1])),
		b.Min.X+int(math.Ceil(bbox[2])), b.Min.Y+int(math.Ceil(bbox[3])),
	).Intersect(b)

	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Copy(dst, image.Point{}, img, r, draw.Src, nil)
	return dst
}

// decodeUltraFace converts the raw detector outputs into pixel-space faces.
// scores holds [background, face] pairs and boxes holds relative
// [x1, y1, x2, y2] quads, one per prior.
func decodeUltraFace(scores, boxes []float32, minScore float64, width, height int) []Face {
	n := min(len(scores)/2, len(boxes)/4)
	var faces []Face
	for i := 0; i < n; i++ {
		score := float64(scores[2*i+1])
		if score < minScore {
			continue
		}
		rel := []float64{
			float64(boxes[4*i]), float64(boxes[4*i+1]),
			float64(boxes[4*i+2]), float64(boxes[4*i+3]),
		}
		faces = append(faces, Face{
			Score: score,
			BBox:  facematch.ConvertRelativeBBoxToPixel(rel, width, height),
		})
	}
	return nonMaxSuppression(faces, nmsIoU, maxDetections)
}

// nonMaxSuppression keeps the highest scoring boxes, dropping any box that
// overlaps an already kept one by more than iouThreshold. Kept faces are
// re-indexed in score order.
func nonMaxSuppression(faces []Face, iouThreshold float64, limit int) []Face {
	sort.SliceStable(faces, func(i, j int) bool {
		return faces[i].Score > faces[j].Score
	})

	var kept []Face
	for _, f := range faces {
		if len(kept) == limit {
			break
		}
		overlaps := false
		for _, k := range kept {
			if facematch.ComputeIoU(f.BBox, k.BBox) > iouThreshold {
				overlaps = true
				break
			}
		}
		if !overlaps {
			f.Index = len(kept)
			kept = append(kept, f)
		}
	}
	return kept
}

// normalizeL2 normalizes the slice in place to unit L2 norm.
func normalizeL2(x []float32) {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(1.0 / math.Sqrt(sum))
	for i := range x {
		x[i] *= norm
	}
}
