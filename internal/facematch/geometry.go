// Package facematch implements nearest-identity matching over face
// embeddings plus the bounding-box geometry used to pick a face.
package facematch

// BBoxArea returns the area of an [x1, y1, x2, y2] box, or 0 for malformed
// or inverted boxes.
func BBoxArea(bbox []float64) float64 {
	if len(bbox) != 4 {
		return 0
	}
	w := bbox[2] - bbox[0]
	h := bbox[3] - bbox[1]
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// ComputeIoU calculates Intersection over Union between two bounding boxes.
// bbox1 and bbox2 are [x1, y1, x2, y2] in the same coordinate system.
func ComputeIoU(bbox1, bbox2 []float64) float64 {
	if len(bbox1) != 4 || len(bbox2) != 4 {
		return 0
	}

	// Calculate intersection.
	x1 := max(bbox1[0], bbox2[0])
	y1 := max(bbox1[1], bbox2[1])
	x2 := min(bbox1[2], bbox2[2])
	y2 := min(bbox1[3], bbox2[3])

	if x2 <= x1 || y2 <= y1 {
		return 0 // No intersection
	}

	intersection := (x2 - x1) * (y2 - y1)
	union := BBoxArea(bbox1) + BBoxArea(bbox2) - intersection

	if union <= 0 {
		return 0
	}

	return intersection / union
}

// ConvertRelativeBBoxToPixel converts a relative (0-1) [x1, y1, x2, y2] box
// to pixel coordinates, clamped to the image bounds.
func ConvertRelativeBBoxToPixel(bbox []float64, width, height int) []float64 {
	if len(bbox) != 4 || width <= 0 || height <= 0 {
		return bbox
	}
	w, h := float64(width), float64(height)
	return []float64{
		clamp(bbox[0]*w, 0, w),
		clamp(bbox[1]*h, 0, h),
		clamp(bbox[2]*w, 0, w),
		clamp(bbox[3]*h, 0, h),
	}
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}
