package identity

import "errors"

var (
	// ErrInvalidName is returned when a name is empty after trimming.
	ErrInvalidName = errors.New("name must not be empty")

	// ErrInvalidImage is returned when the upload cannot be decoded or has zero area.
	ErrInvalidImage = errors.New("invalid image")

	// ErrNoFaceDetected is returned when no face passes detection.
	ErrNoFaceDetected = errors.New("no face detected")

	// ErrMultipleFaces is returned by the reject policy when more than one face is found.
	ErrMultipleFaces = errors.New("multiple faces detected")

	// ErrDimensionMismatch is returned when an embedding has the wrong length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("identity not found")
)
