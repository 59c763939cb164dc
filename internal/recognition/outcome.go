package recognition

import "fmt"

// Kind tags the result of an enroll or recognize call.
type Kind int

const (
	KindEnrolled Kind = iota + 1
	KindMatched
	KindNoMatch
	KindNoFaceDetected
	KindInvalidImage
	KindInvalidInput
	KindMultipleFaces
)

var kindNames = map[Kind]string{
	KindEnrolled:       "enrolled",
	KindMatched:        "matched",
	KindNoMatch:        "no_match",
	KindNoFaceDetected: "no_face_detected",
	KindInvalidImage:   "invalid_image",
	KindInvalidInput:   "invalid_input",
	KindMultipleFaces:  "multiple_faces",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsClientError reports whether the outcome is the caller's fault (HTTP 400).
func (k Kind) IsClientError() bool {
	switch k {
	case KindNoFaceDetected, KindInvalidImage, KindInvalidInput, KindMultipleFaces:
		return true
	}
	return false
}

// Outcome is the result of a request that did not fail unexpectedly.
type Outcome struct {
	Kind Kind

	// Enrolled
	FaceID int64

	// Enrolled and Matched
	Name string

	// Matched
	Confidence float64
	Distance   float64

	// Detail explains InvalidInput outcomes.
	Detail string
}

// Message is the user-facing text for the outcome.
func (o Outcome) Message() string {
	switch o.Kind {
	case KindEnrolled:
		return "Successfully added: " + o.Name
	case KindMatched:
		return "Recognized: " + o.Name
	case KindNoMatch:
		return "Unknown person. This person is not in the database."
	case KindNoFaceDetected:
		return "Error: no face detected in the photo. Make sure the face is clearly visible."
	case KindInvalidImage:
		return "Error: could not read the image. The file may be corrupted."
	case KindMultipleFaces:
		return "Error: more than one face detected. Upload a photo with a single face."
	case KindInvalidInput:
		return "Error: " + o.Detail
	}
	return "Error: unknown outcome"
}
