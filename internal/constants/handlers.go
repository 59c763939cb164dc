package constants

// Form field names
const (
	// FieldName is the multipart field carrying the person's name
	FieldName = "name"

	// FieldImage is the multipart field carrying the photo
	FieldImage = "image"
)

// Response categories
const (
	CategorySuccess = "success"
	CategoryWarning = "warning"
	CategoryError   = "error"
)

// File upload constants
const (
	// MaxUploadSize is the default maximum upload size in bytes (16MB)
	MaxUploadSize = 16 << 20
)

// Identity listing constants
const (
	// DefaultHandlerPageSize is the page size for the identity listing endpoint
	DefaultHandlerPageSize = 100

	// MaxHandlerPageSize caps the limit query parameter
	MaxHandlerPageSize = 1000
)
