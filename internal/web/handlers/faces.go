package handlers

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-id/internal/constants"
	"github.com/kozaktomas/face-id/internal/identity"
	"github.com/kozaktomas/face-id/internal/recognition"
	"github.com/kozaktomas/face-id/internal/web/static"
)

// FaceService enrolls and recognizes faces.
type FaceService interface {
	Enroll(ctx context.Context, name string, image []byte) (recognition.Outcome, error)
	Recognize(ctx context.Context, image []byte) (recognition.Outcome, error)
}

// FacesHandler serves the upload page and the enroll and recognize endpoints.
type FacesHandler struct {
	service   FaceService
	page      *template.Template
	maxUpload int64
	logger    *zap.Logger
}

// NewFacesHandler creates a new faces handler. maxUpload is in bytes; zero
// uses constants.MaxUploadSize.
func NewFacesHandler(service FaceService, maxUpload int64, logger *zap.Logger) (*FacesHandler, error) {
	page, err := static.Template()
	if err != nil {
		return nil, fmt.Errorf("parsing upload page: %w", err)
	}
	if maxUpload <= 0 {
		maxUpload = constants.MaxUploadSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FacesHandler{service: service, page: page, maxUpload: maxUpload, logger: logger}, nil
}

// EnrollPage renders the form for adding a person.
func (h *FacesHandler) EnrollPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, static.PageData{Title: "Face ID - add a person"})
}

// RecognizePage renders the form for recognizing a photo.
func (h *FacesHandler) RecognizePage(w http.ResponseWriter, r *http.Request) {
	h.render(w, static.PageData{Title: "Face ID - recognize", Recognize: true})
}

func (h *FacesHandler) render(w http.ResponseWriter, data static.PageData) {
	data.MaxSizeMB = h.maxUpload >> 20
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.page.Execute(w, data); err != nil {
		h.logger.Error("rendering upload page", zap.Error(err))
	}
}

const (
	msgNoImage     = "Error: no image file selected"
	msgInvalidForm = "Error: invalid form data"
)

type enrollResponse struct {
	Message  string `json:"message"`
	Category string `json:"category"`
	FaceID   int64  `json:"face_id"`
}

// Enroll handles POST / with fields name and image.
func (h *FacesHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}

	name := r.FormValue(constants.FieldName)
	image, present, err := readImage(r)
	if err != nil {
		h.uploadError(w, err)
		return
	}
	// An empty name is reported before a missing photo.
	if _, nameErr := identity.CleanName(name); !present && nameErr == nil {
		respondMessage(w, http.StatusBadRequest, constants.CategoryError, msgNoImage)
		return
	}

	out, err := h.service.Enroll(r.Context(), name, image)
	if err != nil {
		h.serverError(w, "enroll", err)
		return
	}
	if out.Kind != recognition.KindEnrolled {
		h.respondOutcome(w, out)
		return
	}

	respondJSON(w, http.StatusOK, enrollResponse{
		Message:  out.Message(),
		Category: constants.CategorySuccess,
		FaceID:   out.FaceID,
	})
}

type recognizeResponse struct {
	Name       *string  `json:"name"`
	Confidence *float64 `json:"confidence,omitempty"`
	FaceID     int64    `json:"face_id,omitempty"`
	Category   string   `json:"category"`
	Message    string   `json:"message"`
}

// Recognize handles POST /recognize with field image.
func (h *FacesHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}

	image, present, err := readImage(r)
	if err != nil {
		h.uploadError(w, err)
		return
	}
	if !present {
		respondMessage(w, http.StatusBadRequest, constants.CategoryError, msgNoImage)
		return
	}

	out, err := h.service.Recognize(r.Context(), image)
	if err != nil {
		h.serverError(w, "recognize", err)
		return
	}

	switch out.Kind {
	case recognition.KindMatched:
		respondJSON(w, http.StatusOK, recognizeResponse{
			Name:       &out.Name,
			Confidence: &out.Confidence,
			FaceID:     out.FaceID,
			Category:   constants.CategorySuccess,
			Message:    out.Message(),
		})
	case recognition.KindNoMatch:
		respondJSON(w, http.StatusOK, recognizeResponse{
			Category: constants.CategoryWarning,
			Message:  out.Message(),
		})
	default:
		h.respondOutcome(w, out)
	}
}

// parseForm reads the multipart body, capped at maxUpload.
func (h *FacesHandler) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	err := r.ParseMultipartForm(h.maxUpload)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondMessage(w, http.StatusRequestEntityTooLarge, constants.CategoryError,
			fmt.Sprintf("Error: image file is too large (limit %d MB)", h.maxUpload>>20))
		return false
	}
	respondMessage(w, http.StatusBadRequest, constants.CategoryError, msgInvalidForm)
	return false
}

// readImage returns the uploaded image bytes and whether a file was sent.
func readImage(r *http.Request) ([]byte, bool, error) {
	file, header, err := r.FormFile(constants.FieldImage)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer file.Close()

	if header.Filename == "" {
		return nil, false, nil
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (h *FacesHandler) uploadError(w http.ResponseWriter, err error) {
	h.logger.Warn("reading upload failed", zap.Error(err))
	respondMessage(w, http.StatusBadRequest, constants.CategoryError, msgInvalidForm)
}

func (h *FacesHandler) respondOutcome(w http.ResponseWriter, out recognition.Outcome) {
	status := http.StatusOK
	category := constants.CategorySuccess
	if out.Kind.IsClientError() {
		status = http.StatusBadRequest
		category = constants.CategoryError
	}
	respondMessage(w, status, category, out.Message())
}

func (h *FacesHandler) serverError(w http.ResponseWriter, operation string, err error) {
	h.logger.Error("request failed", zap.String("operation", operation), zap.Error(err))
	respondMessage(w, http.StatusInternalServerError, constants.CategoryError,
		"Server error: "+sanitizeForLog(err.Error()))
}
