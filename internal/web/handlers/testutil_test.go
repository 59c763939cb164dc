package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-id/internal/database"
	"github.com/kozaktomas/face-id/internal/facematch"
	"github.com/kozaktomas/face-id/internal/identity"
	"github.com/kozaktomas/face-id/internal/recognition"
)

// fakeExtractor maps image bytes to embeddings; unknown bytes have no face.
type fakeExtractor map[string]any

func (f fakeExtractor) ExtractBytes(_ context.Context, data []byte) (identity.Embedding, error) {
	switch v := f[string(data)].(type) {
	case identity.Embedding:
		return v.Clone(), nil
	case error:
		return nil, v
	}
	return nil, identity.ErrNoFaceDetected
}

// newTestStore creates an empty 2-dim in-memory store.
func newTestStore(t *testing.T) *database.Store {
	t.Helper()
	store, err := database.NewStore(context.Background(), database.NewMemoryBackend(), database.Options{Dim: 2})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// newTestService wires a recognition service over store.
func newTestService(store *database.Store, ex fakeExtractor) *recognition.Service {
	return recognition.NewService(ex, store, recognition.Options{
		Metric:    facematch.MetricEuclidean,
		Threshold: 0.6,
	})
}

// formFile is one file part of a multipart request.
type formFile struct {
	filename string
	data     []byte
}

// multipartRequest builds a multipart POST with the given fields and optional image.
func multipartRequest(t *testing.T, path string, fields map[string]string, image *formFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	if image != nil {
		part, err := mw.CreateFormFile("image", image.filename)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write(image.data)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertMessage checks the message and category of a form response
func assertMessage(t *testing.T, recorder *httptest.ResponseRecorder, category, message string) {
	t.Helper()
	var result map[string]any
	parseJSONResponse(t, recorder, &result)
	if result["category"] != category {
		t.Errorf("expected category '%s', got '%v'", category, result["category"])
	}
	if result["message"] != message {
		t.Errorf("expected message '%s', got '%v'", message, result["message"])
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
