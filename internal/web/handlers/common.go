package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
)

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// messageResponse is the body the upload form reads.
type messageResponse struct {
	Message  string `json:"message"`
	Category string `json:"category"`
}

// respondMessage sends a message for the upload form.
func respondMessage(w http.ResponseWriter, status int, category, message string) {
	respondJSON(w, status, messageResponse{Message: message, Category: category})
}

// ExtractorState reports the face extractor's circuit breaker state.
// An empty string means the extractor has no breaker.
type ExtractorState interface {
	State() string
}

// HealthCheck returns the health check handler. The extractor breaker state
// is included when extractor is non-nil.
func HealthCheck(extractor ExtractorState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{"status": "ok"}
		if extractor != nil {
			if state := extractor.State(); state != "" {
				body["extractor"] = state
			}
		}
		respondJSON(w, http.StatusOK, body)
	}
}
