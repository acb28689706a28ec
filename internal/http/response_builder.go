package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// APIResponse builds the JSON envelope every action answers with:
// a success flag plus action-specific fields. The HTTP status is always
// 200 because the legacy client only reads the success flag.
type APIResponse struct {
	fields map[string]any
}

func NewAPIResponse() *APIResponse {
	return &APIResponse{fields: map[string]any{"success": true}}
}

// Failure is a response with success=false and the given message.
func Failure(message string) *APIResponse {
	return NewAPIResponse().Set("success", false).Message(message)
}

func (b *APIResponse) Set(key string, value any) *APIResponse {
	b.fields[key] = value
	return b
}

func (b *APIResponse) Message(message string) *APIResponse {
	return b.Set("message", message)
}

func (b *APIResponse) Write(w http.ResponseWriter) {
	body, err := json.Marshal(b.fields)
	if err != nil {
		slog.Error("Failed to encode API response", "error", err)
		body = []byte(`{"success":false,"message":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
