// Package handlers wires the HTTP surface: the OpenAI-compatible chat
// endpoints, the admin API, and the self-service key operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

const (
	errTypeInvalidRequest = "invalid_request_error"
	errTypeAuth           = "authentication_error"
	errTypeUpstream       = "upstream_error"
	errTypeInternal       = "internal_error"
)

// writeError emits the OpenAI-style error envelope.
func writeError(w http.ResponseWriter, status int, message, errType string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"type":    errType,
			"code":    status,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// setSSEHeaders prepares a response for server-sent events.
func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// userIDParam parses the {userID} route parameter.
func userIDParam(r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "userID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// completionID derives the response identifier from the credential the
// caller authenticated with. Never from the upstream token, which is
// secret material.
func completionID(callerKey string) string {
	prefix := strings.TrimSpace(callerKey)
	if len(prefix) > 6 {
		prefix = prefix[:6]
	}
	return "chat$poe-to-gpt$-" + prefix
}
