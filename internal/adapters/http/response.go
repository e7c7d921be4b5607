package http

import (
	"encoding/json"
	"net/http"
)

// envelope is the uniform response shape: clients switch on status alone,
// then read data for payloads or message for confirmations.
type envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

type apiError struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, envelope{Status: "success", Data: data})
}

func writeMessage(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, envelope{Status: "success", Message: message})
}

// writeCollection renders a paged listing: the items under their domain key
// (payments, withdrawals, syncs) plus the pre-pagination total.
func writeCollection(w http.ResponseWriter, key string, items any, total int) {
	writeSuccess(w, http.StatusOK, map[string]any{
		key:     items,
		"total": total,
	})
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, apiError{
		Status:  "error",
		Code:    code,
		Message: message,
	})
}
