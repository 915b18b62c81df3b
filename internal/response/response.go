// Package response renders the relay's JSON envelope. Success and error
// replies share the {status, message, data} shape so publishers can parse
// either without sniffing the HTTP status first.
package response

import (
	"encoding/json"
	"net/http"
)

type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// JSON writes a success envelope around data.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(APIResponse{
		Status: "success",
		Data:   data,
	})
}

// Accepted is the publish reply: the event was handed to the fan-out (or
// dropped as a no-op) and the relay retains nothing beyond this response.
func Accepted(w http.ResponseWriter, data any) {
	JSON(w, http.StatusAccepted, data)
}

// Error writes an error envelope with a human-readable message.
func Error(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(APIResponse{
		Status:  "error",
		Message: msg,
	})
}
