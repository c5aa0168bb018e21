package api

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the standard error shape
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Result is the (success, message) pair every mutating operation answers
// with; Data carries any richer payload for queries.
type Result struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// WriteError writes a standardized JSON error response
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Success: false,
		Code:    code,
		Message: message,
	})
}

// WriteResult writes a standardized JSON result response
func WriteResult(w http.ResponseWriter, statusCode int, res Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(res)
}

// WriteJSON writes an arbitrary JSON payload
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}
