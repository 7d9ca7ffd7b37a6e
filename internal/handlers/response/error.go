package response

import (
	"encoding/json"
	"net/http"
)

// ErrorMessage is the body of every failed API call
type ErrorMessage struct {
	Message    string `json:"msg"`
	StatusCode int    `json:"status_code"`
	Expired    bool   `json:"expired,omitempty"`
}

func WriteError(w http.ResponseWriter, err ErrorMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	_ = json.NewEncoder(w).Encode(err)
}

func Error(w http.ResponseWriter, message string, code int) {
	WriteError(w, ErrorMessage{Message: message, StatusCode: code})
}

func WriteSuccess(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusOK, data)
}

func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
