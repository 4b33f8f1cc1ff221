package common

import (
	"encoding/json"
	"net/http"
)

// ErrorBody represents the error payload returned by the API.
type ErrorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// JSON writes the provided value to the response writer as JSON.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONError renders an error response using the canonical error shape.
func JSONError(w http.ResponseWriter, status int, code, errMsg, message string) {
	JSON(w, status, ErrorBody{Error: errMsg, Code: code, Message: message})
}

// WriteError renders err. Only the AppError message and detail reach the
// client; any wrapped cause stays server side.
func WriteError(w http.ResponseWriter, err error) {
	appErr := AsAppError(err)
	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	JSONError(w, status, appErr.Code, appErr.Message, appErr.Detail)
}
