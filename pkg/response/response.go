package response

import (
	"encoding/json"
	"net/http"
)

// Response represents a standard API response format
type Response struct {
	Status     string      `json:"status"`      // "success" or "error"
	StatusCode int         `json:"status_code"` // HTTP status code
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Error returns a standard error response wrapping the error message
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}

// Write encodes resp as JSON with its status code.
func Write(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteSuccess writes a success envelope around data.
func WriteSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	Write(w, Success(statusCode, data))
}

// WriteError writes an error envelope with message.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	Write(w, Error(statusCode, message))
}
