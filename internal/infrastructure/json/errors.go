package json

import (
	"net/http"
	"strconv"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	_ = Write(w, status, ErrorResponse{Error: http.StatusText(status), Message: msg})
}

func WriteValidationError(w http.ResponseWriter, err error) {
	WriteError(w, http.StatusBadRequest, err.Error())
}

func WriteBadRequestError(w http.ResponseWriter, msg string) {
	WriteError(w, http.StatusBadRequest, msg)
}

// WriteRejection reports a refused intent. The reason is machine readable
// and the message is what the user would see.
func WriteRejection(w http.ResponseWriter, status int, reason, msg string) {
	_ = Write(w, status, ErrorResponse{Error: http.StatusText(status), Reason: reason, Message: msg})
}

func WriteInternalError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, "An unexpected error occurred")
}

func WriteUnavailableError(w http.ResponseWriter, msg string) {
	WriteError(w, http.StatusServiceUnavailable, msg)
}

func WriteRateLimitError(w http.ResponseWriter, retryAfter int) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}
	WriteError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
}
