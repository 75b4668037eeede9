package utils

import (
	"errors"
	"net/http"
)

var ErrorRecordNotFound = errors.New("record not found")

// ApiError carries an HTTP status alongside a client-safe message.
// Handlers map any other error to a generic 500.
type ApiError struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

func (e *ApiError) Error() string {
	return e.Message
}

func NewNotFoundError(message string) *ApiError {
	if message == "" {
		message = "record not found"
	}
	return &ApiError{StatusCode: http.StatusNotFound, Message: message}
}

func NewValidationError(message string) *ApiError {
	return &ApiError{StatusCode: http.StatusBadRequest, Message: message}
}

func NewInternalError(message string) *ApiError {
	if message == "" {
		message = "internal server error"
	}
	return &ApiError{StatusCode: http.StatusInternalServerError, Message: message}
}
