package utils

import (
	"fmt"
	"net/http"
)

// AppError is an anticipated failure with a status code and a message that is
// safe to show to the client.
type AppError struct {
	StatusCode  int
	Status      string
	Message     string
	Operational bool
}

func (e *AppError) Error() string {
	return e.Message
}

// NewAppError builds an operational error. Status is "fail" for 4xx codes and
// "error" otherwise.
func NewAppError(message string, statusCode int) *AppError {
	status := "error"
	if statusCode >= 400 && statusCode < 500 {
		status = "fail"
	}
	return &AppError{
		StatusCode:  statusCode,
		Status:      status,
		Message:     message,
		Operational: true,
	}
}

func BadRequest(message string) *AppError   { return NewAppError(message, http.StatusBadRequest) }
func Unauthorized(message string) *AppError { return NewAppError(message, http.StatusUnauthorized) }
func Forbidden(message string) *AppError    { return NewAppError(message, http.StatusForbidden) }
func NotFound(message string) *AppError     { return NewAppError(message, http.StatusNotFound) }

// CastError reports a path value that could not be converted to the stored type,
// typically a malformed ObjectID.
type CastError struct {
	Path  string
	Value string
}

func (e *CastError) Error() string {
	return fmt.Sprintf("Invalid %s: %s.", e.Path, e.Value)
}
