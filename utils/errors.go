package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError carries the HTTP status a failure should surface with, so the
// controllers never have to inspect error strings.
type AppError struct {
	Status  int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewInvalidInput(format string, args ...interface{}) *AppError {
	return &AppError{Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

func NewNotFound(format string, args ...interface{}) *AppError {
	return &AppError{Status: http.StatusNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewConflict(format string, args ...interface{}) *AppError {
	return &AppError{Status: http.StatusConflict, Message: fmt.Sprintf(format, args...)}
}

// NewAmountMismatch rejects an external confirmation whose amount differs
// from the recorded payment.
func NewAmountMismatch(expected, actual float64) *AppError {
	return &AppError{
		Status:  http.StatusBadRequest,
		Message: fmt.Sprintf("amount mismatch: payment records %.2f, confirmation carries %.2f", expected, actual),
	}
}

// NewMissingConfiguration flags an absent environment setting before any
// state is written.
func NewMissingConfiguration(name string) *AppError {
	return &AppError{
		Status:  http.StatusInternalServerError,
		Message: fmt.Sprintf("missing configuration: %s", name),
	}
}

// NewSettlementFailed wraps an unexpected error that rolled a settlement back.
func NewSettlementFailed(err error) *AppError {
	return &AppError{
		Status:  http.StatusInternalServerError,
		Message: "settlement failed and was rolled back",
		Err:     err,
	}
}

// StatusOf maps an error to its HTTP status, defaulting to 500 for anything
// that is not an AppError.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
