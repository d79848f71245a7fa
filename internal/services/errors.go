package services

import (
	"errors"
	"net/http"

	"github.com/supabros/bookstore/internal/store"
)

// ValidationError rejects a request before anything is charged or written.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// PaymentError carries the gateway's decline text verbatim.
type PaymentError struct {
	Message string
}

func (e *PaymentError) Error() string { return e.Message }

// ConflictError reports a state that no longer allows the requested change.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// NotFoundError names the missing resource in the response message.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

func (e *NotFoundError) Unwrap() error { return store.ErrNotFound }

func invalid(msg string) error  { return &ValidationError{Message: msg} }
func conflict(msg string) error { return &ConflictError{Message: msg} }
func notFound(msg string) error { return &NotFoundError{Message: msg} }

// StatusFor maps a service error to its HTTP status code.
func StatusFor(err error) int {
	var (
		ve *ValidationError
		pe *PaymentError
		ce *ConflictError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &pe), errors.As(err, &ce):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Title is the short error heading rendered next to the message.
func Title(err error) string {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return "Payment failed"
	}
	return http.StatusText(StatusFor(err))
}
