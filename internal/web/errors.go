package web

import (
	"errors"
	"net/http"
)

// Error is an error with an HTTP status and a message safe to show users.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

func NewError(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

var (
	ErrNotFound = NewError(http.StatusNotFound, "Page not found")
	// ErrNoSession is returned by the auth gate of JSON endpoints.
	ErrNoSession = NewError(http.StatusUnauthorized, "not authenticated")
)

// StatusOf returns the HTTP status carried by err, or 500.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the user-facing message for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Something went wrong"
}

// ErrorView is the data of the error and not-found pages.
type ErrorView struct {
	Status  int
	Message string
}
