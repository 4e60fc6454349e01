package main

import (
	"errors"
	"fmt"
)

// Request errors. Each one ends the request with a terminal response.
var (
	// ErrMalformedRequest indicates the request line could not be split into
	// METHOD PATH PROTOCOL
	ErrMalformedRequest = errors.New("malformed request")

	// ErrUnsupportedMethod indicates a method other than GET
	ErrUnsupportedMethod = errors.New("unsupported method")

	// ErrForbidden indicates a traversal attempt or a path outside the document root
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates the target does not exist or could not be read
	ErrNotFound = errors.New("not found")

	// ErrIO indicates the file could not be loaded for a reason other than its absence
	ErrIO = errors.New("i/o failure")

	// ErrSendFailure indicates part of the response could not be written
	ErrSendFailure = errors.New("send failure")
)

// RequestError is a failure that is reported to the client as an error response.
type RequestError struct {
	Status  int
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func requestError(status int, message string, err error) *RequestError {
	return &RequestError{Status: status, Message: message, Err: err}
}
