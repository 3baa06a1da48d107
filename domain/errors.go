package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when a learner submits an empty or
	// whitespace-only utterance. Nothing is recorded and no service is called.
	ErrInvalidInput = errors.New("invalid input")

	// ErrServiceUnavailable wraps any failure of an external service
	// (transcription, translation, completion, synthesis).
	ErrServiceUnavailable = errors.New("service unavailable")

	ErrSessionNotFound = errors.New("session not found")
	ErrSessionBusy     = errors.New("session is processing another turn")
)

// ServiceError names the external service that failed.
type ServiceError struct {
	Service string
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Service, ErrServiceUnavailable, e.Err)
}

func (e *ServiceError) Unwrap() []error {
	return []error{ErrServiceUnavailable, e.Err}
}

// Unavailable wraps err so that errors.Is(err, ErrServiceUnavailable) holds.
func Unavailable(service string, err error) error {
	if err == nil {
		err = errors.New("no result")
	}
	return &ServiceError{Service: service, Err: err}
}
