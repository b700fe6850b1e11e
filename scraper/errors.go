package scraper

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aluiziolira/go-scrape-hal/parser"
)

// Exchange steps.
const (
	StepPrime = "prime"
	StepData  = "data"
)

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrStatus indicates a non-200 response on one step of the exchange.
type ErrStatus struct {
	Step       string
	StatusCode int
}

func (e ErrStatus) Error() string {
	return fmt.Sprintf("%s request failed: status %d", e.Step, e.StatusCode)
}

// ErrRequest wraps any other failure to issue a request.
type ErrRequest struct {
	Step string
	Err  error
}

func (e ErrRequest) Error() string {
	return fmt.Errorf("%s request: %w", e.Step, e.Err).Error()
}

func (e ErrRequest) Unwrap() error {
	return e.Err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var blocked *parser.BlockedError
	if errors.As(err, &blocked) {
		return "blocked"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var status ErrStatus
	if errors.As(err, &status) {
		switch status.StatusCode {
		case http.StatusForbidden:
			return "forbidden"
		case http.StatusNotFound:
			return "not_found"
		case http.StatusTooManyRequests:
			return "rate_limited"
		default:
			return "status"
		}
	}
	return "other"
}

// ErrorLabel returns the metric label for a failure outcome's error.
func ErrorLabel(err error) string {
	return errorTypeLabel(err)
}
