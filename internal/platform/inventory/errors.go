package inventory

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrConnection indicates the service could not be reached.
	ErrConnection = errors.New("inventory service connection failed")
	// ErrTimeout indicates a request exceeded its deadline.
	ErrTimeout = errors.New("inventory service request timed out")
	// ErrNotFound indicates the host or hostgroup does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnacceptable indicates the service rejected the request outright.
	ErrUnacceptable = errors.New("request not acceptable")
)

// ServiceError is a non-2xx response from the Inventory Service.
type ServiceError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("inventory API error (%s %s, status %d): %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Is maps status codes onto the package sentinels.
func (e *ServiceError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnacceptable:
		return e.StatusCode == http.StatusNotAcceptable
	}
	return false
}

// IsTransient reports whether err is a connection failure or timeout that
// may succeed on retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrConnection) || errors.Is(err, ErrTimeout)
}

// IsNotFound reports whether err indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnacceptable reports whether the service rejected the request.
func IsUnacceptable(err error) bool {
	return errors.Is(err, ErrUnacceptable)
}
