package gotrue

import (
	"errors"
	"fmt"
)

// ServiceError is returned when the service answered with a status other than the one the
// operation expects. Message holds the body's "msg" field and is nil when absent.
type ServiceError struct {
	Code    int
	Message *string
}

func (e *ServiceError) Error() string {
	if e.Message == nil {
		return fmt.Sprintf("gotrue: status %d", e.Code)
	}
	return fmt.Sprintf("gotrue: status %d: %s", e.Code, *e.Message)
}

// TransportError reports a failure before a usable response was obtained:
// connection errors, timeouts, request encoding or an unparseable response body.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gotrue: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AsServiceError returns the ServiceError wrapped in err, if any.
func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsTransportError reports whether err carries a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
