package api

import (
	"errors"
	"fmt"
)

// ErrTooManyPairs is returned when the server refuses to page a job space
// because it holds more pairs than it will display.
var ErrTooManyPairs = errors.New("too many job pairs to display")

// codeTooManyPairs is the status code the pairs endpoint uses for ErrTooManyPairs.
const codeTooManyPairs = 1

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s failed: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s failed: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// ServerError is a 2xx response whose envelope reports success=false.
type ServerError struct {
	Op      string
	Code    int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s refused by server (code %d)", e.Op, e.Code)
	}
	return fmt.Sprintf("%s refused by server: %s", e.Op, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == 404
}

// ServerCode returns the envelope code of a ServerError in err's chain.
func ServerCode(err error) (int, bool) {
	var se *ServerError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}
