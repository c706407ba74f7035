package opal

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is returned for any non-success response. Resource names the
// remote object that was being read, e.g. "'CNSIM.CNSIM1' variables".
type StatusError struct {
	Resource   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("unable to read %s: %d %s", e.Resource, e.StatusCode, msg)
}

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// IsNotFound reports whether err is a 404 from Opal.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// IsUnauthorized reports whether Opal rejected the credentials.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) &&
		(se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden)
}
