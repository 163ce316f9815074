package sigverifier

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoSession is returned by session calls made before CreateSession
var ErrNoSession = errors.New("no session token")

// APIError is a non-2xx answer from the service
type APIError struct {
	StatusCode int
	Code       string // the "error" field of the response
	Message    string
	RetryAfter int // seconds, set on 429
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sigverifier: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsRateLimited reports whether err is a 429 from the service
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// IsUnauthorized reports whether err is a 401 from the service
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}
