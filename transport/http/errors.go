package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/sigverifier/core"
)

const (
	msgInvalidSignature    = "Invalid signature for this message"
	msgVerifyMismatch      = "Signature does not match expected signer address"
	msgSessionMismatch     = "Signature does not match wallet address"
	msgInvalidSession      = "Invalid or expired session"
	msgInvalidAccessToken  = "Invalid or expired access token"
	msgSessionDestroyed    = "Session destroyed successfully"
	msgUnexpected          = "An unexpected error occurred"
	titleValidation        = "Validation failed"
	titleTooManyRequests   = "Too many requests"
	titleInternal          = "Internal server error"
	titleNotFound          = "Not found"
	msgMalformedBody       = "Request body must be a JSON object with string fields"
	msgRateLimitedTemplate = "Rate limit exceeded. Please try again in %d second(s)."
)

// APIError is an error with a fixed HTTP rendering. Handlers attach it to
// the gin context and ErrorHandler writes it.
type APIError struct {
	Status     int
	Title      string // rendered as "error"
	Message    string
	RetryAfter int // seconds, only for 429
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func unauthorized(message string, err error) *APIError {
	return &APIError{Status: http.StatusUnauthorized, Title: message, Message: message, Err: err}
}

func badRequest(message string, err error) *APIError {
	return &APIError{Status: http.StatusBadRequest, Title: titleValidation, Message: message, Err: err}
}

func tooManyRequests(retryAfter int) *APIError {
	return &APIError{
		Status:     http.StatusTooManyRequests,
		Title:      titleTooManyRequests,
		Message:    fmt.Sprintf(msgRateLimitedTemplate, retryAfter),
		RetryAfter: retryAfter,
	}
}

// signatureFailure maps verification errors onto 401s; anything else is
// passed through as an internal error
func signatureFailure(err error, mismatchMessage string) error {
	switch {
	case errors.Is(err, core.ErrSignerMismatch):
		return unauthorized(mismatchMessage, err)
	case errors.Is(err, core.ErrSignatureRecoveryFailed), errors.Is(err, core.ErrInvalidSignatureFormat):
		return unauthorized(msgInvalidSignature, err)
	default:
		return err
	}
}

func sessionFailure(err error) error {
	if errors.Is(err, core.ErrSessionNotFound) {
		return unauthorized(msgInvalidSession, err)
	}
	return err
}

func accessTokenFailure(err error) error {
	switch {
	case errors.Is(err, core.ErrTokenExpired),
		errors.Is(err, core.ErrTokenInvalidated),
		errors.Is(err, core.ErrInvalidToken):
		return unauthorized(msgInvalidAccessToken, err)
	default:
		return err
	}
}

type errorBody struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter *int   `json:"retryAfter,omitempty"`
}

// renderError writes err as the JSON error envelope. Errors that are not an
// *APIError become a 500 whose detail is hidden in production.
func renderError(c *gin.Context, err error, production bool) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		message := err.Error()
		if production {
			message = msgUnexpected
		}
		apiErr = &APIError{Status: http.StatusInternalServerError, Title: titleInternal, Message: message, Err: err}
	}

	body := errorBody{Success: false, Error: apiErr.Title, Message: apiErr.Message}
	if apiErr.Status == http.StatusTooManyRequests {
		retryAfter := apiErr.RetryAfter
		body.RetryAfter = &retryAfter
	}

	c.AbortWithStatusJSON(apiErr.Status, body)
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
