package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/dzdedupe/internal/shared"
)

// APIError describes a failed gateway call.
//
// Kind is one of the shared sentinel errors and decides whether the call is retried.
type APIError struct {
	Method     string
	StatusCode int    // HTTP status, 0 if no response was received
	Code       string // Gateway error code, e.g. VALID_TOKEN_REQUIRED
	Message    string
	Kind       error
	Cause      error
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %v", e.Method, e.Kind)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap exposes both the sentinel kind and the underlying cause to [errors.Is] and [errors.As].
func (e *APIError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, shared.ErrTransient) && !errors.Is(err, shared.ErrAuthentication)
}

// Gateway error codes that mean the session is unusable.
var authErrorCodes = map[string]bool{
	"VALID_TOKEN_REQUIRED":    true,
	"NEED_USER_AUTH_REQUIRED": true,
	"USER_AUTH_REQUIRED":      true,
}

// Gateway error codes that clear up on their own.
var transientErrorCodes = map[string]bool{
	"QUOTA_ERROR":         true,
	"RATE_LIMIT_EXCEEDED": true,
	"SERVICE_UNAVAILABLE": true,
}

// classifyStatus maps a non-2xx HTTP status to an error kind.
func classifyStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return shared.ErrAuthentication
	case status == http.StatusTooManyRequests || status == http.StatusRequestTimeout:
		return shared.ErrTransient
	case status >= 500:
		return shared.ErrTransient
	default:
		return shared.ErrAPIRequest
	}
}

// classifyCode maps a gateway error code to an error kind.
func classifyCode(code string) error {
	switch {
	case authErrorCodes[code]:
		return shared.ErrAuthentication
	case transientErrorCodes[code]:
		return shared.ErrTransient
	default:
		return shared.ErrAPIRequest
	}
}
