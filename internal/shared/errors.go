package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors. ErrAuthentication is fatal for the whole run.
	ErrAuthentication = fmt.Errorf("authentication failed")

	// API and service errors
	ErrTransient          = fmt.Errorf("transient network error")
	ErrMalformedResponse  = fmt.Errorf("malformed response")
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrFetchFailure       = fmt.Errorf("fetch failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrValidation      = fmt.Errorf("validation failed")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
