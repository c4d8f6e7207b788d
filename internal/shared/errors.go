package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Network errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrResourceNotFound   = fmt.Errorf("resource not found")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrPublishMismatch    = fmt.Errorf("published identifiers do not match submitted resources")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// Publishing errors
	ErrIdentityUnavailable = fmt.Errorf("no active publisher identity")
	ErrIdentityChanged     = fmt.Errorf("publisher identity changed during queue run")

	// Download errors
	ErrAbandoned = fmt.Errorf("download abandoned")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
