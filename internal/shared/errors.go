package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Upstream (lyrics source) errors
	ErrArtistNotFound    = fmt.Errorf("artist not found")
	ErrTransientUpstream = fmt.Errorf("transient upstream failure")
	ErrUnknownUpstream   = fmt.Errorf("upstream request failed")
	ErrTimeout           = fmt.Errorf("operation timed out")

	// Record errors
	ErrMalformedRecord = fmt.Errorf("malformed song record")

	// Persistence errors
	ErrStorage = fmt.Errorf("storage failure")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
