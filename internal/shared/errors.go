package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Error classes. Callers wrap one of these with %w and test with errors.Is.
	ErrConfig        = fmt.Errorf("configuration error")
	ErrValidation    = fmt.Errorf("validation error")
	ErrCollaborator  = fmt.Errorf("collaborator error")
	ErrConflict      = fmt.Errorf("conflict")
	ErrDataIntegrity = fmt.Errorf("data integrity error")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("%w: configuration not found", ErrConfig)
	ErrMissingKey         = fmt.Errorf("%w: ENCRYPTION_KEY is not set", ErrConfig)
	ErrInvalidKey         = fmt.Errorf("%w: ENCRYPTION_KEY must be 32 base64-encoded bytes", ErrConfig)
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed = fmt.Errorf("authentication failed")
	ErrTimeout    = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("%w: API request failed", ErrCollaborator)
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Store errors
	ErrNotFound  = fmt.Errorf("%w: record not found", ErrDataIntegrity)
	ErrDuplicate = fmt.Errorf("%w: record already exists", ErrConflict)

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("%w: invalid input", ErrValidation)
	ErrMissingArgument = fmt.Errorf("%w: missing required argument", ErrValidation)
	ErrInvalidArgument = fmt.Errorf("%w: invalid argument", ErrValidation)
	ErrInvalidFlag     = fmt.Errorf("%w: invalid flag value", ErrValidation)
)
