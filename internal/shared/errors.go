package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Vault errors
	ErrEmptyInput = fmt.Errorf("empty input")
	ErrKeyConfig  = fmt.Errorf("encryption key missing or malformed")
	ErrFormat     = fmt.Errorf("not in vault wire format")
	ErrCipherAuth = fmt.Errorf("authentication tag verification failed")

	// Sync errors
	ErrAdapterFetch   = fmt.Errorf("adapter fetch failed")
	ErrConcurrentSync = fmt.Errorf("sync already running for platform")
	ErrTimeout        = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlatformUnknown    = fmt.Errorf("unknown platform")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
