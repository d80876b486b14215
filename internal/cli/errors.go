package cli

import "errors"

// Sentinel errors for exit code classification
var (
	// ErrUsage indicates invalid command usage, flags, or arguments
	ErrUsage = errors.New("usage error")

	// ErrConfig indicates an unreadable or invalid configuration
	ErrConfig = errors.New("configuration error")

	// ErrDiscovery indicates the build facts could not be gathered; the build must stop
	ErrDiscovery = errors.New("discovery error")

	// ErrInternal indicates internal system errors
	ErrInternal = errors.New("internal error")
)

// Exit codes
const (
	ExitSuccess        = 0
	ExitFailure        = 1
	ExitUsageError     = 2
	ExitConfigError    = 3
	ExitDiscoveryError = 4
)

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrUsage):
		return ExitUsageError
	case errors.Is(err, ErrConfig):
		return ExitConfigError
	case errors.Is(err, ErrDiscovery):
		return ExitDiscoveryError
	default:
		return ExitFailure
	}
}
