package entry

import "errors"

// Domain-specific errors for config-entry operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrEntryNotFound is returned when an entry ID does not exist.
	ErrEntryNotFound = errors.New("entry: not found")

	// ErrUniqueIDTaken is returned when creating an entry whose unique ID
	// is already configured for the domain.
	ErrUniqueIDTaken = errors.New("entry: unique ID already configured")

	// ErrUnknownDomain is returned when no integration is registered for
	// an entry's domain.
	ErrUnknownDomain = errors.New("entry: no integration for domain")

	// ErrSetupRetry is returned (possibly wrapped) by an integration's
	// Setup when the failure is transient and the entry should be retried.
	ErrSetupRetry = errors.New("entry: setup should be retried")
)
