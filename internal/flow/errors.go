package flow

import "errors"

// Domain-specific errors for flow operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnknownDomain is returned when starting a flow for an unregistered domain.
	ErrUnknownDomain = errors.New("flow: unknown integration domain")

	// ErrFlowNotFound is returned when a flow ID does not match a live session.
	ErrFlowNotFound = errors.New("flow: flow not found")

	// ErrAlreadyConfigured is returned by Context.SetUniqueID when an entry
	// with the same unique ID already exists for the domain.
	ErrAlreadyConfigured = errors.New("flow: already configured")
)
