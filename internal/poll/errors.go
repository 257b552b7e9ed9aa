package poll

import "errors"

var (
	// ErrUpdateFailed marks a refresh that produced no usable data.
	// Integrations wrap it with the underlying cause; listeners treat
	// the coordinator as unavailable until the next success.
	ErrUpdateFailed = errors.New("update failed")

	// ErrAuthFailed marks a refresh rejected for credentials. The
	// owning integration should trigger reauthentication rather than
	// keep polling.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrClosed is returned by Refresh after Close.
	ErrClosed = errors.New("coordinator closed")
)
