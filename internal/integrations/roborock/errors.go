package roborock

import "errors"

var (
	// ErrAuth indicates the vendor cloud rejected credentials, an email
	// code, or an expired token.
	ErrAuth = errors.New("authentication rejected")

	// ErrConnect indicates the vendor cloud or the device could not be
	// reached.
	ErrConnect = errors.New("connection failed")

	// ErrTimeout indicates a device request got no reply in time.
	ErrTimeout = errors.New("request timed out")

	// ErrNoDevices indicates the account has no vacuums to set up.
	ErrNoDevices = errors.New("no devices on account")

	// ErrClosed indicates the client was closed.
	ErrClosed = errors.New("client closed")
)
