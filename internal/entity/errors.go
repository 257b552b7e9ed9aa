package entity

import "errors"

var (
	// ErrEntityNotFound indicates no entity with the requested ID is registered.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrNotCommandable indicates the entity does not accept commands.
	ErrNotCommandable = errors.New("entity does not accept commands")

	// ErrCommandFailed indicates the device rejected or never acknowledged a command.
	ErrCommandFailed = errors.New("command failed")

	// ErrUnknownCommand indicates the entity does not implement the named command.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrDuplicateID indicates an entity with the same unique ID is already registered.
	ErrDuplicateID = errors.New("duplicate entity id")
)
