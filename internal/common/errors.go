// Package common defines sentinel errors and small helpers shared by the
// task-state cache, the response cache and the operator CLI. Callers should
// use errors.Is to match these values.
package common

import "errors"

var (
	// ErrInvalidArgument reports a missing, empty or malformed identifier.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIOFailure reports that storage could not be created, written, read
	// or removed (permissions, capacity, path limits).
	ErrIOFailure = errors.New("io failure")

	// ErrNotFound reports a missing index record, or one pointing at storage
	// that holds no fields.
	ErrNotFound = errors.New("not found")

	// ErrSerialization reports a structured field that could not be archived
	// or unarchived.
	ErrSerialization = errors.New("serialization failure")
)
