package entities

import "errors"

var (
	// ErrNotFound is returned when a package, file or record does not exist
	ErrNotFound = errors.New("not found")

	// ErrResolve wraps every failure to turn a subject identifier into a local tree
	ErrResolve = errors.New("could not resolve package")

	// ErrIntegrity is returned when downloaded content does not match its digest
	ErrIntegrity = errors.New("integrity check failed")
)
