package common

import "errors"

// Sentinel errors shared by the refresh engine. Wrap with %w and test with errors.Is.
var (
	// ErrNotFound means the symbol is not tracked.
	ErrNotFound = errors.New("not found")

	// ErrProviderUnavailable means every provider failed for an operation.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrTimeout means a provider did not answer within its bound.
	ErrTimeout = errors.New("provider timeout")

	// ErrPersistence wraps failed store writes.
	ErrPersistence = errors.New("persistence error")

	// ErrNotSupported is returned by providers for operations they do not offer.
	ErrNotSupported = errors.New("operation not supported by provider")
)
