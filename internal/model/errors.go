package model

import "errors"

var (
	// ErrInfrastructure marks failures of the environment (process spawn, file I/O,
	// snapshot restore). It is fatal for the current location only.
	ErrInfrastructure = errors.New("infrastructure failure")

	// ErrBuildFailed marks a subject that did not compile. Routine during validation.
	ErrBuildFailed = errors.New("build failed")

	// ErrBehaviorChanged marks instrumentation that altered the failing-test set.
	ErrBehaviorChanged = errors.New("test behavior changed")

	// ErrMalformedInput marks probe-log lines or statements that cannot be interpreted.
	ErrMalformedInput = errors.New("malformed input")

	// ErrTimeout marks an external call that exceeded its deadline.
	ErrTimeout = errors.New("timeout")
)
