package luart

import "errors"

// Errors for runtime operations.
var (
	// ErrRuntimeClosed is returned when operating on a closed runtime.
	ErrRuntimeClosed = errors.New("lua runtime is closed")

	// ErrNoProgram is returned when running or evaluating with no loaded
	// program.
	ErrNoProgram = errors.New("no program loaded")
)
