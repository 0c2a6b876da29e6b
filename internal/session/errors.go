package session

import "errors"

// Errors returned by session operations.
var (
	// ErrEvalTimeout is returned when a watch evaluation exceeds its
	// deadline and is forcibly interrupted. It propagates out of the
	// break hook so the interpreter aborts the guarded evaluation.
	ErrEvalTimeout = errors.New("execution timed out")
)
