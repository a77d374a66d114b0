package core

import "errors"

// The error taxonomy from the spec's error-handling design (§7). Every
// package wraps one of these with fmt.Errorf("...: %w", core.ErrX) so
// callers can classify a failure with errors.Is instead of string matching.
var (
	// ErrConfig covers invalid JSON / missing required config keys.
	ErrConfig = errors.New("config error")

	// ErrEnvironment covers a command not found on PATH.
	ErrEnvironment = errors.New("environment error")

	// ErrTransport covers subprocess exit, broken pipe, and RPC timeout.
	ErrTransport = errors.New("transport error")

	// ErrProtocol covers malformed responses and id-correlation failures.
	ErrProtocol = errors.New("protocol error")

	// ErrValidation covers missing/mistyped tool arguments.
	ErrValidation = errors.New("validation error")

	// ErrToolFailure covers a tool server's own explicit error flag.
	ErrToolFailure = errors.New("tool failure")

	// ErrLLM covers a non-success response from the LLM adapter.
	ErrLLM = errors.New("llm error")

	// ErrInternal covers programmer error (nil/invalid inputs).
	ErrInternal = errors.New("internal error")

	// ErrDependencyCycle covers a multi-step plan whose {{RESULT_<N>}}
	// placeholders can't be satisfied in any execution order.
	ErrDependencyCycle = errors.New("dependency cycle")
)
