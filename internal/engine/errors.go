package engine

import "errors"

// dependencyUnavailableError signals that the native engine is not compiled
// into this binary.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing runtime dependency.
func IsDependencyUnavailable(err error) bool {
	_, ok := err.(dependencyUnavailableError)
	return ok
}

// unsupportedError is returned by bindings for operations the native library
// does not expose.
type unsupportedError struct{ op string }

func (e unsupportedError) Error() string { return e.op + ": not supported by this engine binding" }

// IsUnsupported reports whether err indicates an operation the binding lacks.
func IsUnsupported(err error) bool {
	_, ok := err.(unsupportedError)
	return ok
}

// invalidParameterError reports an option outside its accepted range. It is
// raised before any native call.
type invalidParameterError struct {
	field  string
	reason string
}

func (e invalidParameterError) Error() string {
	return "invalid parameter " + e.field + ": " + e.reason
}

// ErrInvalidParameter constructs an invalidParameterError.
func ErrInvalidParameter(field, reason string) error {
	return invalidParameterError{field: field, reason: reason}
}

// IsInvalidParameter reports whether err is a parameter range violation.
func IsInvalidParameter(err error) bool {
	var e invalidParameterError
	return errors.As(err, &e)
}
