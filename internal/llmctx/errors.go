package llmctx

import (
	"errors"
	"fmt"
	"strconv"
)

type missingParameterError struct{ name string }

func (e missingParameterError) Error() string { return "missing required parameter: " + e.name }

// ErrMissingParameter reports that a required input was empty.
func ErrMissingParameter(name string) error { return missingParameterError{name: name} }

func IsMissingParameter(err error) bool {
	var e missingParameterError
	return errors.As(err, &e)
}

// invalidModelError is returned when the model file is missing or does not
// carry the GGUF signature. No native call is made in that case.
type invalidModelError struct {
	path string
	err  error
}

func (e invalidModelError) Error() string {
	return fmt.Sprintf("invalid model %q: %v", e.path, e.err)
}

func (e invalidModelError) Unwrap() error { return e.err }

func ErrInvalidModel(path string, err error) error { return invalidModelError{path: path, err: err} }

func IsInvalidModel(err error) bool {
	var e invalidModelError
	return errors.As(err, &e)
}

type invalidPathError struct {
	path   string
	reason string
}

func (e invalidPathError) Error() string {
	return fmt.Sprintf("invalid path %q: %s", e.path, e.reason)
}

func ErrInvalidPath(path, reason string) error { return invalidPathError{path: path, reason: reason} }

func IsInvalidPath(err error) bool {
	var e invalidPathError
	return errors.As(err, &e)
}

// busyError signals that the context already has a generation in flight.
type busyError struct{ id int }

func (e busyError) Error() string { return "context " + strconv.Itoa(e.id) + " is busy generating" }

func ErrBusy(id int) error { return busyError{id: id} }

// IsBusy reports whether err was caused by a concurrent generation.
func IsBusy(err error) bool {
	var e busyError
	return errors.As(err, &e)
}

type embeddingDisabledError struct{ id int }

func (e embeddingDisabledError) Error() string {
	return "context " + strconv.Itoa(e.id) + " was not opened with embedding enabled"
}

func ErrEmbeddingDisabled(id int) error { return embeddingDisabledError{id: id} }

func IsEmbeddingDisabled(err error) bool {
	var e embeddingDisabledError
	return errors.As(err, &e)
}

type releasedError struct{ id int }

func (e releasedError) Error() string { return "context " + strconv.Itoa(e.id) + " has been released" }

func ErrReleased(id int) error { return releasedError{id: id} }

func IsReleased(err error) bool {
	var e releasedError
	return errors.As(err, &e)
}

// EngineError wraps a failure reported by the native engine. The engine's
// message is kept verbatim.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *EngineError) Unwrap() error { return e.Err }

// IsEngineFailure reports whether err originated in the native engine.
func IsEngineFailure(err error) bool {
	var e *EngineError
	return errors.As(err, &e)
}

var errPersistFailed = errors.New("engine could not write session state")
