package sophia

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by every operation on a closed DB. It is detected
// before reaching the engine.
var ErrClosed = errors.New("closed object")

// ErrNoBody is returned when Transaction is called without a function.
var ErrNoBody = &ArgumentError{Msg: "must supply a function to Transaction"}

// EngineError is a failure reported by the storage engine. Message is the
// engine's own text.
type EngineError struct {
	Op      string
	Message string
	Err     error
}

func (e *EngineError) Error() string {
	return e.Op + ": " + e.Message
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// OpenError means the environment or the database could not be set up.
type OpenError struct {
	Path string
	Op   string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// ArgumentError reports misuse of the API. It never reaches the engine.
type ArgumentError struct {
	Msg string
}

func (e *ArgumentError) Error() string {
	return e.Msg
}

// RollbackError is returned by Transaction when the function failed and
// the rollback that followed failed as well. Both errors match errors.Is.
type RollbackError struct {
	Err         error
	RollbackErr error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("%v (rollback failed: %v)", e.Err, e.RollbackErr)
}

func (e *RollbackError) Unwrap() []error {
	return []error{e.Err, e.RollbackErr}
}

// translate turns an engine failure into an *EngineError.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	return &EngineError{Op: op, Message: err.Error(), Err: err}
}
