package ldpatch

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed operation.
type ErrorKind string

// Error kinds.
const (
	// KindInvalidArgument means a required input was missing. It is detected
	// before any primitive runs.
	KindInvalidArgument ErrorKind = "invalid argument"

	// KindShapingFailed means canonicalization or framing rejected the input.
	// These failures are deterministic; retrying with the same input fails again.
	KindShapingFailed ErrorKind = "shaping failed"

	// KindPatchFailed means the patch engine rejected the operations or inputs.
	KindPatchFailed ErrorKind = "patch operation failed"
)

// Error is returned by every Patcher operation. The underlying error from
// the failing primitive is kept intact and reachable through Unwrap.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsInvalidArgument returns true if a required input was missing.
func IsInvalidArgument(err error) bool {
	return KindOf(err) == KindInvalidArgument
}

// IsShapingFailed returns true if canonicalization or framing failed.
func IsShapingFailed(err error) bool {
	return KindOf(err) == KindShapingFailed
}

// IsPatchFailed returns true if the patch engine rejected the request.
func IsPatchFailed(err error) bool {
	return KindOf(err) == KindPatchFailed
}
