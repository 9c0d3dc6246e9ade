// Package patch models positional JSON patches (RFC 6902) and provides the
// engine that applies and computes them.
package patch

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Common patch errors.
var (
	// ErrUnknownOp is returned for an operation kind outside RFC 6902.
	ErrUnknownOp = errors.New("unknown patch operation")

	// ErrInvalidPath is returned when a path is not a JSON pointer.
	ErrInvalidPath = errors.New("invalid patch path")

	// ErrMissingFrom is returned when a move or copy lacks a source path.
	ErrMissingFrom = errors.New("operation requires from")

	// ErrMissingValue is returned when a decoded add, replace or test has no value member.
	ErrMissingValue = errors.New("operation requires value")
)

// OpKind is the kind of operation performed by a single step.
type OpKind string

// Operation kinds.
const (
	OpAdd     OpKind = "add"
	OpRemove  OpKind = "remove"
	OpReplace OpKind = "replace"
	OpMove    OpKind = "move"
	OpCopy    OpKind = "copy"
	OpTest    OpKind = "test"
)

// IsValid reports whether k is an RFC 6902 operation kind.
func (k OpKind) IsValid() bool {
	switch k {
	case OpAdd, OpRemove, OpReplace, OpMove, OpCopy, OpTest:
		return true
	}
	return false
}

// hasValue reports whether operations of kind k carry a value.
func (k OpKind) hasValue() bool {
	return k == OpAdd || k == OpReplace || k == OpTest
}

// Operation is a single positional step.
type Operation struct {
	// Op is the kind of operation.
	Op OpKind `json:"op"`

	// Path is a JSON pointer to the target location.
	Path string `json:"path"`

	// From is the source location for move and copy.
	From string `json:"from,omitempty"`

	// Value is the value for add, replace and test. A nil Value on those
	// kinds is encoded as JSON null.
	Value any `json:"value,omitempty"`

	// valueMissing is set when a decoded add, replace or test had no "value"
	// member at all, as opposed to an explicit null.
	valueMissing bool
}

// UnmarshalJSON decodes the operation and records whether a kind that
// needs a value was given one.
func (o *Operation) UnmarshalJSON(data []byte) error {
	type plain Operation
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}
	_, present := members["value"]

	*o = Operation(p)
	o.valueMissing = o.Op.hasValue() && !present
	return nil
}

// MarshalJSON encodes the operation, keeping "value" for kinds that need it
// even when it is null.
func (o Operation) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"op":   o.Op,
		"path": o.Path,
	}
	if o.From != "" {
		m["from"] = o.From
	}
	if o.Op.hasValue() || o.Value != nil {
		m["value"] = o.Value
	}
	return json.Marshal(m)
}

// Validate checks the operation's kind, path and required fields.
func (o Operation) Validate() error {
	if !o.Op.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownOp, o.Op)
	}
	if !isPointer(o.Path) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, o.Path)
	}
	if o.valueMissing {
		return fmt.Errorf("%w: %s %s", ErrMissingValue, o.Op, o.Path)
	}
	if o.Op == OpMove || o.Op == OpCopy {
		if o.From == "" {
			return fmt.Errorf("%w: %s %s", ErrMissingFrom, o.Op, o.Path)
		}
		if !isPointer(o.From) {
			return fmt.Errorf("%w: from %q", ErrInvalidPath, o.From)
		}
	}
	return nil
}

// Patch is an ordered sequence of operations. Order is significant: each
// path is evaluated against the result of the operations before it.
type Patch []Operation

// Validate checks every operation, reporting the index of the first failure.
func (p Patch) Validate() error {
	for i, op := range p {
		if err := op.Validate(); err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
	}
	return nil
}

// Decode parses a JSON patch document. A JSON null decodes to a nil Patch.
func Decode(data []byte) (Patch, error) {
	var p Patch
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}
	return p, nil
}

var pathEscaper = strings.NewReplacer("~", "~0", "/", "~1")

// PathEscape escapes a string for use as one segment of a JSON pointer.
func PathEscape(s string) string {
	return pathEscaper.Replace(s)
}

// Pointer joins unescaped segments into a JSON pointer.
func Pointer(segments ...string) string {
	var sb strings.Builder
	for _, s := range segments {
		sb.WriteByte('/')
		sb.WriteString(PathEscape(s))
	}
	return sb.String()
}

func isPointer(p string) bool {
	return p == "" || strings.HasPrefix(p, "/")
}
