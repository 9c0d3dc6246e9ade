package patchapi

import (
	"errors"

	"github.com/c360studio/ldpatch/jsonld"
	"github.com/c360studio/ldpatch/ldpatch"
	"github.com/c360studio/ldpatch/patch"
)

// Shaping carries the shaping inputs common to every request.
type Shaping struct {
	Frame   any             `json:"frame,omitempty"`
	Context map[string]any  `json:"context,omitempty"`
	Format  string          `json:"format,omitempty"`
	Options *jsonld.Options `json:"options,omitempty"`
}

// shapeOptions builds per-request options. Request options replace the
// component defaults wholesale.
func (s Shaping) shapeOptions(defaults jsonld.Options) ldpatch.ShapeOptions {
	opts := defaults.Clone()
	if s.Options != nil {
		opts = s.Options.Clone()
	}
	return ldpatch.ShapeOptions{
		Frame:   s.Frame,
		Context: s.Context,
		Format:  s.Format,
		JSONLD:  opts,
	}
}

// ApplyRequest asks the service to patch a document.
type ApplyRequest struct {
	Document any         `json:"document"`
	Patch    patch.Patch `json:"patch"`
	Shaping
}

// DiffRequest asks the service for the patch between two documents.
type DiffRequest struct {
	DocumentA any `json:"document_a"`
	DocumentB any `json:"document_b"`
	Shaping
}

// ProjectRequest asks the service to project a document.
type ProjectRequest struct {
	Document any `json:"document"`
	Shaping
}

// Response is the reply to every request. Exactly one of Result or Error is set.
type Response struct {
	RequestID string     `json:"request_id"`
	Result    any        `json:"result,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo describes a failed request.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// kindInternal reports a failure that is not the caller's fault.
const kindInternal = "internal"

// errorInfo classifies err for the wire. Malformed payloads are reported as
// invalid arguments.
func errorInfo(err error) *ErrorInfo {
	kind := ldpatch.KindOf(err)
	var decodeErr *decodeError
	if kind == "" && errors.As(err, &decodeErr) {
		kind = ldpatch.KindInvalidArgument
	}
	if kind == "" {
		kind = kindInternal
	}
	return &ErrorInfo{Kind: string(kind), Message: err.Error()}
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string {
	return "decode request: " + e.err.Error()
}

func (e *decodeError) Unwrap() error {
	return e.err
}
