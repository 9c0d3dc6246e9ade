package ldpatch

import (
	"github.com/c360studio/ldpatch/jsonld"
	"github.com/c360studio/ldpatch/patch"
)

// ShapeOptions are the shaping inputs shared by Project, ApplyPatch and Diff.
type ShapeOptions struct {
	// Frame is the shape template. When nil, documents are used as given
	// and no ordering guarantee is made.
	Frame any `json:"frame,omitempty"`

	// Context is an extra vocabulary context merged over JSONLD.ExpandContext
	// for the duration of one call. Defaults to {}.
	Context map[string]any `json:"context,omitempty"`

	// Format is the canonical serialization format. Defaults to
	// jsonld.FormatNQuads; "canonical-n-quads" is accepted as an alias.
	Format string `json:"format,omitempty"`

	// JSONLD carries additional processor options.
	JSONLD jsonld.Options `json:"options,omitempty"`
}

// ApplyRequest is the input to ApplyPatch.
type ApplyRequest struct {
	// Document is the document to patch. Required.
	Document any `json:"document"`

	// Patch is the ordered operation list. Required; an empty, non-nil patch is a no-op.
	Patch patch.Patch `json:"patch"`

	ShapeOptions
}

// processorOptions merges the call's shaping inputs into a fresh
// jsonld.Options. The caller's maps are never modified or retained.
func (o ShapeOptions) processorOptions() jsonld.Options {
	opts := o.JSONLD.WithContext(o.Context)
	if o.Format != "" {
		opts.Format = o.Format
	}
	if opts.Format == "" {
		opts.Format = jsonld.DefaultFormat
	}
	return opts
}

// UnwrapPolicy decides what happens to a framed result holding a graph container.
type UnwrapPolicy int

const (
	// UnwrapSingleRoot replaces a graph container holding exactly one node
	// with that node, carrying over the framed @context. Zero or several
	// roots are left as-is.
	UnwrapSingleRoot UnwrapPolicy = iota

	// UnwrapNever always returns the framed result unchanged.
	UnwrapNever
)

func (p UnwrapPolicy) String() string {
	switch p {
	case UnwrapSingleRoot:
		return "single-root"
	case UnwrapNever:
		return "never"
	default:
		return "unknown"
	}
}
