package jsonld

import (
	"fmt"

	"github.com/piprate/json-gold/ld"
)

// Processing modes accepted in Options.ProcessingMode.
const (
	ProcessingMode10 = ld.JsonLd_1_0
	ProcessingMode11 = ld.JsonLd_1_1
)

// Embed flags accepted in Options.Embed.
const (
	EmbedLast   = string(ld.EmbedLast)
	EmbedAlways = string(ld.EmbedAlways)
	EmbedNever  = string(ld.EmbedNever)
)

// ValidateEmbed reports whether embed is empty or a framing flag the
// processor implements.
func ValidateEmbed(embed string) error {
	switch embed {
	case "", EmbedLast, EmbedAlways, EmbedNever:
		return nil
	}
	return fmt.Errorf("%w: %q (valid: %s, %s, %s)", ErrUnsupportedEmbed, embed, EmbedLast, EmbedAlways, EmbedNever)
}

// canonicalAlgorithm is the dataset normalization algorithm used by Canonicalize.
const canonicalAlgorithm = "URDNA2015"

// Options holds per-call processor settings. Values are copied into a fresh
// ld.JsonLdOptions on every call, so an Options value can be shared freely.
type Options struct {
	// Base is the base IRI used to resolve relative identifiers.
	Base string `json:"base,omitempty" yaml:"base"`

	// ProcessingMode selects JSON-LD 1.0 or 1.1 semantics (default 1.1).
	ProcessingMode string `json:"processing_mode,omitempty" yaml:"processing_mode"`

	// ExpandContext is applied to the input before expansion.
	ExpandContext map[string]any `json:"expand_context,omitempty" yaml:"expand_context"`

	// Format is the intermediate serialization format.
	Format string `json:"format,omitempty" yaml:"format"`

	// Embed is the default @embed flag used while framing.
	Embed string `json:"embed,omitempty" yaml:"embed"`

	// Explicit limits framed output to properties listed in the frame.
	Explicit bool `json:"explicit,omitempty" yaml:"explicit"`

	// RequireAll makes frame matching require every frame property.
	RequireAll bool `json:"require_all,omitempty" yaml:"require_all"`

	// OmitDefault drops properties missing from the input instead of emitting null.
	OmitDefault bool `json:"omit_default,omitempty" yaml:"omit_default"`
}

// Clone returns a deep copy of the options.
func (o Options) Clone() Options {
	out := o
	if o.ExpandContext != nil {
		out.ExpandContext = CloneMap(o.ExpandContext)
	}
	return out
}

// WithContext returns a copy of o whose ExpandContext is o.ExpandContext
// merged with extra. Keys in extra take precedence. Neither input is modified.
func (o Options) WithContext(extra map[string]any) Options {
	out := o.Clone()
	if len(extra) == 0 {
		return out
	}
	merged := CloneMap(out.ExpandContext)
	for k, v := range extra {
		merged[k] = DeepClone(v)
	}
	out.ExpandContext = merged
	return out
}

// ldOptions builds a fresh ld.JsonLdOptions for a single processor call.
func (o Options) ldOptions(loader ld.DocumentLoader) (*ld.JsonLdOptions, error) {
	format, err := ResolveFormat(o.Format)
	if err != nil {
		return nil, err
	}
	if err := ValidateEmbed(o.Embed); err != nil {
		return nil, err
	}

	opts := ld.NewJsonLdOptions(o.Base)
	opts.Format = format
	opts.Algorithm = canonicalAlgorithm
	opts.DocumentLoader = loader
	opts.Explicit = o.Explicit
	opts.RequireAll = o.RequireAll
	opts.OmitDefault = o.OmitDefault
	opts.OmitGraph = false
	if o.ProcessingMode != "" {
		opts.ProcessingMode = o.ProcessingMode
	}
	if o.Embed != "" {
		opts.Embed = ld.Embed(o.Embed)
	}
	if len(o.ExpandContext) > 0 {
		opts.ExpandContext = CloneMap(o.ExpandContext)
	}
	return opts, nil
}
