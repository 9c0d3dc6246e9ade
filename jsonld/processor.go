package jsonld

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/piprate/json-gold/ld"
)

// Processor runs the linked-data primitives: canonicalization, graph
// reconstruction from N-Quads, and framing. It is safe for concurrent use;
// every call builds its own ld.JsonLdOptions.
type Processor struct {
	proc     *ld.JsonLdProcessor
	registry *Registry
	logger   *slog.Logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithRegistry sets the capability registry used by the processor.
func WithRegistry(r *Registry) ProcessorOption {
	return func(p *Processor) {
		if r != nil {
			p.registry = r
		}
	}
}

// WithLogger sets the processor logger.
func WithLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProcessor creates a processor with its own registry unless one is supplied.
func NewProcessor(opts ...ProcessorOption) *Processor {
	p := &Processor{
		proc:     ld.NewJsonLdProcessor(),
		registry: NewRegistry(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Registry returns the processor's capability registry.
func (p *Processor) Registry() *Registry {
	return p.registry
}

// Use registers a capability implementation on the processor's registry.
func (p *Processor) Use(capability string, impl any) error {
	return p.registry.Use(capability, impl)
}

// Canonicalize produces the canonical N-Quads serialization of doc using the
// URDNA2015 algorithm. Graph-equivalent documents always produce identical output.
//
// The document is expanded first so opts.ExpandContext applies; normalization
// on its own does not consult it.
func (p *Processor) Canonicalize(ctx context.Context, doc any, opts Options) (nquads string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ldOpts, err := opts.ldOptions(p.registry.DocumentLoader())
	if err != nil {
		return "", err
	}
	defer recoverPrimitive("canonicalize", &err)

	expanded, err := p.proc.Expand(doc, ldOpts)
	if err != nil {
		return "", fmt.Errorf("canonicalize: expand: %w", err)
	}

	out, err := p.proc.Normalize(expanded, ldOpts)
	if err != nil {
		return "", fmt.Errorf("canonicalize: %w", err)
	}
	nquads, ok := out.(string)
	if !ok {
		return "", fmt.Errorf("canonicalize: %w: %T", ErrUnexpectedOutput, out)
	}

	p.logger.Debug("Canonicalized document",
		"format", ldOpts.Format,
		"statements", strings.Count(nquads, "\n"))
	return nquads, nil
}

// FromRDF reconstructs an expanded JSON-LD graph from an N-Quads serialization.
// Malformed statements, such as relative IRIs, are reported as errors.
func (p *Processor) FromRDF(ctx context.Context, nquads string, opts Options) (graph any, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ldOpts, err := opts.ldOptions(p.registry.DocumentLoader())
	if err != nil {
		return nil, err
	}
	defer recoverPrimitive("from rdf", &err)

	dataset, err := ld.ParseNQuads(nquads)
	if err != nil {
		return nil, fmt.Errorf("from rdf: %w", err)
	}

	out, err := ld.NewJsonLdApi().FromRDF(dataset, ldOpts)
	if err != nil {
		return nil, fmt.Errorf("from rdf: %w", err)
	}
	return out, nil
}

// Frame projects input into the tree shape described by frame.
func (p *Processor) Frame(ctx context.Context, input, frame any, opts Options) (framed map[string]any, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ldOpts, err := opts.ldOptions(p.registry.DocumentLoader())
	if err != nil {
		return nil, err
	}
	defer recoverPrimitive("frame", &err)

	out, err := p.proc.Frame(input, frame, ldOpts)
	if err != nil {
		return nil, fmt.Errorf("frame: %w", err)
	}
	return out, nil
}

// recoverPrimitive turns a panic inside the JSON-LD library into an error
// wrapping ErrPrimitivePanic.
func recoverPrimitive(op string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s: %w: %v", op, ErrPrimitivePanic, r)
	}
}

// NewPreloadedLoader returns a loader that serves docs (keyed by URL) from
// memory and sends other requests to the network through client.
func NewPreloadedLoader(docs map[string]any, client *http.Client) ld.DocumentLoader {
	if client == nil {
		client = http.DefaultClient
	}
	loader := ld.NewCachingDocumentLoader(ld.NewDefaultDocumentLoader(client))
	for url, doc := range docs {
		loader.AddDocument(url, DeepClone(doc))
	}
	return loader
}
