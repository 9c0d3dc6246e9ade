package ldpatch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/c360studio/ldpatch/jsonld"
	"github.com/c360studio/ldpatch/patch"
	"golang.org/x/sync/errgroup"
)

// Shaper provides the linked-data primitives used by Project.
type Shaper interface {
	Canonicalize(ctx context.Context, doc any, opts jsonld.Options) (string, error)
	FromRDF(ctx context.Context, nquads string, opts jsonld.Options) (any, error)
	Frame(ctx context.Context, input, frame any, opts jsonld.Options) (map[string]any, error)
}

// Engine provides the positional patch primitives.
type Engine interface {
	Apply(ctx context.Context, doc any, p patch.Patch) (any, error)
	Compare(ctx context.Context, from, to any) (patch.Patch, error)
}

// Patcher applies and computes positional patches over linked-data documents.
// It holds no per-call state and is safe for concurrent use.
type Patcher struct {
	shaper Shaper
	engine Engine
	unwrap UnwrapPolicy
	logger *slog.Logger
}

// Option configures a Patcher.
type Option func(*Patcher)

// WithShaper replaces the linked-data primitives.
func WithShaper(s Shaper) Option {
	return func(p *Patcher) {
		if s != nil {
			p.shaper = s
		}
	}
}

// WithEngine replaces the patch primitives.
func WithEngine(e Engine) Option {
	return func(p *Patcher) {
		if e != nil {
			p.engine = e
		}
	}
}

// WithUnwrapPolicy sets how single-root graph containers are handled.
func WithUnwrapPolicy(policy UnwrapPolicy) Option {
	return func(p *Patcher) { p.unwrap = policy }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Patcher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Patcher backed by jsonld.Processor and patch.Engine unless
// other primitives are supplied.
func New(opts ...Option) *Patcher {
	p := &Patcher{unwrap: UnwrapSingleRoot, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.shaper == nil {
		p.shaper = jsonld.NewProcessor(jsonld.WithLogger(p.logger))
	}
	if p.engine == nil {
		p.engine = patch.NewEngine()
	}
	return p
}

// ApplyPatch projects req.Document and applies req.Patch to the projection,
// operation by operation in list order. The input document is not modified.
func (p *Patcher) ApplyPatch(ctx context.Context, req ApplyRequest) (any, error) {
	const op = "apply patch"

	if isMissing(req.Document) {
		return nil, newError(KindInvalidArgument, op, errors.New("document is required"))
	}
	if req.Patch == nil {
		return nil, newError(KindInvalidArgument, op, errors.New("patch is required"))
	}

	target, err := p.Project(ctx, req.Document, req.ShapeOptions)
	if err != nil {
		return nil, err
	}

	out, err := p.engine.Apply(ctx, target, req.Patch)
	if err != nil {
		return nil, newError(KindPatchFailed, op, err)
	}

	p.logger.Debug("Applied patch",
		"operations", len(req.Patch),
		"framed", req.Frame != nil)
	return out, nil
}

// Diff returns the operations that transform the projection of a into the
// projection of b. Both documents are projected with the same options.
//
// ApplyPatch(a, Diff(a, b)) equals Project(b) for the same options.
func (p *Patcher) Diff(ctx context.Context, a, b any, opts ShapeOptions) (patch.Patch, error) {
	const op = "diff"

	if isMissing(a) {
		return nil, newError(KindInvalidArgument, op, errors.New("first document is required"))
	}
	if isMissing(b) {
		return nil, newError(KindInvalidArgument, op, errors.New("second document is required"))
	}

	var from, to any
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		from, err = p.Project(gctx, a, opts)
		return err
	})
	g.Go(func() error {
		var err error
		to, err = p.Project(gctx, b, opts)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ops, err := p.engine.Compare(ctx, from, to)
	if err != nil {
		return nil, newError(KindPatchFailed, op, err)
	}

	p.logger.Debug("Computed patch",
		"operations", len(ops),
		"framed", opts.Frame != nil)
	return ops, nil
}
