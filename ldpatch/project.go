package ldpatch

import (
	"context"
	"errors"

	"github.com/c360studio/ldpatch/jsonld"
)

const (
	keywordContext = "@context"
	keywordGraph   = "@graph"
)

// Project gives doc a reproducible tree shape.
//
// Without a frame, doc is returned unchanged. With a frame, doc is
// canonicalized to N-Quads, rebuilt as a graph and framed. Because the
// canonical serialization depends only on graph content, graph-equivalent
// documents frame to identical trees, including the order of every
// set-valued array.
func (p *Patcher) Project(ctx context.Context, doc any, opts ShapeOptions) (any, error) {
	const op = "project"

	if isMissing(doc) {
		return nil, newError(KindInvalidArgument, op, errors.New("document is required"))
	}
	if isMissing(opts.Frame) {
		return doc, nil
	}

	procOpts := opts.processorOptions()

	nquads, err := p.shaper.Canonicalize(ctx, jsonld.DeepClone(doc), procOpts)
	if err != nil {
		return nil, newError(KindShapingFailed, op, err)
	}

	graph, err := p.shaper.FromRDF(ctx, nquads, procOpts)
	if err != nil {
		return nil, newError(KindShapingFailed, op, err)
	}

	framed, err := p.shaper.Frame(ctx, graph, jsonld.DeepClone(opts.Frame), procOpts)
	if err != nil {
		return nil, newError(KindShapingFailed, op, err)
	}

	if p.unwrap == UnwrapSingleRoot {
		return unwrapSingleRoot(framed), nil
	}
	return framed, nil
}

// unwrapSingleRoot returns the only node of a framed graph container with the
// framed @context attached. Any other shape is returned unchanged.
func unwrapSingleRoot(framed map[string]any) any {
	graph, ok := framed[keywordGraph].([]any)
	if !ok || len(graph) != 1 {
		return framed
	}
	node, ok := graph[0].(map[string]any)
	if !ok {
		return framed
	}

	out := make(map[string]any, len(node)+1)
	for k, v := range node {
		out[k] = v
	}
	if ctx, ok := framed[keywordContext]; ok {
		out[keywordContext] = ctx
	}
	return out
}

// isMissing reports whether v is absent, including typed nil maps and slices.
func isMissing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case map[string]any:
		return x == nil
	case []any:
		return x == nil
	}
	return false
}
