package patch

import (
	"context"
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/wI2L/jsondiff"
)

// Engine applies and computes positional patches over decoded JSON trees.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	allowMissingRemove bool
	ensurePathOnAdd    bool
	factorize          bool
	rationalize        bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithAllowMissingRemove makes remove on a missing path a no-op instead of an error.
func WithAllowMissingRemove() EngineOption {
	return func(e *Engine) { e.allowMissingRemove = true }
}

// WithEnsurePathOnAdd creates missing parent objects for add operations.
func WithEnsurePathOnAdd() EngineOption {
	return func(e *Engine) { e.ensurePathOnAdd = true }
}

// WithMoves lets Compare emit move and copy operations for relocated values.
func WithMoves() EngineOption {
	return func(e *Engine) { e.factorize = true }
}

// WithRationalize lets Compare replace a whole object when that is shorter
// than the per-field operations.
func WithRationalize() EngineOption {
	return func(e *Engine) { e.rationalize = true }
}

// NewEngine creates a patch engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply applies p to doc in order and returns the resulting tree. doc is not
// modified; the result shares no memory with it.
func (e *Engine) Apply(ctx context.Context, doc any, p Patch) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	docBytes, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	if p == nil {
		p = Patch{}
	}
	patchBytes, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal patch: %w", err)
	}

	decoded, err := jsonpatch.DecodePatch(patchBytes)
	if err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}

	applyOpts := jsonpatch.NewApplyOptions()
	applyOpts.AllowMissingPathOnRemove = e.allowMissingRemove
	applyOpts.EnsurePathExistsOnAdd = e.ensurePathOnAdd

	patched, err := decoded.ApplyWithOptions(docBytes, applyOpts)
	if err != nil {
		return nil, fmt.Errorf("apply patch: %w", err)
	}

	var out any
	if err := json.Unmarshal(patched, &out); err != nil {
		return nil, fmt.Errorf("unmarshal patched document: %w", err)
	}
	return out, nil
}

// Compare returns the operations that transform from into to.
func (e *Engine) Compare(ctx context.Context, from, to any) (Patch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts []jsondiff.Option
	if e.factorize {
		opts = append(opts, jsondiff.Factorize())
	}
	if e.rationalize {
		opts = append(opts, jsondiff.Rationalize())
	}

	ops, err := jsondiff.Compare(from, to, opts...)
	if err != nil {
		return nil, fmt.Errorf("compare documents: %w", err)
	}

	out := make(Patch, 0, len(ops))
	for _, op := range ops {
		out = append(out, Operation{
			Op:    OpKind(op.Type),
			Path:  string(op.Path),
			From:  string(op.From),
			Value: op.Value,
		})
	}
	return out, nil
}
