// Package ldpatch applies and computes positional patches over linked-data
// documents.
//
// Positional patches address array elements by index, but the arrays of a
// JSON-LD document that hold graph sets have no meaningful order. Before
// patching, Project canonicalizes the document, rebuilds the graph from the
// canonical N-Quads and frames it with a caller-supplied shape template. The
// same graph therefore always yields the same tree and the same array order,
// so a patch computed by Diff against one document resolves to the same
// entities when applied with ApplyPatch to any graph-equivalent document.
//
// Basic usage:
//
//	p := ldpatch.New()
//	out, err := p.ApplyPatch(ctx, ldpatch.ApplyRequest{
//		Document: doc,
//		Patch:    ops,
//		ShapeOptions: ldpatch.ShapeOptions{Frame: frame},
//	})
//
// Errors are *Error values classified as invalid argument, shaping failed or
// patch operation failed. The primitive's original error is kept as the cause.
package ldpatch
