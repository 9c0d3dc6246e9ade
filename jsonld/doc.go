// Package jsonld wraps the JSON-LD primitives used to give linked-data
// documents a reproducible tree shape: URDNA2015 canonicalization to N-Quads,
// graph reconstruction from N-Quads, and framing.
//
// The package also carries the bundled patch vocabulary context
// (JSONLDPatchV1Context) and a per-processor capability Registry through
// which a host can replace the document loader or its HTTP client.
package jsonld
