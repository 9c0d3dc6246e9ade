package jsonld

import (
	"fmt"
	"sort"
	"strings"
)

const (
	// FormatNQuads is the canonical N-Quads serialization used between
	// canonicalization and graph reconstruction.
	FormatNQuads = "application/n-quads"

	// FormatCanonicalNQuads is accepted as an alias of FormatNQuads.
	FormatCanonicalNQuads = "canonical-n-quads"

	// DefaultFormat is used when a caller leaves the format empty.
	DefaultFormat = FormatNQuads
)

// FormatInfo provides metadata about a serialization format.
type FormatInfo struct {
	// Name is the format identifier understood by the processor.
	Name string

	// MIMEType is the standard MIME type.
	MIMEType string

	// Extension is the file extension (with dot).
	Extension string

	// Description describes the format.
	Description string
}

// FormatRegistry contains metadata for all supported canonical formats.
var FormatRegistry = map[string]FormatInfo{
	FormatNQuads: {
		Name:        FormatNQuads,
		MIMEType:    "application/n-quads",
		Extension:   ".nq",
		Description: "N-Quads - Line-based RDF dataset format",
	},
}

var formatAliases = map[string]string{
	FormatCanonicalNQuads: FormatNQuads,
	"nquads":              FormatNQuads,
	"n-quads":             FormatNQuads,
}

// GetFormatInfo returns metadata for a format or one of its aliases.
func GetFormatInfo(format string) (FormatInfo, bool) {
	name, err := ResolveFormat(format)
	if err != nil {
		return FormatInfo{}, false
	}
	info, ok := FormatRegistry[name]
	return info, ok
}

// ResolveFormat maps a format identifier to its registered name. An empty
// identifier resolves to DefaultFormat.
func ResolveFormat(format string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(format))
	if f == "" {
		return DefaultFormat, nil
	}
	if alias, ok := formatAliases[f]; ok {
		return alias, nil
	}
	if _, ok := FormatRegistry[f]; ok {
		return f, nil
	}
	return "", fmt.Errorf("%w: %s (valid: %s)", ErrUnsupportedFormat, format, strings.Join(SupportedFormats(), ", "))
}

// SupportedFormats returns all accepted format identifiers, sorted.
func SupportedFormats() []string {
	names := make([]string, 0, len(FormatRegistry)+len(formatAliases))
	for name := range FormatRegistry {
		names = append(names, name)
	}
	for alias := range formatAliases {
		names = append(names, alias)
	}
	sort.Strings(names)
	return names
}
