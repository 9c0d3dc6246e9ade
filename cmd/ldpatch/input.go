package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/c360studio/ldpatch/patch"
	"gopkg.in/yaml.v3"
)

// stdinPath reads a document from standard input.
const stdinPath = "-"

var stdin io.Reader = os.Stdin

// readDocument loads a JSON or YAML document. YAML is chosen by the .yaml or
// .yml extension and normalized to the shapes encoding/json produces.
func readDocument(path string) (any, error) {
	var (
		data []byte
		err  error
	)
	if path == stdinPath {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if isYAML(path) {
		doc, err := yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return doc, nil
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// readOptionalDocument returns nil for an empty path.
func readOptionalDocument(path string) (any, error) {
	if path == "" {
		return nil, nil
	}
	return readDocument(path)
}

// readContext loads an extra @context value. A file holding a full document
// contributes its @context member.
func readContext(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("context %s must be an object", path)
	}
	if inner, ok := m["@context"].(map[string]any); ok {
		return inner, nil
	}
	return m, nil
}

// readPatch loads and validates a patch document.
func readPatch(path string) (patch.Patch, error) {
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode patch %s: %w", path, err)
	}
	p, err := patch.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("patch %s: %w", path, err)
	}
	if p == nil {
		return nil, fmt.Errorf("patch %s is empty", path)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("patch %s: %w", path, err)
	}
	return p, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// yamlToJSON decodes YAML and round-trips it through JSON so numbers become
// float64 and mappings become map[string]any.
func yamlToJSON(data []byte) (any, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	raw, err := stringKeys(raw)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(encoded, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// stringKeys rejects YAML mappings with non-string keys, which have no JSON form.
func stringKeys(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			converted, err := stringKeys(item)
			if err != nil {
				return nil, err
			}
			t[k] = converted
		}
		return t, nil
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("mapping key %v is not a string", k)
			}
			converted, err := stringKeys(item)
			if err != nil {
				return nil, err
			}
			out[key] = converted
		}
		return out, nil
	case []any:
		for i, item := range t {
			converted, err := stringKeys(item)
			if err != nil {
				return nil, err
			}
			t[i] = converted
		}
		return t, nil
	default:
		return v, nil
	}
}

// expandGlobs resolves file patterns, supporting ** for recursive matches.
// Results are de-duplicated and sorted.
func expandGlobs(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("resolve pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// writeJSON prints v as indented JSON followed by a newline.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
