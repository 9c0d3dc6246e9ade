package jsonld

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/piprate/json-gold/ld"
)

// JSONLDPatchV1Context is the well-known identifier of the patch vocabulary context.
const JSONLDPatchV1Context = "https://w3id.org/json-ld-patch/v1"

//go:embed contexts/*.jsonld
var contextFS embed.FS

// bundledFiles maps context URLs to their embedded documents.
var bundledFiles = map[string]string{
	JSONLDPatchV1Context: "contexts/json-ld-patch-v1.jsonld",
}

var bundled = mustLoadBundled()

func mustLoadBundled() map[string]map[string]any {
	out := make(map[string]map[string]any, len(bundledFiles))
	for url, file := range bundledFiles {
		data, err := contextFS.ReadFile(file)
		if err != nil {
			panic("failed to read bundled context " + url + ": " + err.Error())
		}
		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			panic("failed to parse bundled context " + url + ": " + err.Error())
		}
		out[url] = doc
	}
	return out
}

// Contexts returns a copy of every bundled context document, keyed by URL.
func Contexts() map[string]map[string]any {
	out := make(map[string]map[string]any, len(bundled))
	for url, doc := range bundled {
		out[url] = CloneMap(doc)
	}
	return out
}

// Context returns a copy of the bundled context document for url.
func Context(url string) (map[string]any, bool) {
	doc, ok := bundled[url]
	if !ok {
		return nil, false
	}
	return CloneMap(doc), true
}

// ContextURLs returns the URLs of all bundled contexts, sorted.
func ContextURLs() []string {
	urls := make([]string, 0, len(bundled))
	for url := range bundled {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls
}

// bundledLoader serves bundled contexts locally and defers everything else
// to next.
type bundledLoader struct {
	next ld.DocumentLoader
}

// LoadDocument implements ld.DocumentLoader.
func (l *bundledLoader) LoadDocument(url string) (*ld.RemoteDocument, error) {
	if doc, ok := Context(url); ok {
		return &ld.RemoteDocument{DocumentURL: url, Document: doc}, nil
	}
	if l.next == nil {
		return nil, ld.NewJsonLdError(ld.LoadingDocumentFailed, fmt.Sprintf("no loader for %s", url))
	}
	return l.next.LoadDocument(url)
}
