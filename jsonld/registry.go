package jsonld

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/piprate/json-gold/ld"
)

// Capability names accepted by Registry.Use.
const (
	// CapabilityDocumentLoader replaces the loader used to dereference remote
	// contexts. The implementation must satisfy ld.DocumentLoader.
	CapabilityDocumentLoader = "document-loader"

	// CapabilityHTTPClient replaces the HTTP client of the default remote
	// loader. The implementation must be an *http.Client.
	CapabilityHTTPClient = "http-client"
)

// Registry holds environment-specific backends used by the processor.
// It is owned by a Processor; there is no package-level instance.
type Registry struct {
	mu         sync.RWMutex
	loader     ld.DocumentLoader
	httpClient *http.Client
}

// NewRegistry creates an empty registry. Unset capabilities fall back to
// network loading with http.DefaultClient.
func NewRegistry() *Registry {
	return &Registry{}
}

// Use registers impl as the implementation of capability.
func (r *Registry) Use(capability string, impl any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch capability {
	case CapabilityDocumentLoader:
		loader, ok := impl.(ld.DocumentLoader)
		if !ok || loader == nil {
			return fmt.Errorf("%w: %s requires ld.DocumentLoader, got %T", ErrInvalidCapability, capability, impl)
		}
		r.loader = loader
	case CapabilityHTTPClient:
		client, ok := impl.(*http.Client)
		if !ok || client == nil {
			return fmt.Errorf("%w: %s requires *http.Client, got %T", ErrInvalidCapability, capability, impl)
		}
		r.httpClient = client
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCapability, capability)
	}
	return nil
}

// Capabilities returns the names of all registered capabilities, sorted.
func (r *Registry) Capabilities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	if r.loader != nil {
		names = append(names, CapabilityDocumentLoader)
	}
	if r.httpClient != nil {
		names = append(names, CapabilityHTTPClient)
	}
	sort.Strings(names)
	return names
}

// DocumentLoader returns the loader for the next processor call. Bundled
// contexts are always served locally; other URLs go to the registered loader,
// or to a network loader built on the registered HTTP client.
func (r *Registry) DocumentLoader() ld.DocumentLoader {
	r.mu.RLock()
	defer r.mu.RUnlock()

	next := r.loader
	if next == nil {
		client := r.httpClient
		if client == nil {
			client = http.DefaultClient
		}
		next = ld.NewDefaultDocumentLoader(client)
	}
	return &bundledLoader{next: next}
}
