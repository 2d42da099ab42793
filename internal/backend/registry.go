// Package backend routes pluggable capabilities behind string-keyed
// registries: metadata providers and music importers. Each capability
// has one default implementation selected at wiring time.
package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrUnknownBackend = errors.New("unknown backend")

// Release is a provider-neutral release listing.
type Release struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Date       string `json:"date"`
	TrackCount int    `json:"trackCount"`
}

// MetadataProvider looks up releases and track listings.
type MetadataProvider interface {
	Name() string
	Test(ctx context.Context) error
	SearchReleases(ctx context.Context, artist, album string) ([]Release, error)
	ReleaseTracks(ctx context.Context, releaseID string) ([]string, error)
}

// MusicImporter catalogues downloaded files into the library.
type MusicImporter interface {
	Name() string
	Import(ctx context.Context, sources []string, asAlbum bool) error
}

// Registry holds the registered implementations per capability.
type Registry struct {
	mu sync.RWMutex

	metadata        map[string]MetadataProvider
	defaultMetadata string

	importers       map[string]MusicImporter
	defaultImporter string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		metadata:  make(map[string]MetadataProvider),
		importers: make(map[string]MusicImporter),
	}
}

// RegisterMetadata adds a metadata provider. The first registration
// becomes the default unless a later one claims it.
func (r *Registry) RegisterMetadata(provider MetadataProvider, isDefault bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metadata[provider.Name()] = provider
	if isDefault || r.defaultMetadata == "" {
		r.defaultMetadata = provider.Name()
	}
}

// Metadata returns the provider with the given name, or the default
// when name is empty.
func (r *Registry) Metadata(name string) (MetadataProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.defaultMetadata
	}
	provider, ok := r.metadata[name]
	if !ok {
		return nil, fmt.Errorf("%w: metadata provider %q", ErrUnknownBackend, name)
	}
	return provider, nil
}

// RegisterImporter adds a music importer. The first registration
// becomes the default unless a later one claims it.
func (r *Registry) RegisterImporter(imp MusicImporter, isDefault bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.importers[imp.Name()] = imp
	if isDefault || r.defaultImporter == "" {
		r.defaultImporter = imp.Name()
	}
}

// Importer returns the importer with the given name, or the default
// when name is empty.
func (r *Registry) Importer(name string) (MusicImporter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.defaultImporter
	}
	imp, ok := r.importers[name]
	if !ok {
		return nil, fmt.Errorf("%w: importer %q", ErrUnknownBackend, name)
	}
	return imp, nil
}

// MetadataNames lists the registered metadata providers.
func (r *Registry) MetadataNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.metadata))
	for name := range r.metadata {
		names = append(names, name)
	}
	return names
}
