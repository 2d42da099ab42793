package backend

import (
	"context"
	"errors"
	"testing"
)

type stubProvider struct {
	name string
}

func (s *stubProvider) Name() string                   { return s.name }
func (s *stubProvider) Test(context.Context) error     { return nil }
func (s *stubProvider) SearchReleases(context.Context, string, string) ([]Release, error) {
	return nil, nil
}
func (s *stubProvider) ReleaseTracks(context.Context, string) ([]string, error) {
	return nil, nil
}

type stubImporter struct {
	name string
}

func (s *stubImporter) Name() string { return s.name }
func (s *stubImporter) Import(context.Context, []string, bool) error {
	return nil
}

func TestRegistryDefaultsToFirstRegistration(t *testing.T) {
	r := NewRegistry()
	r.RegisterMetadata(&stubProvider{name: "first"}, false)
	r.RegisterMetadata(&stubProvider{name: "second"}, false)

	provider, err := r.Metadata("")
	if err != nil {
		t.Fatalf("Metadata() error = %v", err)
	}
	if provider.Name() != "first" {
		t.Errorf("Expected first registration as default, got %q", provider.Name())
	}
}

func TestRegistryExplicitDefaultWins(t *testing.T) {
	r := NewRegistry()
	r.RegisterImporter(&stubImporter{name: "first"}, false)
	r.RegisterImporter(&stubImporter{name: "preferred"}, true)

	imp, err := r.Importer("")
	if err != nil {
		t.Fatalf("Importer() error = %v", err)
	}
	if imp.Name() != "preferred" {
		t.Errorf("Expected the explicit default, got %q", imp.Name())
	}
}

func TestRegistryLooksUpByName(t *testing.T) {
	r := NewRegistry()
	r.RegisterMetadata(&stubProvider{name: "musicbrainz"}, true)

	provider, err := r.Metadata("musicbrainz")
	if err != nil {
		t.Fatalf("Metadata() error = %v", err)
	}
	if provider.Name() != "musicbrainz" {
		t.Errorf("Expected lookup by name, got %q", provider.Name())
	}
}

func TestRegistryUnknownName(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Metadata("nope"); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("Expected ErrUnknownBackend, got %v", err)
	}
	if _, err := r.Importer("nope"); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("Expected ErrUnknownBackend, got %v", err)
	}
}
