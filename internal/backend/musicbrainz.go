package backend

import (
	"context"

	"github.com/soulbridge/soulbridge/internal/metadata/musicbrainz"
)

// MusicBrainzProvider adapts the MusicBrainz client to the
// MetadataProvider capability.
type MusicBrainzProvider struct {
	client *musicbrainz.Client
}

// NewMusicBrainzProvider wraps a MusicBrainz client.
func NewMusicBrainzProvider(client *musicbrainz.Client) *MusicBrainzProvider {
	return &MusicBrainzProvider{client: client}
}

func (p *MusicBrainzProvider) Name() string {
	return p.client.Name()
}

func (p *MusicBrainzProvider) Test(ctx context.Context) error {
	return p.client.Test(ctx)
}

func (p *MusicBrainzProvider) SearchReleases(ctx context.Context, artist, album string) ([]Release, error) {
	found, err := p.client.SearchReleases(ctx, artist, album)
	if err != nil {
		return nil, err
	}
	releases := make([]Release, len(found))
	for i, r := range found {
		releases[i] = Release{
			ID:         r.ID,
			Title:      r.Title,
			Artist:     r.Artist(),
			Date:       r.Date,
			TrackCount: r.TrackCount,
		}
	}
	return releases, nil
}

func (p *MusicBrainzProvider) ReleaseTracks(ctx context.Context, releaseID string) ([]string, error) {
	return p.client.ReleaseTracks(ctx, releaseID)
}
