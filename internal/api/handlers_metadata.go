package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/soulbridge/soulbridge/internal/backend"
	"github.com/soulbridge/soulbridge/internal/metadata/musicbrainz"
)

// searchReleases looks up releases via the configured metadata
// provider. ?provider= selects a non-default one.
func (s *Server) searchReleases(c echo.Context) error {
	artist := c.QueryParam("artist")
	album := c.QueryParam("album")
	if artist == "" || album == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "artist and album are required")
	}

	provider, err := s.registry.Metadata(c.QueryParam("provider"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	releases, err := provider.SearchReleases(c.Request().Context(), artist, album)
	if err != nil {
		if errors.Is(err, musicbrainz.ErrReleaseNotFound) {
			return c.JSON(http.StatusOK, []backend.Release{})
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, releases)
}

// releaseTracks returns the track titles of one release, used to seed
// a search with expected tracks.
func (s *Server) releaseTracks(c echo.Context) error {
	provider, err := s.registry.Metadata(c.QueryParam("provider"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	tracks, err := provider.ReleaseTracks(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, musicbrainz.ErrReleaseNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "release not found")
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":     c.Param("id"),
		"tracks": tracks,
	})
}
