package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/soulbridge/soulbridge/internal/search"
	"github.com/soulbridge/soulbridge/internal/store"
)

// defaultSearchTimeout bounds a session's lifetime when the caller
// does not choose one.
const defaultSearchTimeout = 5 * time.Minute

// startSearchRequest is the body of POST /api/v1/search.
type startSearchRequest struct {
	Artist         string   `json:"artist"`
	Album          string   `json:"album"`
	Tracks         []string `json:"tracks"`
	TimeoutSeconds int      `json:"timeoutSeconds"`
}

// startSearch submits a new gateway search session.
func (s *Server) startSearch(c echo.Context) error {
	var req startSearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	timeout := defaultSearchTimeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}

	id, err := s.coordinator.StartSearch(c.Request().Context(), req.Artist, req.Album, req.Tracks, timeout)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if s.store != nil {
		searchQuery := req.Artist
		if req.Album != "" {
			searchQuery = req.Artist + " " + req.Album
		}
		if err := s.store.CreateSearch(c.Request().Context(), id, req.Artist, req.Album, searchQuery); err != nil {
			s.logger.Warn().Err(err).Str("searchId", id).Msg("failed to persist search")
		}
	}

	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

// pollSearch long-polls one search session for ranked album groups.
func (s *Server) pollSearch(c echo.Context) error {
	id := c.Param("id")

	result, err := s.coordinator.PollSearch(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if result.State == search.StateNotFound {
		return echo.NewHTTPError(http.StatusNotFound, "search not found")
	}

	if s.store != nil {
		terminal := result.State == search.StateCompleted || result.State == search.StateTimedOut
		if err := s.store.UpdateSearchState(c.Request().Context(), id, string(result.State), len(result.Groups), terminal); err != nil {
			s.logger.Warn().Err(err).Str("searchId", id).Msg("failed to update search state")
		}
	}

	if s.hub != nil {
		s.hub.PublishSearch(map[string]interface{}{
			"id":     id,
			"state":  result.State,
			"groups": len(result.Groups),
		})
	}

	return c.JSON(http.StatusOK, result)
}

// deleteSearch cancels a session and removes it from the gateway.
func (s *Server) deleteSearch(c echo.Context) error {
	id := c.Param("id")

	if err := s.coordinator.DeleteSearch(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if s.store != nil {
		if err := s.store.UpdateSearchState(c.Request().Context(), id, "Cancelled", 0, true); err != nil {
			s.logger.Warn().Err(err).Str("searchId", id).Msg("failed to update search state")
		}
	}

	return c.NoContent(http.StatusNoContent)
}

// listSearches returns recent search history.
func (s *Server) listSearches(c echo.Context) error {
	searches, err := s.store.ListSearches(c.Request().Context(), 50)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if searches == nil {
		searches = []*store.Search{}
	}
	return c.JSON(http.StatusOK, searches)
}
