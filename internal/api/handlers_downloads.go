package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/soulbridge/soulbridge/internal/slskd"
	"github.com/soulbridge/soulbridge/internal/transfer"
)

// startDownloadsRequest is the body of POST /api/v1/download.
type startDownloadsRequest struct {
	SearchID   string               `json:"searchId"`
	Selections []transfer.Selection `json:"selections"`
}

// startDownloadsResponse reports per-file submission outcomes.
type startDownloadsResponse struct {
	Accepted int                    `json:"accepted"`
	Failed   int                    `json:"failed"`
	Results  []slskd.DownloadResult `json:"results"`
}

// startDownloads submits the selected files to the gateway in batches
// and starts a monitor per peer for everything the gateway accepted.
func (s *Server) startDownloads(c echo.Context) error {
	var req startDownloadsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Selections) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no files selected")
	}

	results := s.batcher.Download(c.Request().Context(), req.Selections)

	sink := newTransferSink(s.store, s.hub, req.SearchID, s.logger)
	accepted := make(map[string][]string)
	var acceptedCount, failedCount int
	for _, result := range results {
		if result.Error != "" {
			failedCount++
			sink.PublishTransfer(result.Username, slskd.NewErroredRecord(result.Username, result.Filename, result.Error))
			continue
		}
		acceptedCount++
		accepted[result.Username] = append(accepted[result.Username], result.Filename)
	}

	for username, filenames := range accepted {
		s.trackMonitor(req.SearchID, username, filenames)
	}

	return c.JSON(http.StatusAccepted, startDownloadsResponse{
		Accepted: acceptedCount,
		Failed:   failedCount,
		Results:  results,
	})
}

// listTransfers returns gateway downloads, or persisted history with
// ?history=true.
func (s *Server) listTransfers(c echo.Context) error {
	username := c.QueryParam("username")

	if c.QueryParam("history") == "true" {
		transfers, err := s.store.ListTransfers(c.Request().Context(), username, 100)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, transfers)
	}

	records, err := s.gateway.ListDownloads(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	if username != "" {
		filtered := records[:0]
		for _, record := range records {
			if record.Username == username {
				filtered = append(filtered, record)
			}
		}
		records = filtered
	}
	if records == nil {
		records = []slskd.TransferRecord{}
	}
	return c.JSON(http.StatusOK, records)
}

// cancelDownload cancels one gateway transfer. ?remove=true also
// removes it from the gateway's list.
func (s *Server) cancelDownload(c echo.Context) error {
	username := c.Param("username")
	id := c.Param("id")
	remove := c.QueryParam("remove") == "true"

	if err := s.gateway.CancelDownload(c.Request().Context(), username, id, remove); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// clearCompleted removes all finished downloads from the gateway.
func (s *Server) clearCompleted(c echo.Context) error {
	if err := s.gateway.ClearCompleted(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
