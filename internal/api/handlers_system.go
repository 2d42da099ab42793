package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// healthCheck reports liveness.
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// statusResponse is the body of GET /api/v1/status.
type statusResponse struct {
	Version          string `json:"version"`
	GatewayConnected bool   `json:"gatewayConnected"`
	ActiveSearches   int    `json:"activeSearches"`
	ConnectedClients int    `json:"connectedClients"`
}

// getStatus reports gateway connectivity and pipeline activity.
func (s *Server) getStatus(c echo.Context) error {
	resp := statusResponse{
		Version:        s.version,
		ActiveSearches: s.coordinator.ActiveSessions(),
	}
	if s.gateway != nil {
		resp.GatewayConnected = s.gateway.CheckConnectivity(c.Request().Context())
	}
	if s.hub != nil {
		resp.ConnectedClients = s.hub.ClientCount()
	}
	return c.JSON(http.StatusOK, resp)
}
