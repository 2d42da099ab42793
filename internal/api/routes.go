package api

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/soulbridge/soulbridge/internal/api/handlers"
	apimw "github.com/soulbridge/soulbridge/internal/api/middleware"
)

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Request ID
	s.echo.Use(middleware.RequestID())

	// Security headers
	s.echo.Use(apimw.SecurityHeaders())

	// Request body size limit (2MB)
	s.echo.Use(middleware.BodyLimit("2M"))

	// Request logging
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Info().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	// Gzip compression
	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			// Skip compression for WebSocket
			return c.Request().Header.Get("Upgrade") == "websocket"
		},
	}))
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	api := s.echo.Group("/api/v1")
	api.GET("/status", s.getStatus)

	api.POST("/search", s.startSearch)
	api.GET("/search/:id", s.pollSearch)
	api.DELETE("/search/:id", s.deleteSearch)
	api.GET("/searches", s.listSearches)

	api.POST("/download", s.startDownloads)
	api.GET("/transfers", s.listTransfers)
	api.DELETE("/transfers/completed", s.clearCompleted)
	api.DELETE("/transfers/:username/:id", s.cancelDownload)

	if s.registry != nil {
		api.GET("/metadata/releases", s.searchReleases)
		api.GET("/metadata/releases/:id/tracks", s.releaseTracks)
	}

	if s.sched != nil {
		schedulerHandler := handlers.NewSchedulerHandler(s.sched)
		api.GET("/scheduler/tasks", schedulerHandler.ListTasks)
		api.GET("/scheduler/tasks/:id", schedulerHandler.GetTask)
		api.POST("/scheduler/tasks/:id/run", schedulerHandler.RunTask)
	}

	if s.logs != nil {
		logsHandlers := NewLogsHandlers(s.logs)
		logsHandlers.RegisterRoutes(api.Group("/logs"))
	}

	if s.hub != nil {
		s.echo.GET("/ws", s.hub.HandleWebSocket)
	}
}
