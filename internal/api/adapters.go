package api

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/soulbridge/soulbridge/internal/slskd"
	"github.com/soulbridge/soulbridge/internal/store"
	"github.com/soulbridge/soulbridge/internal/websocket"
)

// transferSink fans each transfer observation out to the WebSocket hub
// and the history store.
type transferSink struct {
	store    *store.Store
	hub      *websocket.Hub
	searchID string
	logger   zerolog.Logger
}

func newTransferSink(st *store.Store, hub *websocket.Hub, searchID string, logger zerolog.Logger) *transferSink {
	return &transferSink{
		store:    st,
		hub:      hub,
		searchID: searchID,
		logger:   logger,
	}
}

// PublishTransfer records the observation and streams it to clients.
// Persistence failures are logged and do not stall the pipeline.
func (t *transferSink) PublishTransfer(username string, record slskd.TransferRecord) {
	if t.hub != nil {
		t.hub.PublishTransfer(username, record)
	}
	if t.store != nil {
		if err := t.store.RecordTransfer(context.Background(), t.searchID, record); err != nil {
			t.logger.Warn().Err(err).Str("filename", record.Filename).Msg("failed to persist transfer")
		}
	}
}
