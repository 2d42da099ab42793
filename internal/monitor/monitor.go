// Package monitor polls gateway transfer status for one submitted batch
// until every tracked file reaches a terminal state, publishing each
// observation and handing completed files to the importer.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/soulbridge/soulbridge/internal/matching"
	"github.com/soulbridge/soulbridge/internal/slskd"
)

// Config controls the poll loop.
type Config struct {
	// PollInterval separates gateway status polls.
	PollInterval time.Duration
	// EmptyPollGrace is the number of consecutive polls with zero
	// matching records before the batch is declared lost or finished.
	EmptyPollGrace int
	// TrackTimeout bounds first-seen to terminal for one file.
	TrackTimeout time.Duration
	// AlbumMode defers imports to batch completion so files land as one
	// album; otherwise each completed file is imported immediately.
	AlbumMode bool
}

// DefaultConfig returns the production monitoring defaults.
func DefaultConfig(albumMode bool) Config {
	return Config{
		PollInterval:   2 * time.Second,
		EmptyPollGrace: 15,
		TrackTimeout:   time.Hour,
		AlbumMode:      albumMode,
	}
}

// Lister is the slice of the gateway client the monitor needs.
type Lister interface {
	ListDownloads(ctx context.Context) ([]slskd.TransferRecord, error)
}

// Importer receives completed transfer records for cataloguing.
type Importer interface {
	ProcessCompleted(ctx context.Context, records []slskd.TransferRecord)
}

// Sink receives every status observation, including synthesized queued,
// errored and timed-out records.
type Sink interface {
	PublishTransfer(username string, record slskd.TransferRecord)
}

// trackState is the monitor's view of one requested filename.
type trackState struct {
	firstSeen *time.Time
	processed bool
	record    *slskd.TransferRecord
}

// Monitor drives one batch's per-file state machine. One instance per
// submitted batch; instances are independent of each other.
type Monitor struct {
	gateway  Lister
	importer Importer
	sink     Sink
	config   Config
	logger   zerolog.Logger

	imports sync.WaitGroup

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a monitor for one batch.
func New(gateway Lister, importer Importer, sink Sink, config Config, logger zerolog.Logger) *Monitor {
	return &Monitor{
		gateway:  gateway,
		importer: importer,
		sink:     sink,
		config:   config,
		logger:   logger.With().Str("component", "download-monitor").Logger(),
		now:      time.Now,
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run polls until the batch completes, the empty-poll grace expires or
// the context is cancelled. The first poll happens immediately.
// Cancellation stops polling without emitting synthetic failures for
// unresolved tracks.
func (m *Monitor) Run(ctx context.Context, username string, filenames []string) {
	defer m.imports.Wait()

	states := make(map[string]*trackState, len(filenames))
	for _, fn := range filenames {
		states[fn] = &trackState{}
		m.sink.PublishTransfer(username, slskd.NewQueuedRecord(username, fn, 0))
	}

	emptyPolls := 0

	for {
		if ctx.Err() != nil {
			m.logger.Info().Str("username", username).Msg("monitoring cancelled")
			return
		}

		records, err := m.gateway.ListDownloads(ctx)
		if err != nil {
			// Gateway hiccups are expected; keep polling.
			m.logger.Warn().Err(err).Msg("transfer poll failed, will retry")
		} else {
			matched := m.reconcile(username, filenames, states, records)
			if matched == 0 {
				emptyPolls++
				if emptyPolls >= m.config.EmptyPollGrace {
					m.logger.Info().
						Str("username", username).
						Int("polls", emptyPolls).
						Msg("no matching transfers, batch lost or already finished")
					return
				}
			} else {
				emptyPolls = 0
				if m.done(states) {
					m.finish(ctx, username, filenames, states)
					return
				}
			}
		}

		if err := m.sleep(ctx, m.config.PollInterval); err != nil {
			return
		}
	}
}

// reconcile matches gateway records onto tracked filenames and advances
// each track's state. Returns the number of tracks with a matching
// record this poll.
func (m *Monitor) reconcile(username string, filenames []string, states map[string]*trackState, records []slskd.TransferRecord) int {
	matched := 0

	for _, fn := range filenames {
		st := states[fn]

		var record *slskd.TransferRecord
		for i := range records {
			if records[i].Username == username && matching.FilenamesMatch(records[i].Filename, fn) {
				record = &records[i]
				break
			}
		}
		if record == nil {
			continue
		}
		matched++

		if st.processed {
			continue
		}

		if st.firstSeen == nil {
			seen := m.now()
			st.firstSeen = &seen
		}
		st.record = record
		m.sink.PublishTransfer(username, *record)

		switch {
		case m.now().Sub(*st.firstSeen) > m.config.TrackTimeout && !record.IsTerminal():
			// Synthetic terminal state; never superseded by a later
			// gateway state for this track.
			timeoutRecord := slskd.NewTimedOutRecord(username, record.Filename)
			m.sink.PublishTransfer(username, timeoutRecord)
			st.record = &timeoutRecord
			st.processed = true
			m.logger.Warn().Str("filename", fn).Msg("download timed out")

		case record.IsSuccessful():
			if !m.config.AlbumMode {
				m.spawnImport(*record)
				st.processed = true
			}
			// Album mode leaves the track for batch-completion grouping.

		case record.IsFailed():
			st.processed = true
			m.logger.Info().
				Str("filename", fn).
				Str("state", record.StateDescription).
				Msg("download ended without success")
		}
	}
	return matched
}

// done reports batch completion: every track processed, or every track
// that was ever matched sits in a terminal gateway state.
func (m *Monitor) done(states map[string]*trackState) bool {
	allProcessed := true
	allTerminal := true
	anyMatched := false

	for _, st := range states {
		if !st.processed {
			allProcessed = false
		}
		if st.record != nil {
			anyMatched = true
			if !st.record.IsTerminal() {
				allTerminal = false
			}
		} else if !st.processed {
			allTerminal = false
		}
	}
	return allProcessed || (anyMatched && allTerminal)
}

// finish runs the album-mode group import over every successful record
// not yet handed off.
func (m *Monitor) finish(ctx context.Context, username string, filenames []string, states map[string]*trackState) {
	if !m.config.AlbumMode {
		return
	}

	var group []slskd.TransferRecord
	for _, fn := range filenames {
		st := states[fn]
		if !st.processed && st.record != nil && st.record.IsSuccessful() {
			group = append(group, *st.record)
			st.processed = true
		}
	}
	if len(group) == 0 {
		return
	}

	m.logger.Info().
		Str("username", username).
		Int("files", len(group)).
		Msg("batch complete, importing as album")
	m.importer.ProcessCompleted(ctx, group)
}

func (m *Monitor) spawnImport(record slskd.TransferRecord) {
	m.imports.Add(1)
	go func() {
		defer m.imports.Done()
		m.importer.ProcessCompleted(context.Background(), []slskd.TransferRecord{record})
	}()
}
