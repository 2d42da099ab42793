// Package search manages gateway search sessions: query construction,
// long-poll aggregation of peer responses, and scoring/grouping of
// candidates into ranked album groups.
package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/soulbridge/soulbridge/internal/slskd"
)

const (
	// longPollWindow bounds how long one PollSearch call holds the
	// connection waiting for new peer responses.
	longPollWindow = 10 * time.Second

	// pollInterval is the inner sleep between gateway response checks.
	pollInterval = time.Second

	// maxGroups finalizes a session once grouping yields this many
	// results; further peer responses add nothing useful.
	maxGroups = 50

	// minMatchScore discards candidates before grouping.
	minMatchScore = 0.6
)

// State describes a search session's lifecycle.
type State string

const (
	StateInProgress State = "InProgress"
	StateCompleted  State = "Completed"
	StateNotFound   State = "NotFound"
	StateTimedOut   State = "TimedOut"
)

// Gateway is the slice of the slskd client the coordinator needs.
type Gateway interface {
	SubmitSearch(ctx context.Context, query string, timeoutMs int) (string, error)
	PollSearchResponses(ctx context.Context, searchID string) ([]slskd.CandidateFile, error)
	DeleteSearch(ctx context.Context, searchID string) error
}

// TrackMatch is the best candidate retained for one expected track.
type TrackMatch struct {
	Track        string              `json:"track"`
	File         slskd.CandidateFile `json:"file"`
	MatchScore   float64             `json:"matchScore"`
	QualityScore float64             `json:"qualityScore"`
}

// AlbumGroup is one peer's coherent offering for the searched album,
// keyed by (username, guessed artist, guessed album). Rebuilt from
// scratch on every poll, never mutated in place.
type AlbumGroup struct {
	Username     string       `json:"username"`
	Artist       string       `json:"artist"`
	Album        string       `json:"album"`
	Tracks       []TrackMatch `json:"tracks"`
	TotalSize    int64        `json:"totalSize"`
	Quality      string       `json:"quality"`
	Completeness float64      `json:"completeness"`
	Score        float64      `json:"score"`
}

// PollResult is one PollSearch outcome.
type PollResult struct {
	Groups  []AlbumGroup `json:"groups"`
	HasMore bool         `json:"hasMore"`
	State   State        `json:"state"`
}

// session tracks one outstanding gateway search. seenResponses is
// monotonically non-decreasing.
type session struct {
	id            string
	artist        string
	album         string
	tracks        []string
	createdAt     time.Time
	timeout       time.Duration
	seenResponses int
}

// Coordinator owns the active search session map.
type Coordinator struct {
	gateway Gateway
	logger  zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*session

	searchTimeoutMs int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewCoordinator creates a search coordinator. searchTimeoutMs is the
// gateway-side search duration passed on submission.
func NewCoordinator(gateway Gateway, searchTimeoutMs int, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		gateway:         gateway,
		logger:          logger.With().Str("component", "search-coordinator").Logger(),
		sessions:        make(map[string]*session),
		searchTimeoutMs: searchTimeoutMs,
		now:             time.Now,
		sleep:           sleepContext,
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

// buildQuery constructs the gateway search text. A single-track search
// uses the track title directly, which yields better recall against the
// peer index than the album title would for one track.
func buildQuery(artist, album string, tracks []string) string {
	if len(tracks) == 1 {
		return strings.TrimSpace(artist + " " + tracks[0])
	}
	if album != "" {
		return strings.TrimSpace(artist + " " + album)
	}
	return strings.TrimSpace(artist)
}

// StartSearch submits a gateway search and registers a session for it.
// The timeout bounds the session's total lifetime across polls.
func (c *Coordinator) StartSearch(ctx context.Context, artist, album string, tracks []string, timeout time.Duration) (string, error) {
	if artist == "" {
		return "", fmt.Errorf("artist is required")
	}

	query := buildQuery(artist, album, tracks)
	id, err := c.gateway.SubmitSearch(ctx, query, c.searchTimeoutMs)
	if err != nil {
		return "", fmt.Errorf("failed to submit search: %w", err)
	}

	c.mu.Lock()
	c.sessions[id] = &session{
		id:        id,
		artist:    artist,
		album:     album,
		tracks:    tracks,
		createdAt: c.now(),
		timeout:   timeout,
	}
	c.mu.Unlock()

	c.logger.Info().
		Str("searchId", id).
		Str("query", query).
		Int("expectedTracks", len(tracks)).
		Msg("search started")
	return id, nil
}

// DeleteSearch cancels a session and its gateway-side search.
func (c *Coordinator) DeleteSearch(ctx context.Context, searchID string) error {
	c.mu.Lock()
	delete(c.sessions, searchID)
	c.mu.Unlock()
	return c.gateway.DeleteSearch(ctx, searchID)
}

// PollSearch holds the connection for up to the long-poll window waiting
// for new peer responses. When the gateway's response count grows, all
// responses accumulated so far are re-scored and re-grouped from
// scratch; recomputation is cheap next to network latency and avoids
// incremental-update bugs.
func (c *Coordinator) PollSearch(ctx context.Context, searchID string) (PollResult, error) {
	deadline := c.now().Add(longPollWindow)

	for {
		c.mu.Lock()
		sess, ok := c.sessions[searchID]
		c.mu.Unlock()
		if !ok {
			return PollResult{State: StateNotFound}, nil
		}

		if c.now().Sub(sess.createdAt) > sess.timeout {
			return c.finalizeExpired(ctx, sess), nil
		}

		candidates, err := c.gateway.PollSearchResponses(ctx, searchID)
		if err != nil {
			// Gateway hiccups during polling are transient; keep the
			// session alive and try again.
			c.logger.Warn().Err(err).Str("searchId", searchID).Msg("poll failed, will retry")
		} else if len(candidates) > sess.seenResponses {
			return c.regroup(ctx, sess, candidates), nil
		}

		if !c.now().Before(deadline) {
			return PollResult{HasMore: true, State: StateInProgress}, nil
		}
		if err := c.sleep(ctx, pollInterval); err != nil {
			return PollResult{}, err
		}
	}
}

// regroup rebuilds the group set from every response seen so far and
// finalizes the session once the group cap is reached.
func (c *Coordinator) regroup(ctx context.Context, sess *session, candidates []slskd.CandidateFile) PollResult {
	c.mu.Lock()
	if len(candidates) > sess.seenResponses {
		sess.seenResponses = len(candidates)
	}
	c.mu.Unlock()

	groups := BuildGroups(candidates, sess.artist, sess.album, sess.tracks)
	if len(groups) > maxGroups {
		c.logger.Info().
			Str("searchId", sess.id).
			Int("groups", len(groups)).
			Msg("group cap reached, finalizing search")
		c.removeSession(ctx, sess.id)
		return PollResult{Groups: groups, State: StateCompleted}
	}

	return PollResult{Groups: groups, HasMore: true, State: StateInProgress}
}

// finalizeExpired ends a session whose caller-supplied timeout elapsed.
// Expiry completes the session with no new groups; once the session is
// removed, later polls report NotFound.
func (c *Coordinator) finalizeExpired(ctx context.Context, sess *session) PollResult {
	c.removeSession(ctx, sess.id)

	c.logger.Info().
		Str("searchId", sess.id).
		Msg("search session expired")
	return PollResult{State: StateCompleted}
}

func (c *Coordinator) removeSession(ctx context.Context, searchID string) {
	c.mu.Lock()
	delete(c.sessions, searchID)
	c.mu.Unlock()

	if err := c.gateway.DeleteSearch(ctx, searchID); err != nil {
		c.logger.Warn().Err(err).Str("searchId", searchID).Msg("failed to delete gateway search")
	}
}

// ActiveSessions returns the number of live search sessions.
func (c *Coordinator) ActiveSessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}
