// Package musicbrainz queries the MusicBrainz web service for release
// and track listings used to seed searches and score candidates.
package musicbrainz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/soulbridge/soulbridge/internal/config"
)

var (
	ErrReleaseNotFound = errors.New("release not found")
	ErrAPIError        = errors.New("MusicBrainz API error")
	ErrRateLimited     = errors.New("MusicBrainz API rate limited")
)

const (
	maxRetries     = 3
	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 5 * time.Second
)

// Client is a MusicBrainz web service client. Failed requests are
// retried with exponential backoff when the failure is transient.
type Client struct {
	httpClient *http.Client
	config     config.MusicBrainzConfig
	logger     zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a new MusicBrainz client.
func NewClient(cfg config.MusicBrainzConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		logger: logger.With().Str("component", "musicbrainz").Logger(),
		sleep:  sleepContext,
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

// Name returns the provider name.
func (c *Client) Name() string {
	return "musicbrainz"
}

// Test verifies connectivity by looking up a known release group.
func (c *Client) Test(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/release", c.config.BaseURL)
	params := url.Values{}
	params.Set("query", "release:test")
	params.Set("limit", "1")
	params.Set("fmt", "json")

	var result releaseSearchResponse
	return c.doRequest(ctx, endpoint, params, &result)
}

// SearchReleases finds releases matching the given artist and album
// title, ordered by MusicBrainz relevance score.
func (c *Client) SearchReleases(ctx context.Context, artist, album string) ([]Release, error) {
	endpoint := fmt.Sprintf("%s/release", c.config.BaseURL)
	params := url.Values{}
	params.Set("query", fmt.Sprintf(`artist:%q AND release:%q`, artist, album))
	params.Set("limit", "10")
	params.Set("fmt", "json")

	var response releaseSearchResponse
	if err := c.doRequest(ctx, endpoint, params, &response); err != nil {
		return nil, err
	}
	if len(response.Releases) == 0 {
		return nil, ErrReleaseNotFound
	}
	return response.Releases, nil
}

// ReleaseTracks returns the track titles of a release in media order.
func (c *Client) ReleaseTracks(ctx context.Context, releaseID string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/release/%s", c.config.BaseURL, releaseID)
	params := url.Values{}
	params.Set("inc", "recordings")
	params.Set("fmt", "json")

	var response releaseLookupResponse
	if err := c.doRequest(ctx, endpoint, params, &response); err != nil {
		return nil, err
	}

	var tracks []string
	for _, medium := range response.Media {
		for _, track := range medium.Tracks {
			tracks = append(tracks, track.Title)
		}
	}
	if len(tracks) == 0 {
		return nil, ErrReleaseNotFound
	}
	return tracks, nil
}

// doRequest performs a GET with retries and decodes the JSON response.
func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values, result interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay * time.Duration(1<<uint(attempt-1))
			if delay > retryMaxDelay {
				delay = retryMaxDelay
			}
			c.logger.Debug().
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("retrying request")
			if err := c.sleep(ctx, delay); err != nil {
				return err
			}
		}

		err := c.doOnce(ctx, endpoint, params, result)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("request failed after %d attempts: %w", maxRetries+1, lastErr)
}

func (c *Client) doOnce(ctx context.Context, endpoint string, params url.Values, result interface{}) error {
	reqURL := fmt.Sprintf("%s?%s", endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return ErrReleaseNotFound
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// isRetryable reports whether the error is worth another attempt.
// Client-side mistakes and missing releases are not.
func isRetryable(err error) bool {
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrAPIError) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
