package slskd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	apiBase        = "/api/v0"
	requestTimeout = 15 * time.Second

	// Peers slower than this are filtered out by the gateway at search
	// time.
	minimumPeerUploadSpeed = 10
)

// Config holds gateway connection settings.
type Config struct {
	URL    string
	APIKey string
}

// Client is a thin, rate-limited wrapper around the gateway HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *Limiter
	logger     zerolog.Logger
}

// New creates a gateway client. A missing base URL is a construction
// error, not a runtime one.
func New(cfg Config, limiter *Limiter, logger zerolog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("gateway base URL is required")
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		limiter: limiter,
		logger:  logger.With().Str("component", "slskd-client").Logger(),
	}, nil
}

// searchRequest is the gateway's search submission body.
type searchRequest struct {
	SearchText             string `json:"searchText"`
	Timeout                int    `json:"timeout"`
	FilterResponses        bool   `json:"filterResponses"`
	MinimumPeerUploadSpeed int    `json:"minimumPeerUploadSpeed"`
}

type searchCreated struct {
	ID string `json:"id"`
}

// searchResponse is one peer's answer to a search.
type searchResponse struct {
	Username          string `json:"username"`
	HasFreeUploadSlot bool   `json:"hasFreeUploadSlot"`
	UploadSpeed       int    `json:"uploadSpeed"`
	QueueLength       int    `json:"queueLength"`
	Files             []struct {
		Filename string `json:"filename"`
		Size     int64  `json:"size"`
		BitRate  int    `json:"bitRate"`
		Length   int    `json:"length"`
	} `json:"files"`
}

// SubmitSearch starts a gateway search and returns its session id.
// Blocks on the shared rate limiter before submitting.
func (c *Client) SubmitSearch(ctx context.Context, query string, timeoutMs int) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body := searchRequest{
		SearchText:             query,
		Timeout:                timeoutMs,
		FilterResponses:        true,
		MinimumPeerUploadSpeed: minimumPeerUploadSpeed,
	}

	data, err := c.do(ctx, http.MethodPost, "/searches", body)
	if err != nil {
		return "", err
	}

	var created searchCreated
	if err := json.Unmarshal(data, &created); err != nil {
		return "", &APIError{StatusCode: http.StatusOK, Message: fmt.Sprintf("malformed search response: %v", err)}
	}
	if created.ID == "" {
		return "", &APIError{StatusCode: http.StatusOK, Message: "search response missing id"}
	}

	c.logger.Debug().Str("searchId", created.ID).Str("query", query).Msg("search submitted")
	return created.ID, nil
}

// PollSearchResponses fetches all peer responses accumulated so far,
// flattened to one candidate per file. An empty body means no data yet.
func (c *Client) PollSearchResponses(ctx context.Context, searchID string) ([]CandidateFile, error) {
	data, err := c.do(ctx, http.MethodGet, "/searches/"+url.PathEscape(searchID)+"/responses", nil)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var responses []searchResponse
	if err := json.Unmarshal(data, &responses); err != nil {
		return nil, &APIError{StatusCode: http.StatusOK, Message: fmt.Sprintf("malformed responses body: %v", err)}
	}

	var candidates []CandidateFile
	for _, resp := range responses {
		for _, file := range resp.Files {
			candidates = append(candidates, CandidateFile{
				Username:          resp.Username,
				Filename:          file.Filename,
				Size:              file.Size,
				BitRate:           file.BitRate,
				Length:            file.Length,
				HasFreeUploadSlot: resp.HasFreeUploadSlot,
				UploadSpeed:       resp.UploadSpeed,
				QueueLength:       resp.QueueLength,
			})
		}
	}
	return candidates, nil
}

// DeleteSearch removes a gateway-side search. Idempotent: a not-found
// response counts as success.
func (c *Client) DeleteSearch(ctx context.Context, searchID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/searches/"+url.PathEscape(searchID), nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

// SubmitDownloads enqueues files at one peer and returns a per-file
// outcome for every requested file. The gateway's response format is not
// contractually fixed; parseDownloadResponse tries each observed shape.
// The returned error covers transport failures only.
func (c *Client) SubmitDownloads(ctx context.Context, username string, files []DownloadRequest) ([]DownloadResult, error) {
	reqURL := c.baseURL + apiBase + "/transfers/downloads/" + url.PathEscape(username)

	payload, err := json.Marshal(files)
	if err != nil {
		return nil, fmt.Errorf("failed to encode download request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download submission failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read download response: %w", err)
	}

	return parseDownloadResponse(username, files, resp.StatusCode, body), nil
}

// parseDownloadResponse maps the gateway's reply onto per-file results.
// Observed shapes, tried in order: error status, empty success body, a
// single object, an array of objects, and an object with separate
// enqueued/failed lists. Anything else degrades to a generic per-file
// failure rather than a parse error.
func parseDownloadResponse(username string, files []DownloadRequest, status int, body []byte) []DownloadResult {
	results := make([]DownloadResult, 0, len(files))

	fail := func(msg string) []DownloadResult {
		for _, f := range files {
			results = append(results, DownloadResult{
				Username: username,
				Filename: f.Filename,
				Size:     f.Size,
				Error:    msg,
			})
		}
		return results
	}
	succeedAll := func() []DownloadResult {
		for _, f := range files {
			results = append(results, DownloadResult{
				Username: username,
				Filename: f.Filename,
				Size:     f.Size,
			})
		}
		return results
	}

	if status < 200 || status >= 300 {
		return fail(fmt.Sprintf("gateway returned status %d: %s", status, strings.TrimSpace(string(body))))
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		// Empty success body means the entire batch was accepted.
		return succeedAll()
	}

	type enqueuedFile struct {
		Filename string `json:"filename"`
		Size     int64  `json:"size"`
	}

	var single enqueuedFile
	if err := json.Unmarshal(trimmed, &single); err == nil && single.Filename != "" {
		return succeedAll()
	}

	var list []enqueuedFile
	if err := json.Unmarshal(trimmed, &list); err == nil {
		return succeedAll()
	}

	var batch struct {
		Enqueued []enqueuedFile `json:"enqueued"`
		Failed   []struct {
			Filename string `json:"filename"`
			Reason   string `json:"reason"`
		} `json:"failed"`
	}
	if err := json.Unmarshal(trimmed, &batch); err == nil && (len(batch.Enqueued) > 0 || len(batch.Failed) > 0) {
		failedReasons := make(map[string]string, len(batch.Failed))
		for _, f := range batch.Failed {
			reason := f.Reason
			if reason == "" {
				reason = "gateway rejected file"
			}
			failedReasons[f.Filename] = reason
		}
		for _, f := range files {
			result := DownloadResult{Username: username, Filename: f.Filename, Size: f.Size}
			if reason, failed := failedReasons[f.Filename]; failed {
				result.Error = reason
			}
			results = append(results, result)
		}
		return results
	}

	return fail("unparseable gateway response")
}

// downloadsUser is the nested shape of the gateway transfer listing.
type downloadsUser struct {
	Username    string `json:"username"`
	Directories []struct {
		Directory string           `json:"directory"`
		Files     []TransferRecord `json:"files"`
	} `json:"directories"`
}

// ListDownloads returns every live transfer the gateway knows about,
// flattened from the per-user, per-directory nesting.
func (c *Client) ListDownloads(ctx context.Context) ([]TransferRecord, error) {
	data, err := c.do(ctx, http.MethodGet, "/transfers/downloads", nil)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var users []downloadsUser
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, &APIError{StatusCode: http.StatusOK, Message: fmt.Sprintf("malformed transfer listing: %v", err)}
	}

	var records []TransferRecord
	for _, user := range users {
		for _, dir := range user.Directories {
			for _, file := range dir.Files {
				if file.Username == "" {
					file.Username = user.Username
				}
				records = append(records, file)
			}
		}
	}
	return records, nil
}

// CancelDownload cancels one transfer, optionally removing it from the
// gateway's list.
func (c *Client) CancelDownload(ctx context.Context, username, id string, remove bool) error {
	path := fmt.Sprintf("/transfers/downloads/%s/%s?remove=%t", url.PathEscape(username), url.PathEscape(id), remove)
	_, err := c.do(ctx, http.MethodDelete, path, nil)
	return err
}

// ClearCompleted removes all completed transfers from the gateway list.
func (c *Client) ClearCompleted(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodDelete, "/transfers/downloads/all/completed", nil)
	return err
}

// Ping probes the gateway session endpoint and returns the underlying
// error, letting callers distinguish network failures from API ones.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/session", nil)
	return err
}

// CheckConnectivity reports whether the gateway session is reachable.
func (c *Client) CheckConnectivity(ctx context.Context) bool {
	if err := c.Ping(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("gateway connectivity check failed")
		return false
	}
	return true
}

// do performs one API call and returns the raw body. Non-2xx responses
// become APIErrors carrying the status and body text.
func (c *Client) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiBase+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(data)),
		}
	}
	return data, nil
}
