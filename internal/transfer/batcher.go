// Package transfer submits selected files to the gateway in small
// per-peer batches with retry and backoff.
package transfer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/soulbridge/soulbridge/internal/slskd"
)

// Config controls batching and retry behavior.
type Config struct {
	// BatchSize is the number of files submitted per request to one peer.
	BatchSize int
	// BatchDelay separates consecutive batches to the same peer.
	BatchDelay time.Duration
	// MaxRetries is how many times a failed batch submission is retried.
	MaxRetries int
	// RetryBaseDelay is doubled per attempt for backoff.
	RetryBaseDelay time.Duration
}

// DefaultConfig returns the production batching defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:      3,
		BatchDelay:     3000 * time.Millisecond,
		MaxRetries:     3,
		RetryBaseDelay: time.Second,
	}
}

// Submitter is the slice of the gateway client the batcher needs.
type Submitter interface {
	SubmitDownloads(ctx context.Context, username string, files []slskd.DownloadRequest) ([]slskd.DownloadResult, error)
}

// Selection is one user-chosen file to download.
type Selection struct {
	Username string `json:"username"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// Batcher groups selections by peer and submits them in bounded,
// delayed, retried batches. Peers are independent of each other; batches
// for one peer are strictly sequential.
type Batcher struct {
	client Submitter
	config Config
	logger zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewBatcher creates a transfer batcher.
func NewBatcher(client Submitter, config Config, logger zerolog.Logger) *Batcher {
	return &Batcher{
		client: client,
		config: config,
		logger: logger.With().Str("component", "transfer-batcher").Logger(),
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

// Download submits every selection and returns one result per unique
// file. Partial failure is a per-file outcome; this never returns an
// error for a failed batch.
func (b *Batcher) Download(ctx context.Context, selections []Selection) []slskd.DownloadResult {
	perPeer := groupByPeer(selections)

	var (
		mu      sync.Mutex
		results []slskd.DownloadResult
		wg      sync.WaitGroup
	)

	for _, peer := range perPeer {
		wg.Add(1)
		go func(username string, files []slskd.DownloadRequest) {
			defer wg.Done()
			peerResults := b.downloadForPeer(ctx, username, files)
			mu.Lock()
			results = append(results, peerResults...)
			mu.Unlock()
		}(peer.username, peer.files)
	}
	wg.Wait()

	return results
}

type peerSelections struct {
	username string
	files    []slskd.DownloadRequest
}

// groupByPeer buckets selections by username in first-seen order and
// drops duplicate filenames within a peer.
func groupByPeer(selections []Selection) []peerSelections {
	index := make(map[string]int)
	seen := make(map[string]map[string]struct{})
	var peers []peerSelections

	for _, sel := range selections {
		i, ok := index[sel.Username]
		if !ok {
			i = len(peers)
			index[sel.Username] = i
			peers = append(peers, peerSelections{username: sel.Username})
			seen[sel.Username] = make(map[string]struct{})
		}
		if _, dup := seen[sel.Username][sel.Filename]; dup {
			continue
		}
		seen[sel.Username][sel.Filename] = struct{}{}
		peers[i].files = append(peers[i].files, slskd.DownloadRequest{
			Filename: sel.Filename,
			Size:     sel.Size,
		})
	}
	return peers
}

// downloadForPeer submits one peer's files in sequential batches with an
// inter-batch delay.
func (b *Batcher) downloadForPeer(ctx context.Context, username string, files []slskd.DownloadRequest) []slskd.DownloadResult {
	var results []slskd.DownloadResult

	for start := 0; start < len(files); start += b.config.BatchSize {
		end := start + b.config.BatchSize
		if end > len(files) {
			end = len(files)
		}
		batch := files[start:end]

		if start > 0 {
			if err := b.sleep(ctx, b.config.BatchDelay); err != nil {
				results = append(results, failBatch(username, files[start:], err.Error())...)
				return results
			}
		}

		results = append(results, b.submitBatch(ctx, username, batch)...)
	}
	return results
}

// submitBatch retries one batch with exponential backoff. A batch that
// exhausts its retries yields one failure record per file carrying the
// last error, never an aborted operation.
func (b *Batcher) submitBatch(ctx context.Context, username string, batch []slskd.DownloadRequest) []slskd.DownloadResult {
	var lastErr error

	for attempt := 0; attempt <= b.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := b.config.RetryBaseDelay * (1 << (attempt - 1))
			b.logger.Warn().
				Err(lastErr).
				Str("username", username).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("retrying batch submission")
			if err := b.sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
		}

		results, err := b.client.SubmitDownloads(ctx, username, batch)
		if err == nil {
			return results
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	return failBatch(username, batch,
		fmt.Sprintf("submission failed after %d attempts: %v", b.config.MaxRetries+1, lastErr))
}

func failBatch(username string, batch []slskd.DownloadRequest, reason string) []slskd.DownloadResult {
	results := make([]slskd.DownloadResult, 0, len(batch))
	for _, file := range batch {
		results = append(results, slskd.DownloadResult{
			Username: username,
			Filename: file.Filename,
			Size:     file.Size,
			Error:    reason,
		})
	}
	return results
}
