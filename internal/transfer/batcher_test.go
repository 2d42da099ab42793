package transfer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/soulbridge/soulbridge/internal/slskd"
)

type fakeSubmitter struct {
	mu      sync.Mutex
	calls   [][]slskd.DownloadRequest
	users   []string
	err     error
	failFor int // fail this many calls, then succeed
}

func (f *fakeSubmitter) SubmitDownloads(_ context.Context, username string, files []slskd.DownloadRequest) ([]slskd.DownloadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, files)
	f.users = append(f.users, username)

	if f.err != nil && (f.failFor == 0 || len(f.calls) <= f.failFor) {
		return nil, f.err
	}

	results := make([]slskd.DownloadResult, 0, len(files))
	for _, file := range files {
		results = append(results, slskd.DownloadResult{
			Username: username,
			Filename: file.Filename,
			Size:     file.Size,
		})
	}
	return results, nil
}

func (f *fakeSubmitter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestBatcher(client Submitter) *Batcher {
	b := NewBatcher(client, Config{
		BatchSize:      3,
		BatchDelay:     3 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: time.Second,
	}, zerolog.Nop())
	b.sleep = func(context.Context, time.Duration) error { return nil }
	return b
}

func TestDownloadChunksPerPeer(t *testing.T) {
	client := &fakeSubmitter{}
	b := newTestBatcher(client)

	selections := []Selection{
		{Username: "alice", Filename: "a1.flac", Size: 1},
		{Username: "alice", Filename: "a2.flac", Size: 2},
		{Username: "alice", Filename: "a3.flac", Size: 3},
		{Username: "alice", Filename: "a4.flac", Size: 4},
		{Username: "bob", Filename: "b1.flac", Size: 5},
	}

	results := b.Download(context.Background(), selections)

	if len(results) != 5 {
		t.Fatalf("Expected 5 results, got %d", len(results))
	}
	for _, res := range results {
		if res.Error != "" {
			t.Errorf("Unexpected failure for %q: %s", res.Filename, res.Error)
		}
	}

	// Alice's 4 files make two batches at size 3; Bob's single file one.
	if got := client.callCount(); got != 3 {
		t.Errorf("Expected 3 submissions, got %d", got)
	}
}

func TestDownloadDeduplicatesWithinPeer(t *testing.T) {
	client := &fakeSubmitter{}
	b := newTestBatcher(client)

	results := b.Download(context.Background(), []Selection{
		{Username: "alice", Filename: "same.flac", Size: 1},
		{Username: "alice", Filename: "same.flac", Size: 1},
	})

	if len(results) != 1 {
		t.Errorf("Expected duplicate filename collapsed to 1 result, got %d", len(results))
	}
}

func TestDownloadRetriesAreBounded(t *testing.T) {
	client := &fakeSubmitter{err: errors.New("connection refused")}
	b := newTestBatcher(client)

	selections := []Selection{
		{Username: "alice", Filename: "a1.flac", Size: 1},
		{Username: "alice", Filename: "a2.flac", Size: 2},
		{Username: "alice", Filename: "a3.flac", Size: 3},
	}

	results := b.Download(context.Background(), selections)

	if len(results) != 3 {
		t.Fatalf("Expected one failure per input file, got %d results", len(results))
	}
	for _, res := range results {
		if res.Error == "" {
			t.Errorf("Expected failure record for %q", res.Filename)
		}
	}

	// One batch, maxRetries+1 attempts, no calls beyond that.
	if got := client.callCount(); got != 4 {
		t.Errorf("Expected exactly 4 network calls (max retries + 1), got %d", got)
	}
}

func TestDownloadRecoversAfterTransientFailure(t *testing.T) {
	client := &fakeSubmitter{err: errors.New("timeout"), failFor: 2}
	b := newTestBatcher(client)

	results := b.Download(context.Background(), []Selection{
		{Username: "alice", Filename: "a1.flac", Size: 1},
	})

	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].Error != "" {
		t.Errorf("Expected eventual success, got error %q", results[0].Error)
	}
	if got := client.callCount(); got != 3 {
		t.Errorf("Expected 3 attempts (2 failures then success), got %d", got)
	}
}

func TestDownloadPeerBatchesAreSequentialWithDelay(t *testing.T) {
	client := &fakeSubmitter{}
	b := newTestBatcher(client)

	var slept []time.Duration
	b.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	b.Download(context.Background(), []Selection{
		{Username: "alice", Filename: "a1.flac"},
		{Username: "alice", Filename: "a2.flac"},
		{Username: "alice", Filename: "a3.flac"},
		{Username: "alice", Filename: "a4.flac"},
	})

	if len(slept) != 1 {
		t.Fatalf("Expected exactly one inter-batch delay, got %d", len(slept))
	}
	if slept[0] != 3*time.Second {
		t.Errorf("Expected the configured 3s inter-batch delay, got %v", slept[0])
	}
}

func TestDownloadCancellationStopsSubmission(t *testing.T) {
	client := &fakeSubmitter{err: errors.New("unreachable")}
	b := newTestBatcher(client)
	b.sleep = sleepContext

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := b.Download(ctx, []Selection{
		{Username: "alice", Filename: "a1.flac", Size: 1},
	})

	if len(results) != 1 {
		t.Fatalf("Expected a failure record under cancellation, got %d results", len(results))
	}
	if results[0].Error == "" {
		t.Error("Expected a failure record, got success")
	}
	if got := client.callCount(); got > 1 {
		t.Errorf("Expected no retries after cancellation, got %d calls", got)
	}
}
