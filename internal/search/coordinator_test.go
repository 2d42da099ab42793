package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/soulbridge/soulbridge/internal/slskd"
)

type fakeGateway struct {
	mu        sync.Mutex
	submitID  string
	submitErr error
	query     string
	responses []slskd.CandidateFile
	pollErr   error
	deleted   []string
}

func (g *fakeGateway) SubmitSearch(_ context.Context, query string, _ int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.query = query
	return g.submitID, g.submitErr
}

func (g *fakeGateway) PollSearchResponses(_ context.Context, _ string) ([]slskd.CandidateFile, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.responses, g.pollErr
}

func (g *fakeGateway) DeleteSearch(_ context.Context, searchID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, searchID)
	return nil
}

func (g *fakeGateway) setResponses(candidates []slskd.CandidateFile) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.responses = candidates
}

func newTestCoordinator(gateway *fakeGateway) (*Coordinator, *coordClock) {
	clock := &coordClock{current: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	c := NewCoordinator(gateway, 15000, zerolog.Nop())
	c.now = clock.Now
	c.sleep = clock.Sleep
	return c, clock
}

type coordClock struct {
	mu      sync.Mutex
	current time.Time
}

func (c *coordClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *coordClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return nil
}

func (c *coordClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

func TestPollSearchUnknownSession(t *testing.T) {
	coordinator, _ := newTestCoordinator(&fakeGateway{submitID: "s1"})

	result, err := coordinator.PollSearch(context.Background(), "never-started")
	if err != nil {
		t.Fatalf("PollSearch returned error: %v", err)
	}
	if result.State != StateNotFound {
		t.Errorf("Expected NotFound for unknown session, got %s", result.State)
	}
}

func TestPollSearchReturnsGroupsWhenResponsesArrive(t *testing.T) {
	gateway := &fakeGateway{submitID: "s1"}
	coordinator, _ := newTestCoordinator(gateway)

	id, err := coordinator.StartSearch(context.Background(), "Burial", "Untrue",
		[]string{"Archangel"}, 10*time.Minute)
	if err != nil {
		t.Fatalf("StartSearch returned error: %v", err)
	}

	gateway.setResponses([]slskd.CandidateFile{
		{Username: "carol", Filename: `Burial\Untrue\02 - Archangel.flac`, BitRate: 900},
	})

	result, err := coordinator.PollSearch(context.Background(), id)
	if err != nil {
		t.Fatalf("PollSearch returned error: %v", err)
	}
	if result.State != StateInProgress {
		t.Errorf("Expected InProgress, got %s", result.State)
	}
	if !result.HasMore {
		t.Error("Expected HasMore below the group cap")
	}
	if len(result.Groups) != 1 {
		t.Fatalf("Expected 1 group, got %d", len(result.Groups))
	}
}

func TestPollSearchLongPollsWhenNothingNew(t *testing.T) {
	gateway := &fakeGateway{submitID: "s1"}
	coordinator, clock := newTestCoordinator(gateway)

	id, _ := coordinator.StartSearch(context.Background(), "Burial", "", nil, 10*time.Minute)

	start := clock.Now()
	result, err := coordinator.PollSearch(context.Background(), id)
	if err != nil {
		t.Fatalf("PollSearch returned error: %v", err)
	}
	if result.State != StateInProgress || len(result.Groups) != 0 {
		t.Errorf("Expected empty InProgress result, got %+v", result)
	}
	if elapsed := clock.Now().Sub(start); elapsed < longPollWindow {
		t.Errorf("Expected the call to hold for the long-poll window, only %v elapsed", elapsed)
	}
}

func TestPollSearchSeenCountIsMonotonic(t *testing.T) {
	gateway := &fakeGateway{submitID: "s1"}
	coordinator, _ := newTestCoordinator(gateway)

	id, _ := coordinator.StartSearch(context.Background(), "Burial", "Untrue",
		[]string{"Archangel"}, 10*time.Minute)

	gateway.setResponses([]slskd.CandidateFile{
		{Username: "carol", Filename: `Burial\Untrue\02 - Archangel.flac`, BitRate: 900},
	})

	if _, err := coordinator.PollSearch(context.Background(), id); err != nil {
		t.Fatal(err)
	}

	// Same response count again: this poll must not regroup, it rides
	// out the long-poll window instead.
	result, err := coordinator.PollSearch(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Groups) != 0 {
		t.Errorf("Expected no regrouping without new responses, got %d groups", len(result.Groups))
	}
}

func TestPollSearchExpiryWithResultsCompletes(t *testing.T) {
	gateway := &fakeGateway{submitID: "s1"}
	coordinator, clock := newTestCoordinator(gateway)

	id, _ := coordinator.StartSearch(context.Background(), "Burial", "Untrue",
		[]string{"Archangel"}, 5*time.Minute)

	gateway.setResponses([]slskd.CandidateFile{
		{Username: "carol", Filename: `Burial\Untrue\02 - Archangel.flac`, BitRate: 900},
	})
	if _, err := coordinator.PollSearch(context.Background(), id); err != nil {
		t.Fatal(err)
	}

	clock.Advance(6 * time.Minute)

	result, err := coordinator.PollSearch(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if result.State != StateCompleted {
		t.Errorf("Expected Completed after expiry with prior results, got %s", result.State)
	}
	if len(gateway.deleted) == 0 {
		t.Error("Expected the gateway-side search to be deleted on expiry")
	}
	if coordinator.ActiveSessions() != 0 {
		t.Errorf("Expected session removal, %d sessions remain", coordinator.ActiveSessions())
	}
}

func TestPollSearchExpiryWithoutResultsCompletes(t *testing.T) {
	gateway := &fakeGateway{submitID: "s1"}
	coordinator, clock := newTestCoordinator(gateway)

	id, _ := coordinator.StartSearch(context.Background(), "Burial", "", nil, 5*time.Minute)
	clock.Advance(6 * time.Minute)

	result, err := coordinator.PollSearch(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if result.State != StateCompleted {
		t.Errorf("Expected Completed for a fruitless expired session, got %s", result.State)
	}
	if len(result.Groups) != 0 {
		t.Errorf("Expected no groups on fruitless expiry, got %d", len(result.Groups))
	}

	followUp, err := coordinator.PollSearch(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if followUp.State != StateNotFound {
		t.Errorf("Expected NotFound after finalization, got %s", followUp.State)
	}
}

func TestPollSearchToleratesTransientErrors(t *testing.T) {
	gateway := &fakeGateway{submitID: "s1", pollErr: errors.New("gateway hiccup")}
	coordinator, _ := newTestCoordinator(gateway)

	id, _ := coordinator.StartSearch(context.Background(), "Burial", "", nil, 10*time.Minute)

	result, err := coordinator.PollSearch(context.Background(), id)
	if err != nil {
		t.Fatalf("Transient poll errors must not surface, got %v", err)
	}
	if result.State != StateInProgress {
		t.Errorf("Expected session to stay InProgress through errors, got %s", result.State)
	}
	if coordinator.ActiveSessions() != 1 {
		t.Error("Expected session to survive transient errors")
	}
}

func TestStartSearchRequiresArtist(t *testing.T) {
	coordinator, _ := newTestCoordinator(&fakeGateway{submitID: "s1"})
	if _, err := coordinator.StartSearch(context.Background(), "", "", nil, time.Minute); err == nil {
		t.Error("Expected error for empty artist")
	}
}
