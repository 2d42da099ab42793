package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/soulbridge/soulbridge/internal/database"
	"github.com/soulbridge/soulbridge/internal/slskd"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return New(db.Conn(), zerolog.Nop())
}

func TestSearchLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateSearch(ctx, "s1", "Boards of Canada", "Geogaddi", "Boards of Canada Geogaddi"); err != nil {
		t.Fatalf("CreateSearch() error = %v", err)
	}

	search, err := s.GetSearch(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSearch() error = %v", err)
	}
	if search == nil {
		t.Fatal("Expected a search, got nil")
	}
	if search.State != "InProgress" {
		t.Errorf("Expected initial state InProgress, got %q", search.State)
	}

	if err := s.UpdateSearchState(ctx, "s1", "Completed", 4, true); err != nil {
		t.Fatalf("UpdateSearchState() error = %v", err)
	}

	search, err = s.GetSearch(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSearch() error = %v", err)
	}
	if search.State != "Completed" {
		t.Errorf("Expected state Completed, got %q", search.State)
	}
	if search.GroupCount != 4 {
		t.Errorf("Expected 4 groups, got %d", search.GroupCount)
	}
	if search.CompletedAt == nil {
		t.Error("Expected a completion timestamp")
	}
}

func TestGetSearchUnknownReturnsNil(t *testing.T) {
	s := newTestStore(t)

	search, err := s.GetSearch(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetSearch() error = %v", err)
	}
	if search != nil {
		t.Errorf("Expected nil for an unknown search, got %+v", search)
	}
}

func TestRecordTransferUpserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	record := slskd.TransferRecord{
		ID:       "t1",
		Username: "alice",
		Filename: `Music\Album\01 - Track.flac`,
		Size:     1024,
		States:   slskd.TransferStates{slskd.StateQueued},
	}
	if err := s.RecordTransfer(ctx, "", record); err != nil {
		t.Fatalf("RecordTransfer() error = %v", err)
	}

	record.States = slskd.TransferStates{slskd.StateCompleted, slskd.StateSucceeded}
	record.BytesTransferred = 1024
	if err := s.RecordTransfer(ctx, "", record); err != nil {
		t.Fatalf("RecordTransfer() upsert error = %v", err)
	}

	transfers, err := s.ListTransfers(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("ListTransfers() error = %v", err)
	}
	if len(transfers) != 1 {
		t.Fatalf("Expected 1 transfer after upsert, got %d", len(transfers))
	}
	if transfers[0].State != "Completed, Succeeded" {
		t.Errorf("Expected updated state, got %q", transfers[0].State)
	}
	if transfers[0].BytesTransferred != 1024 {
		t.Errorf("Expected updated progress, got %d", transfers[0].BytesTransferred)
	}
}

func TestListTransfersFiltersByUsername(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, username := range []string{"alice", "bob", "alice"} {
		record := slskd.TransferRecord{
			ID:       string(rune('a' + i)),
			Username: username,
			Filename: "file.flac",
			States:   slskd.TransferStates{slskd.StateQueued},
		}
		if err := s.RecordTransfer(ctx, "", record); err != nil {
			t.Fatalf("RecordTransfer() error = %v", err)
		}
	}

	transfers, err := s.ListTransfers(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("ListTransfers() error = %v", err)
	}
	if len(transfers) != 2 {
		t.Errorf("Expected 2 transfers for alice, got %d", len(transfers))
	}

	all, err := s.ListTransfers(ctx, "", 10)
	if err != nil {
		t.Fatalf("ListTransfers() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 transfers in total, got %d", len(all))
	}
}

func TestDeleteCompletedTransfers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	done := slskd.TransferRecord{
		ID:       "done",
		Username: "alice",
		Filename: "done.flac",
		States:   slskd.TransferStates{slskd.StateCompleted, slskd.StateImported},
	}
	active := slskd.TransferRecord{
		ID:       "active",
		Username: "alice",
		Filename: "active.flac",
		States:   slskd.TransferStates{slskd.StateInProgress},
	}
	if err := s.RecordTransfer(ctx, "", done); err != nil {
		t.Fatalf("RecordTransfer() error = %v", err)
	}
	if err := s.RecordTransfer(ctx, "", active); err != nil {
		t.Fatalf("RecordTransfer() error = %v", err)
	}

	removed, err := s.DeleteCompletedTransfers(ctx, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("DeleteCompletedTransfers() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 removed transfer, got %d", removed)
	}

	remaining, err := s.ListTransfers(ctx, "", 10)
	if err != nil {
		t.Fatalf("ListTransfers() error = %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != "active" {
		t.Errorf("Expected only the active transfer to remain, got %+v", remaining)
	}
}
