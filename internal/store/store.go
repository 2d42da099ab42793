// Package store persists search and transfer history in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/soulbridge/soulbridge/internal/slskd"
)

// Search is one persisted search session.
type Search struct {
	ID          string     `json:"id"`
	Artist      string     `json:"artist"`
	Album       string     `json:"album"`
	Query       string     `json:"query"`
	State       string     `json:"state"`
	GroupCount  int        `json:"groupCount"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Transfer is one persisted transfer observation.
type Transfer struct {
	ID               string     `json:"id"`
	SearchID         string     `json:"searchId,omitempty"`
	Username         string     `json:"username"`
	Filename         string     `json:"filename"`
	Size             int64      `json:"size"`
	State            string     `json:"state"`
	Exception        string     `json:"exception,omitempty"`
	BytesTransferred int64      `json:"bytesTransferred"`
	AverageSpeed     float64    `json:"averageSpeed"`
	RequestedAt      *time.Time `json:"requestedAt,omitempty"`
	EndedAt          *time.Time `json:"endedAt,omitempty"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Store provides search and transfer persistence.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// New creates a store over an open database connection.
func New(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
	}
}

// CreateSearch records a newly started search session.
func (s *Store) CreateSearch(ctx context.Context, id, artist, album, query string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO searches (id, artist, album, query) VALUES (?, ?, ?, ?)`,
		id, artist, album, query)
	if err != nil {
		return fmt.Errorf("failed to create search: %w", err)
	}
	return nil
}

// UpdateSearchState moves a search to a new lifecycle state. Terminal
// states also stamp the completion time.
func (s *Store) UpdateSearchState(ctx context.Context, id, state string, groupCount int, terminal bool) error {
	var completedAt interface{}
	if terminal {
		completedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE searches SET state = ?, group_count = ?, completed_at = COALESCE(?, completed_at) WHERE id = ?`,
		state, groupCount, completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update search: %w", err)
	}
	return nil
}

// GetSearch returns one search by id.
func (s *Store) GetSearch(ctx context.Context, id string) (*Search, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, artist, album, query, state, group_count, created_at, completed_at
		 FROM searches WHERE id = ?`, id)
	return scanSearch(row)
}

// ListSearches returns the most recent searches, newest first.
func (s *Store) ListSearches(ctx context.Context, limit int) ([]*Search, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, artist, album, query, state, group_count, created_at, completed_at
		 FROM searches ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list searches: %w", err)
	}
	defer rows.Close()

	var searches []*Search
	for rows.Next() {
		search, err := scanSearch(rows)
		if err != nil {
			return nil, err
		}
		searches = append(searches, search)
	}
	return searches, rows.Err()
}

// RecordTransfer inserts or refreshes one transfer observation.
func (s *Store) RecordTransfer(ctx context.Context, searchID string, record slskd.TransferRecord) error {
	var searchRef interface{}
	if searchID != "" {
		searchRef = searchID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transfers
		   (id, search_id, username, filename, size, state, exception,
		    bytes_transferred, average_speed, requested_at, ended_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   state = excluded.state,
		   exception = excluded.exception,
		   bytes_transferred = excluded.bytes_transferred,
		   average_speed = excluded.average_speed,
		   ended_at = excluded.ended_at,
		   updated_at = excluded.updated_at`,
		record.ID, searchRef, record.Username, record.Filename, record.Size,
		record.States.String(), record.Exception,
		record.BytesTransferred, record.AverageSpeed,
		record.RequestedAt, record.EndedAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record transfer: %w", err)
	}
	return nil
}

// ListTransfers returns transfers, optionally filtered by username,
// newest first.
func (s *Store) ListTransfers(ctx context.Context, username string, limit int) ([]*Transfer, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, COALESCE(search_id, ''), username, filename, size, state, exception,
	                 bytes_transferred, average_speed, requested_at, ended_at, updated_at
	          FROM transfers`
	args := []interface{}{}
	if username != "" {
		query += ` WHERE username = ?`
		args = append(args, username)
	}
	query += ` ORDER BY updated_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	defer rows.Close()

	var transfers []*Transfer
	for rows.Next() {
		t := &Transfer{}
		if err := rows.Scan(&t.ID, &t.SearchID, &t.Username, &t.Filename, &t.Size,
			&t.State, &t.Exception, &t.BytesTransferred, &t.AverageSpeed,
			&t.RequestedAt, &t.EndedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

// DeleteCompletedTransfers removes transfers that reached a terminal
// import state before the cutoff. Returns the number removed.
func (s *Store) DeleteCompletedTransfers(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM transfers
		 WHERE updated_at < ?
		   AND (state LIKE '%Imported%' OR state LIKE '%ImportSkipped%'
		        OR state LIKE '%Errored%' OR state LIKE '%TimedOut%'
		        OR state LIKE '%Cancelled%')`,
		olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to delete transfers: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSearch(row rowScanner) (*Search, error) {
	search := &Search{}
	err := row.Scan(&search.ID, &search.Artist, &search.Album, &search.Query,
		&search.State, &search.GroupCount, &search.CreatedAt, &search.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan search: %w", err)
	}
	return search, nil
}
