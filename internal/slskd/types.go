// Package slskd implements an HTTP client for the slskd peer-network
// gateway: search submission, response polling, download submission and
// transfer status listing.
package slskd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TransferState is one lifecycle tag on a transfer. The gateway reports
// states as comma-joined tag lists ("Completed, Succeeded"), so a record
// carries an ordered set of tags rather than a single value.
type TransferState string

const (
	StateRequested    TransferState = "Requested"
	StateQueued       TransferState = "Queued"
	StateInitializing TransferState = "Initializing"
	StateInProgress   TransferState = "InProgress"
	StateCompleted    TransferState = "Completed"
	StateSucceeded    TransferState = "Succeeded"
	StateCancelled    TransferState = "Cancelled"
	StateTimedOut     TransferState = "TimedOut"
	StateErrored      TransferState = "Errored"
	StateRejected     TransferState = "Rejected"
	StateAborted      TransferState = "Aborted"

	// Importer-side lifecycle tags, appended after the gateway is done
	// with a file.
	StateImporting    TransferState = "Importing"
	StateImported     TransferState = "Imported"
	StateImportSkip   TransferState = "ImportSkipped"
	StateImportFailed TransferState = "ImportFailed"
)

// TransferStates deserializes from either a comma-separated string or a
// JSON array; the gateway has used both encodings.
type TransferStates []TransferState

// UnmarshalJSON accepts "Completed, Succeeded" and ["Completed","Succeeded"].
func (s *TransferStates) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = parseStates(single)
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("unrecognized transfer state encoding: %s", string(data))
	}
	out := make(TransferStates, 0, len(list))
	for _, item := range list {
		out = append(out, parseStates(item)...)
	}
	*s = out
	return nil
}

// MarshalJSON renders the gateway's comma-joined form.
func (s TransferStates) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// String renders the comma-joined form used on the wire and in storage.
func (s TransferStates) String() string {
	parts := make([]string, len(s))
	for i, state := range s {
		parts[i] = string(state)
	}
	return strings.Join(parts, ", ")
}

func parseStates(raw string) TransferStates {
	var out TransferStates
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, TransferState(p))
		}
	}
	return out
}

// Contains reports whether the tag list carries the given state.
func (s TransferStates) Contains(state TransferState) bool {
	for _, st := range s {
		if st == state {
			return true
		}
	}
	return false
}

// CandidateFile is one file offered by a peer in a search response.
// Produced per poll and never persisted.
type CandidateFile struct {
	Username          string `json:"username"`
	Filename          string `json:"filename"`
	Size              int64  `json:"size"`
	BitRate           int    `json:"bitRate"`
	Length            int    `json:"length"`
	HasFreeUploadSlot bool   `json:"hasFreeUploadSlot"`
	UploadSpeed       int    `json:"uploadSpeed"`
	QueueLength       int    `json:"queueLength"`
}

// extensionQuality maps audio extensions to a base quality weight.
var extensionQuality = map[string]float64{
	"flac": 1.0,
	"wav":  0.85,
	"m4a":  0.65,
	"aac":  0.65,
	"ogg":  0.6,
	"mp3":  0.55,
	"wma":  0.4,
}

// Extension returns the lowercased file extension without the dot.
func (f *CandidateFile) Extension() string {
	norm := strings.ReplaceAll(f.Filename, "\\", "/")
	idx := strings.LastIndex(norm, ".")
	if idx < 0 || idx == len(norm)-1 {
		return ""
	}
	return strings.ToLower(norm[idx+1:])
}

// QualityScore rates the candidate in [0,1] from its codec, bitrate and
// the peer's upload conditions.
func (f *CandidateFile) QualityScore() float64 {
	score, ok := extensionQuality[f.Extension()]
	if !ok {
		score = 0.3
	}

	switch {
	case f.BitRate >= 320:
		score += 0.2
	case f.BitRate >= 256:
		score += 0.1
	case f.BitRate > 0 && f.BitRate < 128:
		score -= 0.3
	}

	if f.HasFreeUploadSlot {
		score += 0.1
	}
	if f.UploadSpeed > 100 {
		score += 0.05
	}
	if f.QueueLength > 10 {
		score -= 0.1
	}

	if score > 1.0 {
		score = 1.0
	}
	if score < 0 {
		score = 0
	}
	return score
}

// TransferRecord is the gateway's view of one requested file, or a
// synthetic stand-in when the gateway has no matching entry.
type TransferRecord struct {
	ID               string         `json:"id"`
	Username         string         `json:"username"`
	Filename         string         `json:"filename"`
	Size             int64          `json:"size"`
	States           TransferStates `json:"state"`
	StateDescription string         `json:"stateDescription,omitempty"`
	RequestedAt      *time.Time     `json:"requestedAt,omitempty"`
	EnqueuedAt       *time.Time     `json:"enqueuedAt,omitempty"`
	StartedAt        *time.Time     `json:"startedAt,omitempty"`
	EndedAt          *time.Time     `json:"endedAt,omitempty"`
	BytesTransferred int64          `json:"bytesTransferred"`
	AverageSpeed     float64        `json:"averageSpeed"`
	BytesRemaining   int64          `json:"bytesRemaining"`
	PercentComplete  float64        `json:"percentComplete"`
	Exception        string         `json:"exception,omitempty"`
}

// IsTerminal reports whether no further gateway transitions will occur.
func (r *TransferRecord) IsTerminal() bool {
	return r.States.Contains(StateCompleted)
}

// IsSuccessful reports a completed, succeeded transfer.
func (r *TransferRecord) IsSuccessful() bool {
	return r.States.Contains(StateCompleted) && r.States.Contains(StateSucceeded)
}

// IsFailed reports a terminal state that is not success. Error tags
// outrank any in-progress tags also present on the record.
func (r *TransferRecord) IsFailed() bool {
	return r.IsTerminal() && !r.IsSuccessful()
}

// NewQueuedRecord synthesizes a record for a file the gateway has not
// reported yet.
func NewQueuedRecord(username, filename string, size int64) TransferRecord {
	now := time.Now().UTC()
	return TransferRecord{
		ID:               uuid.NewString(),
		Username:         username,
		Filename:         filename,
		Size:             size,
		States:           TransferStates{StateQueued},
		StateDescription: "Queued for download",
		RequestedAt:      &now,
	}
}

// NewErroredRecord synthesizes a terminal failure record.
func NewErroredRecord(username, filename, reason string) TransferRecord {
	now := time.Now().UTC()
	return TransferRecord{
		ID:               uuid.NewString(),
		Username:         username,
		Filename:         filename,
		States:           TransferStates{StateCompleted, StateErrored},
		StateDescription: reason,
		EndedAt:          &now,
	}
}

// NewTimedOutRecord synthesizes a terminal timeout record.
func NewTimedOutRecord(username, filename string) TransferRecord {
	now := time.Now().UTC()
	return TransferRecord{
		ID:               uuid.NewString(),
		Username:         username,
		Filename:         filename,
		States:           TransferStates{StateCompleted, StateTimedOut},
		StateDescription: "Download timed out",
		EndedAt:          &now,
	}
}

// APIError is a non-2xx or malformed gateway response. Callers decide
// retry policy from the status code.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway returned status %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the error class is worth retrying: server
// faults and throttling, but not other client errors.
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// DownloadRequest is one file to enqueue at a peer.
type DownloadRequest struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// DownloadResult is the per-file outcome of a submission. Error is empty
// on success; partial failure is a per-file outcome, never a whole-batch
// failure.
type DownloadResult struct {
	Username string `json:"username"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Error    string `json:"error,omitempty"`
}
