package models

import (
	"encoding/json"
	"time"
)

// RecordDelta is one changed record returned by the pull endpoint. Data holds
// the full server-side record; Title/Content is its sync projection, used for
// conflict detection and capture.
type RecordDelta struct {
	Type      RecordType      `json:"type"`
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	Data      json.RawMessage `json:"data"`
	Deleted   bool            `json:"deleted"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Snapshot returns the delta's record projection
func (d *RecordDelta) Snapshot() RecordSnapshot {
	return RecordSnapshot{
		Type:    d.Type,
		ID:      d.ID,
		Title:   d.Title,
		Content: d.Content,
	}
}

// PullResponse is the pull endpoint's payload
type PullResponse struct {
	Records         []RecordDelta `json:"records"`
	ServerTimestamp int64         `json:"serverTimestamp"`
}

// UpResult summarizes the push phase of a sync
type UpResult struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

// DownResult summarizes the pull phase of a sync
type DownResult struct {
	ServerTimestamp int64 `json:"serverTimestamp"`
	Applied         int   `json:"applied"`
	Conflicts       int   `json:"conflicts"`
}

// SyncResult is returned from a full sync run
type SyncResult struct {
	Up        UpResult   `json:"up"`
	Down      DownResult `json:"down"`
	StartedAt time.Time  `json:"startedAt"`
	Duration  string     `json:"duration"`
}

// SyncStatusResponse for GET /api/sync/status
type SyncStatusResponse struct {
	LastSyncTimestamp int64       `json:"lastSyncTimestamp"`
	PendingMutations  int         `json:"pendingMutations"`
	OpenConflicts     int         `json:"openConflicts"`
	Syncing           bool        `json:"syncing"`
	LastResult        *SyncResult `json:"lastResult,omitempty"`
}
