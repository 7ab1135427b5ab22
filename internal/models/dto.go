package models

import (
	"encoding/json"
	"time"
)

// MutationOutcome is returned from any write that may need to reach the
// server. Exactly one of Applied or Queued is set: Applied carries the
// server's response for a write that landed remotely, Queued identifies the
// mutation that will be replayed once connectivity returns.
type MutationOutcome struct {
	Applied json.RawMessage `json:"applied,omitempty"`
	Queued  *QueuedReceipt  `json:"queued,omitempty"`
}

// QueuedReceipt identifies a deferred mutation
type QueuedReceipt struct {
	MutationID string    `json:"mutationId"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// AppliedOutcome wraps a confirmed remote result
func AppliedOutcome(result json.RawMessage) MutationOutcome {
	return MutationOutcome{Applied: result}
}

// QueuedOutcome wraps a deferred mutation receipt
func QueuedOutcome(m *QueuedMutation) MutationOutcome {
	return MutationOutcome{Queued: &QueuedReceipt{MutationID: m.ID, EnqueuedAt: m.EnqueuedAt}}
}

// IsQueued reports whether the write was deferred
func (o MutationOutcome) IsQueued() bool {
	return o.Queued != nil
}

// QueueListResponse is returned when listing pending mutations
type QueueListResponse struct {
	Mutations  []*QueuedMutation `json:"mutations"`
	TotalCount int               `json:"totalCount"`
}

// ConflictListResponse is returned when listing open conflicts
type ConflictListResponse struct {
	Conflicts  []*Conflict `json:"conflicts"`
	TotalCount int         `json:"totalCount"`
}

// ResolveConflictRequest is the request to resolve a conflict
type ResolveConflictRequest struct {
	Choice        string `json:"choice"` // keep_local, keep_server, manual
	MergedTitle   string `json:"mergedTitle,omitempty"`
	MergedContent string `json:"mergedContent,omitempty"`
}

// VersionListResponse is returned when listing versions of an item
type VersionListResponse struct {
	Versions   []*ItemVersion `json:"versions"`
	TotalCount int            `json:"totalCount"`
}

// RestoreResponse is returned after restoring a version
type RestoreResponse struct {
	ItemID  string          `json:"itemId"`
	Outcome MutationOutcome `json:"outcome"`
}

// ImportRequest is the request body for importing a backup
type ImportRequest struct {
	Strategy ImportStrategy  `json:"strategy"`
	Backup   json.RawMessage `json:"backup"`
}

// ImportSummary reports what an import touched
type ImportSummary struct {
	Items   int `json:"items"`
	Tasks   int `json:"tasks"`
	Entries int `json:"entries"`
}

// HealthResponse is returned by health check
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}
