package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Remote operation names understood by the server. The record type and verb
// are encoded in the name; the payload carries the record itself.
const (
	OpNoteCreate    = "notes.create"
	OpNoteUpdate    = "notes.update"
	OpNoteDelete    = "notes.delete"
	OpTaskCreate    = "tasks.create"
	OpTaskUpdate    = "tasks.update"
	OpTaskDelete    = "tasks.delete"
	OpJournalCreate = "journal.create"
	OpJournalUpdate = "journal.update"
	OpJournalDelete = "journal.delete"
)

// UpdateOpFor returns the update operation name for a record type
func UpdateOpFor(t RecordType) string {
	switch t {
	case RecordTypeTask:
		return OpTaskUpdate
	case RecordTypeJournal:
		return OpJournalUpdate
	default:
		return OpNoteUpdate
	}
}

// IsDeleteOp reports whether the operation soft-deletes its target record
func IsDeleteOp(operationName string) bool {
	return strings.HasSuffix(operationName, ".delete")
}

// QueuedMutation is a pending remote write that could not be confirmed as
// applied. Entries are immutable once enqueued except for AttemptCount.
type QueuedMutation struct {
	ID            string          `json:"id"`
	Seq           int64           `json:"-"` // monotonic insert order, breaks EnqueuedAt ties
	OperationName string          `json:"operationName"`
	Payload       json.RawMessage `json:"payload"`
	RecordType    RecordType      `json:"recordType"`
	RecordID      string          `json:"recordId"`
	EnqueuedAt    time.Time       `json:"enqueuedAt"`
	AttemptCount  int             `json:"attemptCount"`
	LastError     string          `json:"lastError,omitempty"`
}

// NewQueuedMutation creates a queue entry for the given operation
func NewQueuedMutation(operationName string, payload json.RawMessage, recordType RecordType, recordID string) *QueuedMutation {
	return &QueuedMutation{
		ID:            uuid.New().String(),
		OperationName: operationName,
		Payload:       payload,
		RecordType:    recordType,
		RecordID:      recordID,
		EnqueuedAt:    time.Now().UTC(),
	}
}

// RecordKey returns the queue-ordering key for the mutation's target record
func (m *QueuedMutation) RecordKey() string {
	return RecordKey(m.RecordType, m.RecordID)
}
