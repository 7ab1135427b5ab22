package models

// RecordType identifies which synced collection a record belongs to
type RecordType string

const (
	RecordTypeNote    RecordType = "note"
	RecordTypeTask    RecordType = "task"
	RecordTypeJournal RecordType = "journal"
)

// IsValid reports whether the record type is one of the synced collections
func (t RecordType) IsValid() bool {
	switch t {
	case RecordTypeNote, RecordTypeTask, RecordTypeJournal:
		return true
	}
	return false
}

// RecordSnapshot is the uniform (title, content) projection of a synced
// record. Conflict detection, conflict capture and version snapshots all
// operate on this projection so they work the same way for every record type.
type RecordSnapshot struct {
	Type    RecordType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Content string     `json:"content"`
}

// RecordKey returns the blocked-set key used to preserve per-record ordering
// during queue drains
func RecordKey(recordType RecordType, id string) string {
	return string(recordType) + ":" + id
}
