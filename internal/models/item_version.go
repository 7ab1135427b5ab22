package models

import (
	"time"

	"github.com/google/uuid"
)

// ItemVersion is a point-in-time snapshot of a record's editable fields,
// taken immediately before a confirmed overwrite. Versions are append-only.
type ItemVersion struct {
	ID        string     `json:"id"`
	ItemType  RecordType `json:"itemType"`
	ItemID    string     `json:"itemId"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"createdAt"`
}

// NewItemVersion snapshots the given record state
func NewItemVersion(snap RecordSnapshot) *ItemVersion {
	return &ItemVersion{
		ID:        uuid.New().String(),
		ItemType:  snap.Type,
		ItemID:    snap.ID,
		Title:     snap.Title,
		Content:   snap.Content,
		CreatedAt: time.Now().UTC(),
	}
}

// Snapshot returns the version's record projection
func (v *ItemVersion) Snapshot() RecordSnapshot {
	return RecordSnapshot{
		Type:    v.ItemType,
		ID:      v.ItemID,
		Title:   v.Title,
		Content: v.Content,
	}
}
