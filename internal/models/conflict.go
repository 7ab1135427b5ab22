package models

import (
	"time"

	"github.com/google/uuid"
)

// Conflict records a divergence between the local and server copies of a
// record. At most one unresolved conflict exists per item; a newer conflict
// for the same item supersedes the older one.
type Conflict struct {
	ID            string     `json:"id"`
	ItemType      RecordType `json:"itemType"`
	ItemID        string     `json:"itemId"`
	ItemTitle     string     `json:"itemTitle"`
	LocalTitle    string     `json:"localTitle"`
	LocalContent  string     `json:"localContent"`
	ServerTitle   string     `json:"serverTitle"`
	ServerContent string     `json:"serverContent"`
	ServerDeleted bool       `json:"serverDeleted"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Conflict resolution choices
const (
	ResolutionKeepLocal  = "keep_local"
	ResolutionKeepServer = "keep_server"
	ResolutionManual     = "manual"
)

// NewConflict creates a Conflict from the two divergent sides
func NewConflict(local, server RecordSnapshot) *Conflict {
	return &Conflict{
		ID:            uuid.New().String(),
		ItemType:      local.Type,
		ItemID:        local.ID,
		ItemTitle:     local.Title,
		LocalTitle:    local.Title,
		LocalContent:  local.Content,
		ServerTitle:   server.Title,
		ServerContent: server.Content,
		CreatedAt:     time.Now().UTC(),
	}
}

// NewDeletionConflict creates a Conflict for a server-side deletion that
// collided with local edits. The server side carries no content.
func NewDeletionConflict(local RecordSnapshot) *Conflict {
	c := NewConflict(local, RecordSnapshot{Type: local.Type, ID: local.ID})
	c.ServerDeleted = true
	return c
}
