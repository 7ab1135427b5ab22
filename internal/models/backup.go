package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// BackupFormatVersion is written into exported backups
const BackupFormatVersion = "1.0"

// ImportStrategy selects how an imported backup reconciles with local state
type ImportStrategy string

const (
	ImportStrategyMerge   ImportStrategy = "merge"
	ImportStrategyReplace ImportStrategy = "replace"
)

// IsValid reports whether the strategy is recognized
func (s ImportStrategy) IsValid() bool {
	return s == ImportStrategyMerge || s == ImportStrategyReplace
}

// Backup is the full export document
type Backup struct {
	Metadata BackupMetadata `json:"metadata"`
	Data     BackupData     `json:"data"`
}

// BackupMetadata describes the export itself
type BackupMetadata struct {
	Version    string    `json:"version"`
	ExportDate time.Time `json:"exportDate"`
}

// BackupData holds the seven exported collections
type BackupData struct {
	Items           []*Note           `json:"items"`
	Tasks           []*Task           `json:"tasks"`
	JournalEntries  []*JournalEntry   `json:"journalEntries"`
	Tags            []*Tag            `json:"tags"`
	Categories      []*Category       `json:"categories"`
	Attachments     []*Attachment     `json:"attachments"`
	ReviewSchedules []*ReviewSchedule `json:"reviewSchedules"`
}

// backupProbe checks structural shape before any typed decode
type backupProbe struct {
	Data map[string]json.RawMessage `json:"data"`
}

var backupCollections = []string{
	"items", "tasks", "journalEntries", "tags",
	"categories", "attachments", "reviewSchedules",
}

// ParseBackup validates the structural shape of a backup payload and decodes
// it. Every collection must be present under `data` and be a JSON array
// (possibly empty); anything else is rejected before any data is touched.
func ParseBackup(raw []byte) (*Backup, error) {
	var probe backupProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("invalid backup: %w", err)
	}
	if probe.Data == nil {
		return nil, fmt.Errorf("invalid backup: missing data object")
	}

	for _, name := range backupCollections {
		coll, ok := probe.Data[name]
		if !ok {
			return nil, fmt.Errorf("invalid backup: missing collection %q", name)
		}
		if !isJSONArray(coll) {
			return nil, fmt.Errorf("invalid backup: collection %q is not an array", name)
		}
	}

	var backup Backup
	if err := json.Unmarshal(raw, &backup); err != nil {
		return nil, fmt.Errorf("invalid backup: %w", err)
	}
	return &backup, nil
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}
