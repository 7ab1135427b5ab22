package models

import "time"

// Tag is a user-defined label attached to notes
type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Category groups notes into a hierarchy of one level
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// Attachment is file metadata linked to a note. The engine syncs the
// metadata only; blob transfer is handled by the media layer.
type Attachment struct {
	ID        string    `json:"id"`
	NoteID    string    `json:"noteId"`
	Filename  string    `json:"filename"`
	MimeType  string    `json:"mimeType"`
	FileSize  int64     `json:"fileSize"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReviewSchedule drives spaced-repetition review of a note
type ReviewSchedule struct {
	ID           string    `json:"id"`
	NoteID       string    `json:"noteId"`
	IntervalDays int       `json:"intervalDays"`
	NextReviewAt time.Time `json:"nextReviewAt"`
}
