package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/notesync/engine/internal/models"
)

func TestSnapshotHash(t *testing.T) {
	service := NewHashService()

	t.Run("returns consistent hash for same content", func(t *testing.T) {
		snap := models.RecordSnapshot{Type: models.RecordTypeNote, ID: "n1", Title: "groceries", Content: "milk, eggs"}

		first := service.SnapshotHash(snap)
		second := service.SnapshotHash(snap)

		assert.Equal(t, first, second)
		assert.Len(t, first, 64)
	})

	t.Run("different content produces different hash", func(t *testing.T) {
		a := models.RecordSnapshot{Title: "groceries", Content: "milk"}
		b := models.RecordSnapshot{Title: "groceries", Content: "eggs"}

		assert.NotEqual(t, service.SnapshotHash(a), service.SnapshotHash(b))
	})

	t.Run("title and content boundaries are unambiguous", func(t *testing.T) {
		a := models.RecordSnapshot{Title: "ab", Content: "c"}
		b := models.RecordSnapshot{Title: "a", Content: "bc"}

		assert.NotEqual(t, service.SnapshotHash(a), service.SnapshotHash(b))
	})

	t.Run("hash ignores record identity", func(t *testing.T) {
		a := models.RecordSnapshot{Type: models.RecordTypeNote, ID: "n1", Title: "t", Content: "c"}
		b := models.RecordSnapshot{Type: models.RecordTypeTask, ID: "t9", Title: "t", Content: "c"}

		assert.Equal(t, service.SnapshotHash(a), service.SnapshotHash(b))
	})
}

func TestNormalizeHash(t *testing.T) {
	service := NewHashService()

	assert.Equal(t, "abc123", service.NormalizeHash("sha256:abc123"))
	assert.Equal(t, "abc123", service.NormalizeHash("ABC123"))
	assert.Equal(t, "abc123", service.NormalizeHash("  abc123  "))
}

func TestIsValidHash(t *testing.T) {
	service := NewHashService()

	tests := []struct {
		name     string
		hash     string
		expected bool
	}{
		{"valid sha256 hash", "a665a45920422f9d417e4867efdc4fb8a04a1f3fff1fa07e998e86f7f7a27ae3", true},
		{"empty string", "", false},
		{"too short", "a665a459", false},
		{"uppercase normalized", "A665A45920422F9D417E4867EFDC4FB8A04A1F3FFF1FA07E998E86F7F7A27AE3", true},
		{"prefixed hash", "sha256:a665a45920422f9d417e4867efdc4fb8a04a1f3fff1fa07e998e86f7f7a27ae3", true},
		{"non-hex characters", "z665a45920422f9d417e4867efdc4fb8a04a1f3fff1fa07e998e86f7f7a27ae3", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, service.IsValidHash(tt.hash))
		})
	}
}
