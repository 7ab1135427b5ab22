package services

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/notesync/engine/internal/models"
)

// HashService computes content hashes used to compare local and server
// record state during sync
type HashService struct {
	sha256Regex *regexp.Regexp
}

// NewHashService creates a new HashService
func NewHashService() *HashService {
	return &HashService{
		sha256Regex: regexp.MustCompile(`^[a-f0-9]{64}$`),
	}
}

// SnapshotHash computes the SHA256 hash of a record's editable fields.
// The same projection is hashed on every record type so local and server
// copies compare the same way regardless of where the content came from.
func (s *HashService) SnapshotHash(snap models.RecordSnapshot) string {
	h := sha256.New()
	h.Write([]byte(snap.Title))
	h.Write([]byte{0})
	h.Write([]byte(snap.Content))
	return hex.EncodeToString(h.Sum(nil))
}

// ComputeHashBytes computes the SHA256 hash of bytes
func (s *HashService) ComputeHashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// NormalizeHash normalizes a hash string to lowercase
func (s *HashService) NormalizeHash(hash string) string {
	normalized := strings.TrimSpace(hash)

	if strings.HasPrefix(strings.ToLower(normalized), "sha256:") {
		normalized = normalized[7:]
	}

	return strings.ToLower(normalized)
}

// IsValidHash checks if a string is a valid SHA256 hash
func (s *HashService) IsValidHash(hash string) bool {
	if strings.TrimSpace(hash) == "" {
		return false
	}

	return s.sha256Regex.MatchString(s.NormalizeHash(hash))
}
