package utils

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

const MaxNameLength = 24

// NewPlayerID returns a connection-scoped identity.
func NewPlayerID() string {
	return uuid.NewString()
}

// GenerateID returns a short random identifier of n hex characters.
func GenerateID(n int) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n <= 0 || n > len(id) {
		return id
	}
	return id[:n]
}

// CleanName trims a user supplied display or room name and clips it to
// MaxNameLength runes. An empty result falls back to fallback.
func CleanName(name, fallback string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return fallback
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		runes := []rune(name)
		name = strings.TrimSpace(string(runes[:MaxNameLength]))
	}
	return name
}
