package utils

import (
	"github.com/google/uuid"
)

// NewRunID generates a unique identifier for one started game.
func NewRunID() string {
	return uuid.NewString()
}

// ShortID trims an identifier to its first 8 characters for log lines.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
