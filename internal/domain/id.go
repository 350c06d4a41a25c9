package domain

import "github.com/google/uuid"

// NewID generates a UUIDv7 string for audit rows.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
