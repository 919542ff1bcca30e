package model

import "github.com/google/uuid"

// newID creates a UUIDv7 so record IDs sort by creation time.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
