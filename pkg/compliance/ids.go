package compliance

import "github.com/google/uuid"

// NewID generates a UUID v4 identifier for a new entity.
func NewID() string {
	return uuid.New().String()
}
