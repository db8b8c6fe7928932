package idgen

import "github.com/google/uuid"

// New returns a UUIDv7 identifier string, falling back to a random UUIDv4
// if v7 generation fails.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// NewRun returns an identifier for one action loop run. v7 keeps run IDs
// ordered by start time.
func NewRun() string {
	return "run-" + New()
}
