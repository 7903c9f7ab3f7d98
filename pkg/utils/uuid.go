package utils

import "github.com/google/uuid"

// GenerateUUID returns a random (v4) UUID string.
func GenerateUUID() string {
	return uuid.NewString()
}

// IsUUID reports whether s parses as a UUID.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// ShortID returns the first 8 characters of id, the part people read.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
