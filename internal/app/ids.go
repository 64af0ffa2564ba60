package app

import "github.com/google/uuid"

// NewSessionID returns a random UUIDv4 string.
func NewSessionID() string {
    return uuid.NewString()
}

// ValidSessionID reports whether id looks like something NewSessionID made.
// Anything else from a client cookie is discarded and replaced.
func ValidSessionID(id string) bool {
    u, err := uuid.Parse(id)
    return err == nil && u.Version() == 4 && len(id) == 36
}
