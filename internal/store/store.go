// Package store keeps per-session game snapshots for as long as the browser
// session is alive.
package store

import (
    "context"
    "errors"
    "time"

    "github.com/jaminalder/tictactoe/internal/domain"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// Record is the persisted form of one session.
type Record struct {
    ID      string      `json:"id"`
    Game    domain.Game `json:"game"`
    Created time.Time   `json:"created"`
    Updated time.Time   `json:"updated"`
}

// Mutator derives the next record from the stored one. found is false when
// the session is unknown or expired. With write false nothing is stored.
type Mutator func(cur Record, found bool) (next Record, write bool, err error)

type Store interface {
    Load(ctx context.Context, id string) (Record, error)
    Save(ctx context.Context, rec Record) error
    Delete(ctx context.Context, id string) error
    // Update applies fn to the record under id as one atomic step and
    // returns what fn produced. fn may run more than once.
    Update(ctx context.Context, id string, fn Mutator) (Record, error)
}
