// Package store persists watch registrations so a daemon restart can
// re-register the same paths with the same event kinds.
//
// Two implementations are provided: a BoltDB-backed store for the daemon
// and an in-memory store for tests.
package store

import (
	"github.com/0xmhha/fswatch/pkg/watchkey"
)

// Registration is one persisted watch: a path and its requested kinds.
type Registration struct {
	Path  string        `json:"path"`
	Kinds watchkey.Kind `json:"kinds"`
}

// RegistrationStore persists watch registrations.
type RegistrationStore interface {
	// Save records (or updates) the registration for path.
	Save(path string, kinds watchkey.Kind) error

	// Delete removes the registration for path. Deleting an unknown
	// path is not an error.
	Delete(path string) error

	// All returns every persisted registration.
	All() ([]Registration, error)
}
