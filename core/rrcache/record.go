// Package rrcache is the resolution store: a content-addressed directory of
// conflict preimages and their recorded resolutions, shared by every process
// working on the same repository.
//
// Each record lives at <hash[0:2]>/<hash[2:]>/ with files preimage[.N] and,
// once resolved, postimage[.N]. Every write goes through a temporary file and
// a rename, so readers only ever observe complete files and two processes
// writing different records cannot interfere.
package rrcache

import (
	"errors"
	"fmt"
	"time"

	"github.com/adalundhe/rerere/core/fingerprint"
)

// Status is the resolution state of a stored record.
type Status int

const (
	// StatusPending means a preimage exists but no resolution has been seen.
	StatusPending Status = iota
	// StatusResolved means a postimage has been recorded.
	StatusResolved
)

var statusNames = map[Status]string{
	StatusPending:  "pending",
	StatusResolved: "resolved",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Record is one stored conflict and, when resolved, its resolution.
type Record struct {
	ID        fingerprint.Identity
	Preimage  []byte
	Postimage []byte // nil unless Status is StatusResolved
	Status    Status
	LastUsed  time.Time
}

// Resolved reports whether the record carries a postimage.
func (r Record) Resolved() bool {
	return r.Status == StatusResolved
}

// ErrNotFound is returned when an operation requires a record that is absent.
var ErrNotFound = errors.New("record not found")

// Error is a storage failure for one record.
type Error struct {
	Op   string
	ID   fingerprint.Identity
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("rrcache %s %s (%s): %v", e.Op, e.ID.Short(), e.Path, e.Err)
	}
	return fmt.Sprintf("rrcache %s %s: %v", e.Op, e.ID.Short(), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
