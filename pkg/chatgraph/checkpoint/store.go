// Package checkpoint persists conversation thread snapshots.
//
// A thread is the unit of conversational memory: every invocation of a
// compiled graph under the same thread ID resumes from that thread's latest
// checkpoint. Stores keep one checkpoint per (thread, node); the sequence
// number orders them so the latest snapshot is always the last one listed.
package checkpoint

import (
	"errors"
	"time"
)

// Store persists checkpoints keyed by thread.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores a checkpoint for a thread at a specific node.
	// Overwrites any checkpoint for (threadID, nodeID) and assigns it the
	// next sequence number for the thread.
	Save(threadID, nodeID string, data []byte) error

	// Load retrieves a checkpoint.
	// Returns ErrNotFound if checkpoint doesn't exist.
	Load(threadID, nodeID string) ([]byte, error)

	// List returns all checkpoints for a thread, ordered by sequence.
	// Returns empty slice (not error) if the thread has no checkpoints.
	List(threadID string) ([]Info, error)

	// Threads returns the IDs of all threads with at least one checkpoint,
	// sorted lexically.
	Threads() ([]string, error)

	// Delete removes a specific checkpoint.
	// Returns nil if checkpoint doesn't exist.
	Delete(threadID, nodeID string) error

	// DeleteThread removes all checkpoints for a thread.
	// Returns nil if the thread has no checkpoints.
	DeleteThread(threadID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides metadata without loading full state.
type Info struct {
	ThreadID  string
	NodeID    string
	Sequence  int
	Timestamp time.Time
	Size      int64
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates a checkpoint doesn't exist.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")
)

// Latest returns the most recent checkpoint info for a thread.
// Returns ErrNotFound if the thread has no checkpoints.
func Latest(s Store, threadID string) (Info, error) {
	infos, err := s.List(threadID)
	if err != nil {
		return Info{}, err
	}
	if len(infos) == 0 {
		return Info{}, ErrNotFound
	}
	return infos[len(infos)-1], nil
}
