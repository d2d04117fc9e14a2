package models

import "time"

// Post is one collected unit. ID is the stable identity used for
// deduplication; two posts with equal IDs are the same post and the
// first-seen payload wins. A Post is immutable once accepted.
type Post struct {
	ID          string    `json:"post_id"`
	Username    string    `json:"username"`
	Timestamp   string    `json:"timestamp"`
	Content     string    `json:"content"`
	Replies     int       `json:"replies"`
	Reposts     int       `json:"reposts"`
	Likes       int       `json:"likes"`
	Hashtags    []string  `json:"hashtags,omitempty"`
	Mentions    []string  `json:"mentions,omitempty"`
	CollectedAt time.Time `json:"collected_at"`
}

// SessionState is the state of an acquisition session.
type SessionState string

const (
	StateRunning   SessionState = "running"
	StateCompleted SessionState = "completed" // requested count reached
	StateExhausted SessionState = "exhausted" // source has no more new posts
	StateAborted   SessionState = "aborted"   // unrecoverable error, partial results kept
)

// Terminal reports whether the state is a terminal one.
func (s SessionState) Terminal() bool {
	return s != StateRunning
}

// TargetRun records one execution of an acquisition session against one
// target. It is finalized when the session terminates and never mutated
// afterward.
type TargetRun struct {
	RunID      string       `json:"run_id"`
	Target     string       `json:"target"`
	Requested  int          `json:"requested"`
	Collected  int          `json:"collected"` // posts seen this run, duplicates included
	Accepted   int          `json:"accepted"`
	Duplicates int          `json:"duplicates"`
	State      SessionState `json:"state"`
	Reason     string       `json:"reason"`
	StartedAt  time.Time    `json:"started_at"`
	EndedAt    time.Time    `json:"ended_at"`
}
