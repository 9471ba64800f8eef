// Package status provides sync status tracking and persistence for the asteroid cache.
package status

import "time"

// Phase is the user-visible state of the cache
type Phase string

const (
	// PhaseLoading means a refresh is in progress
	PhaseLoading Phase = "Loading"

	// PhaseError means the last refresh failed; the previous view is still served
	PhaseError Phase = "Error"

	// PhaseDone means the last refresh completed
	PhaseDone Phase = "Done"
)

// SyncStatus represents the persisted state of the refresh cycle
type SyncStatus struct {
	// Phase represents the current synchronization phase
	Phase Phase `json:"phase"`

	// Message provides additional information about the sync status
	Message string `json:"message,omitempty"`

	// LastAttempt is the timestamp of the last refresh attempt
	LastAttempt *time.Time `json:"lastAttempt,omitempty"`

	// AttemptCount is the number of refresh attempts since the last success
	AttemptCount int `json:"attemptCount,omitempty"`

	// LastSyncTime is the timestamp of the last successful refresh
	LastSyncTime *time.Time `json:"lastSyncTime,omitempty"`

	// LastOutcome is the outcome of the last attempt (success, network-error, parse-error, store-error)
	LastOutcome string `json:"lastOutcome,omitempty"`

	// ReferenceDate is the "today" of the last attempt, YYYY-MM-DD
	ReferenceDate string `json:"referenceDate,omitempty"`

	// RecordCount is the number of asteroids cached after the last success
	RecordCount int `json:"recordCount,omitempty"`

	// RunID identifies the cycle that last wrote this status
	RunID string `json:"runId,omitempty"`

	// AppVersion is the version of the binary that last wrote this status
	AppVersion string `json:"appVersion,omitempty"`
}

// Copy returns a shallow copy with its own timestamp pointers
func (s *SyncStatus) Copy() *SyncStatus {
	if s == nil {
		return nil
	}
	c := *s
	if s.LastAttempt != nil {
		t := *s.LastAttempt
		c.LastAttempt = &t
	}
	if s.LastSyncTime != nil {
		t := *s.LastSyncTime
		c.LastSyncTime = &t
	}
	return &c
}
