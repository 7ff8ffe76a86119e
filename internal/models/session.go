package models

import (
	"time"
)

// TimeSession is one contiguous start→stop interval of tracked time for one user on one task.
// EndTime == nil means the session is active.
type TimeSession struct {
	ID     string `gorm:"primaryKey;size:36" json:"id"`
	TaskID string `gorm:"not null;index:idx_time_sessions_task_start,priority:1" json:"task_id"`
	UserID string `gorm:"not null;index" json:"user_id"`

	StartTime       time.Time  `gorm:"not null;index:idx_time_sessions_task_start,priority:2" json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	DurationSeconds *int64     `json:"duration_seconds"` // set once, at close
}

// IsActive reports whether the session has not been closed yet.
func (s TimeSession) IsActive() bool {
	return s.EndTime == nil
}

// TimerHint is the client-side, per-task timer snapshot kept in local storage.
// It is only ever a hint; the server's sessions are authoritative.
type TimerHint struct {
	TaskID         string     `gorm:"primaryKey" json:"task_id"`
	Phase          string     `gorm:"not null" json:"phase"` // stopped, running, paused
	ElapsedSeconds int64      `json:"elapsed_seconds"`
	SessionID      string     `json:"session_id"`
	StartTime      *time.Time `json:"start_time"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
