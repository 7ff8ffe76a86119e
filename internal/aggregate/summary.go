// Package aggregate turns stored sessions into per-user elapsed-time summaries.
package aggregate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/balkashynov/tasktime/internal/models"
)

// Summary is the elapsed time one user has tracked on one task.
type Summary struct {
	TotalSeconds           int64  `json:"totalSeconds"`
	CompletedSeconds       int64  `json:"completedSeconds"`
	ActiveSeconds          int64  `json:"activeSeconds"`
	HasActiveSession       bool   `json:"hasActiveSession"`
	CompletedSessionsCount int    `json:"completedSessionsCount"`
	Formatted              string `json:"formatted"`
	Error                  string `json:"error,omitempty"`
}

// Zero is the summary of a task with no tracked time.
func Zero() Summary {
	return Summary{Formatted: FormatHMS(0)}
}

// Stats extends a Summary with who is currently tracking the task.
type Stats struct {
	Summary
	ActiveSession *models.TimeSession `json:"activeSession,omitempty"`
	ActiveUsers   []string            `json:"activeUsers,omitempty"`
}

// AggregateOne sums userID's sessions on taskID. Sessions for other tasks or users are
// ignored. Active time is measured against now and truncated to whole seconds.
func AggregateOne(taskID, userID string, sessions []models.TimeSession, now time.Time) Summary {
	var s Summary
	for _, sess := range sessions {
		if sess.TaskID != taskID || sess.UserID != userID {
			continue
		}
		if sess.EndTime == nil {
			s.HasActiveSession = true
			s.ActiveSeconds += elapsed(sess.StartTime, now)
			continue
		}
		if sess.DurationSeconds != nil {
			s.CompletedSeconds += *sess.DurationSeconds
		}
		s.CompletedSessionsCount++
	}
	s.TotalSeconds = s.CompletedSeconds + s.ActiveSeconds
	s.Formatted = FormatHMS(s.TotalSeconds)
	return s
}

// TaskStats is AggregateOne plus the caller's own active session and the sorted list of
// users with an active session on the task.
func TaskStats(taskID, userID string, sessions []models.TimeSession, now time.Time) Stats {
	stats := Stats{Summary: AggregateOne(taskID, userID, sessions, now)}

	seen := make(map[string]struct{})
	for i := range sessions {
		sess := sessions[i]
		if sess.TaskID != taskID || sess.EndTime != nil {
			continue
		}
		if sess.UserID == userID && stats.ActiveSession == nil {
			stats.ActiveSession = &sess
		}
		if _, ok := seen[sess.UserID]; !ok {
			seen[sess.UserID] = struct{}{}
			stats.ActiveUsers = append(stats.ActiveUsers, sess.UserID)
		}
	}
	sort.Strings(stats.ActiveUsers)
	return stats
}

func elapsed(start, now time.Time) int64 {
	d := now.Sub(start)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// FormatHMS renders seconds as zero-padded HH:MM:SS. Hours do not wrap at 24.
func FormatHMS(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// ParseHMS is the inverse of FormatHMS.
func ParseHMS(value string) (int64, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid duration %q: want HH:MM:SS", value)
	}

	var fields [3]int64
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid duration %q", value)
		}
		fields[i] = n
	}
	if fields[1] > 59 || fields[2] > 59 {
		return 0, fmt.Errorf("invalid duration %q: minutes and seconds must be below 60", value)
	}

	return fields[0]*3600 + fields[1]*60 + fields[2], nil
}
