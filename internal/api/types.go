// Package api holds the wire types shared by the server and the client, and the HTTP
// client used by client commands.
package api

import (
	"github.com/balkashynov/tasktime/internal/aggregate"
	"github.com/balkashynov/tasktime/internal/models"
)

// Summary is re-exported so client code does not need the aggregate package.
type Summary = aggregate.Summary

// Stats is a Summary plus who is tracking the task right now.
type Stats = aggregate.Stats

// TaskRequest is the body of POST /time/start and POST /time/stop.
type TaskRequest struct {
	TaskID string `json:"task_id" binding:"required"`
}

// SessionsResponse is the body of GET /time/sessions.
type SessionsResponse struct {
	Sessions []models.TimeSession `json:"sessions"`
	Stats    Stats                `json:"stats"`
}

// BatchRequest is the body of POST /time/batch.
type BatchRequest struct {
	TaskIDs []string `json:"taskIds"`
}

// BatchResponse is the body returned by POST /time/batch.
type BatchResponse struct {
	Times map[string]Summary `json:"times"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`

	// ActiveSession is set on 409 responses to start.
	ActiveSession *models.TimeSession `json:"active_session,omitempty"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// ZeroSummary is the summary of a task with no tracked time.
func ZeroSummary() Summary {
	return aggregate.Zero()
}
