package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/balkashynov/tasktime/internal/aggregate"
	"github.com/balkashynov/tasktime/internal/api"
	"github.com/balkashynov/tasktime/internal/apperr"
	"github.com/balkashynov/tasktime/internal/log"
	"github.com/balkashynov/tasktime/internal/models"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{
		Status: "ok",
		Time:   s.deps.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStart(c *gin.Context) {
	taskID, ok := bindTask(c)
	if !ok {
		return
	}
	userID := c.GetString(ctxUserID)
	ctx := c.Request.Context()

	// Invisible and unknown tasks look the same to the caller.
	visible, err := s.deps.Access.CanSee(ctx, taskID, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !visible {
		writeError(c, apperr.New(apperr.KindNotFound, "task not found"))
		return
	}

	session, err := s.deps.Sessions.Start(ctx, taskID, userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

func (s *Server) handleStop(c *gin.Context) {
	taskID, ok := bindTask(c)
	if !ok {
		return
	}
	userID := c.GetString(ctxUserID)

	session, err := s.deps.Sessions.Stop(c.Request.Context(), taskID, userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

func (s *Server) handleSessions(c *gin.Context) {
	taskID := strings.TrimSpace(c.Query("task_id"))
	if taskID == "" {
		writeError(c, apperr.New(apperr.KindInvalid, "task_id is required"))
		return
	}
	userID := c.GetString(ctxUserID)
	ctx := c.Request.Context()

	visible, err := s.deps.Access.CanSee(ctx, taskID, userID)
	if err != nil {
		log.ErrorErr(log.CatAccess, "visibility check failed", err, "task_id", taskID, "user_id", userID)
		visible = false
	}
	if !visible {
		stats := aggregate.Stats{Summary: aggregate.Zero()}
		stats.Error = aggregate.NoAccessMessage
		c.JSON(http.StatusOK, api.SessionsResponse{Sessions: []models.TimeSession{}, Stats: stats})
		return
	}

	sessions, err := s.deps.Sessions.ListForTask(ctx, taskID)
	if err != nil {
		writeError(c, err)
		return
	}
	if sessions == nil {
		sessions = []models.TimeSession{}
	}

	c.JSON(http.StatusOK, api.SessionsResponse{
		Sessions: sessions,
		Stats:    aggregate.TaskStats(taskID, userID, sessions, s.deps.Now()),
	})
}

func (s *Server) handleBatch(c *gin.Context) {
	var req api.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Wrap(apperr.KindInvalid, "invalid request body", err))
		return
	}

	times, err := s.deps.Batch.Batch(c.Request.Context(), req.TaskIDs, c.GetString(ctxUserID))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.BatchResponse{Times: times})
}

func bindTask(c *gin.Context) (string, bool) {
	var req api.TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Wrap(apperr.KindInvalid, "task_id is required", err))
		return "", false
	}
	taskID := strings.TrimSpace(req.TaskID)
	if taskID == "" {
		writeError(c, apperr.New(apperr.KindInvalid, "task_id is required"))
		return "", false
	}
	return taskID, true
}
