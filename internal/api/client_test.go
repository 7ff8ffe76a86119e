package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/balkashynov/tasktime/internal/apperr"
	"github.com/balkashynov/tasktime/internal/models"
)

func newTestServer(t *testing.T, register func(r *gin.Engine)) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_StartSendsTaskAndToken(t *testing.T) {
	srv := newTestServer(t, func(r *gin.Engine) {
		r.POST("/time/start", func(c *gin.Context) {
			var req TaskRequest
			require.NoError(t, c.ShouldBindJSON(&req))
			require.Equal(t, "Bearer tok", c.GetHeader("Authorization"))
			c.JSON(http.StatusCreated, models.TimeSession{ID: "s1", TaskID: req.TaskID, UserID: "alice"})
		})
	})

	session, err := NewClient(srv.URL+"/", "tok", time.Second).Start(context.Background(), "T")
	require.NoError(t, err)
	require.Equal(t, "s1", session.ID)
	require.Equal(t, "T", session.TaskID)
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   *apperr.Error
	}{
		{http.StatusUnauthorized, apperr.ErrUnauthorized},
		{http.StatusNotFound, apperr.ErrNotFound},
		{http.StatusConflict, apperr.ErrConflict},
		{http.StatusBadRequest, apperr.ErrInvalid},
		{http.StatusTooManyRequests, apperr.ErrTransient},
		{http.StatusBadGateway, apperr.ErrTransient},
		{http.StatusInternalServerError, apperr.ErrTransient},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := newTestServer(t, func(r *gin.Engine) {
				r.POST("/time/stop", func(c *gin.Context) {
					c.JSON(tt.status, ErrorResponse{Code: "x", Message: "nope"})
				})
			})

			_, err := NewClient(srv.URL, "", time.Second).Stop(context.Background(), "T")
			require.ErrorIs(t, err, tt.want)
			require.Equal(t, tt.want.Kind, apperr.KindOf(err))
			require.Contains(t, err.Error(), "nope")
		})
	}
}

func TestClient_ConflictCarriesActiveSession(t *testing.T) {
	srv := newTestServer(t, func(r *gin.Engine) {
		r.POST("/time/start", func(c *gin.Context) {
			c.JSON(http.StatusConflict, ErrorResponse{
				Code:          "conflict",
				Message:       "session already active",
				ActiveSession: &models.TimeSession{ID: "existing", TaskID: "T"},
			})
		})
	})

	_, err := NewClient(srv.URL, "", time.Second).Start(context.Background(), "T")
	require.ErrorIs(t, err, apperr.ErrConflict)
	active := ConflictSession(err)
	require.NotNil(t, active)
	require.Equal(t, "existing", active.ID)
	require.Nil(t, ConflictSession(apperr.New(apperr.KindConflict, "other")))
}

func TestClient_TimeoutIsTransient(t *testing.T) {
	release := make(chan struct{})
	srv := newTestServer(t, func(r *gin.Engine) {
		r.GET("/time/sessions", func(c *gin.Context) {
			<-release
			c.Status(http.StatusOK)
		})
	})
	defer close(release)

	_, err := NewClient(srv.URL, "", 20*time.Millisecond).Sessions(context.Background(), "T")
	require.ErrorIs(t, err, apperr.ErrTransient)
}

func TestClient_UnreachableIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := NewClient(addr, "", time.Second).Batch(context.Background(), []string{"T"})
	require.Equal(t, apperr.KindTransient, apperr.KindOf(err))
}

func TestClient_SessionsAndActiveSession(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	srv := newTestServer(t, func(r *gin.Engine) {
		r.GET("/time/sessions", func(c *gin.Context) {
			require.Equal(t, "a b", c.Query("task_id"))
			resp := SessionsResponse{Sessions: []models.TimeSession{{ID: "s1", TaskID: "a b", StartTime: start}}}
			resp.Stats.ActiveSession = &resp.Sessions[0]
			resp.Stats.HasActiveSession = true
			c.JSON(http.StatusOK, resp)
		})
	})
	client := NewClient(srv.URL, "", time.Second)

	resp, err := client.Sessions(context.Background(), "a b")
	require.NoError(t, err)
	require.Len(t, resp.Sessions, 1)

	active, err := client.ActiveSession(context.Background(), "a b")
	require.NoError(t, err)
	require.NotNil(t, active)
	require.True(t, active.StartTime.Equal(start))
}

func TestClient_Batch(t *testing.T) {
	srv := newTestServer(t, func(r *gin.Engine) {
		r.POST("/time/batch", func(c *gin.Context) {
			var req BatchRequest
			require.NoError(t, json.NewDecoder(c.Request.Body).Decode(&req))
			times := make(map[string]Summary, len(req.TaskIDs))
			for _, id := range req.TaskIDs {
				times[id] = Summary{TotalSeconds: 60, Formatted: "00:01:00"}
			}
			c.JSON(http.StatusOK, BatchResponse{Times: times})
		})
	})

	times, err := NewClient(srv.URL, "", time.Second).Batch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, times, 2)
	require.Equal(t, int64(60), times["b"].TotalSeconds)
}
