package db

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/balkashynov/tasktime/internal/apperr"
	"github.com/balkashynov/tasktime/internal/log"
	"github.com/balkashynov/tasktime/internal/models"
)

// ConflictError is returned by Start when the (task, user) pair already has an active
// session. Active is that session, so callers can adopt it instead of retrying.
type ConflictError struct {
	TaskID string
	UserID string
	Active *models.TimeSession
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("session already active for task %s", e.TaskID)
}

// ErrorKind classifies the error for apperr.KindOf.
func (e *ConflictError) ErrorKind() apperr.Kind { return apperr.KindConflict }

// Is lets errors.Is(err, apperr.ErrConflict) match.
func (e *ConflictError) Is(target error) bool {
	t, ok := target.(*apperr.Error)
	return ok && t.Kind == apperr.KindConflict
}

// SessionStore is the only writer of time sessions.
type SessionStore struct {
	db    *gorm.DB
	now   func() time.Time
	newID func() string
}

// NewSessionStore creates a store that stamps sessions with time.Now.
func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db, now: time.Now, newID: uuid.NewString}
}

// WithClock replaces the store's clock. Used by tests and by tools replaying history.
func (s *SessionStore) WithClock(now func() time.Time) *SessionStore {
	s.now = now
	return s
}

// Start opens a new session for (taskID, userID).
// Returns *ConflictError if one is already active.
func (s *SessionStore) Start(ctx context.Context, taskID, userID string) (*models.TimeSession, error) {
	var created models.TimeSession

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active, err := findActive(tx, taskID, userID)
		if err != nil {
			return err
		}
		if active != nil {
			return &ConflictError{TaskID: taskID, UserID: userID, Active: active}
		}

		created = models.TimeSession{
			ID:        s.newID(),
			TaskID:    taskID,
			UserID:    userID,
			StartTime: s.now().UTC(),
		}
		return tx.Create(&created).Error
	})

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost a race against another writer; the unique index caught it.
		active, findErr := s.ActiveFor(ctx, taskID, userID)
		if findErr != nil {
			return nil, findErr
		}
		return nil, &ConflictError{TaskID: taskID, UserID: userID, Active: active}
	}
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			return nil, conflict
		}
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	log.Info(log.CatStore, "session started", "task_id", taskID, "user_id", userID, "session_id", created.ID)
	return &created, nil
}

// Stop closes the active session for (taskID, userID) and records its duration.
// Returns an apperr NotFound error if there is no active session.
func (s *SessionStore) Stop(ctx context.Context, taskID, userID string) (*models.TimeSession, error) {
	var closed models.TimeSession

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active, err := findActive(tx, taskID, userID)
		if err != nil {
			return err
		}
		if active == nil {
			return apperr.New(apperr.KindNotFound, "no active session")
		}

		end := s.now().UTC()
		if end.Before(active.StartTime) {
			// Clock stepped backwards; a session never ends before it starts.
			end = active.StartTime
		}
		duration := int64(math.Round(end.Sub(active.StartTime).Seconds()))

		res := tx.Model(&models.TimeSession{}).
			Where("id = ? AND end_time IS NULL", active.ID).
			Updates(map[string]any{"end_time": end, "duration_seconds": duration})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.KindNotFound, "no active session")
		}

		active.EndTime = &end
		active.DurationSeconds = &duration
		closed = *active
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to stop session: %w", err)
	}

	log.Info(log.CatStore, "session stopped", "task_id", taskID, "user_id", userID,
		"session_id", closed.ID, "duration_seconds", *closed.DurationSeconds)
	return &closed, nil
}

// ActiveFor returns the active session for (taskID, userID), or nil if there is none.
func (s *SessionStore) ActiveFor(ctx context.Context, taskID, userID string) (*models.TimeSession, error) {
	active, err := findActive(s.db.WithContext(ctx), taskID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}
	return active, nil
}

// ListForTask returns every session for the task, across all users, oldest first.
func (s *SessionStore) ListForTask(ctx context.Context, taskID string) ([]models.TimeSession, error) {
	var sessions []models.TimeSession

	err := s.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("start_time ASC").
		Order("id ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	return sessions, nil
}

// ListForTasksByUser returns the user's sessions for all given tasks, oldest first.
func (s *SessionStore) ListForTasksByUser(ctx context.Context, taskIDs []string, userID string) ([]models.TimeSession, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}

	var sessions []models.TimeSession
	err := s.db.WithContext(ctx).
		Where("task_id IN ? AND user_id = ?", taskIDs, userID).
		Order("start_time ASC").
		Order("id ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	return sessions, nil
}

func findActive(tx *gorm.DB, taskID, userID string) (*models.TimeSession, error) {
	var session models.TimeSession

	err := tx.Where("task_id = ? AND user_id = ? AND end_time IS NULL", taskID, userID).
		Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // No active session is not an error
	}
	if err != nil {
		return nil, err
	}

	return &session, nil
}
