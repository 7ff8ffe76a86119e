package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/balkashynov/tasktime/internal/models"
)

// HintStore keeps per-task timer hints in the device-local database.
type HintStore struct {
	db *gorm.DB
}

// NewHintStore creates a hint store over a database opened with OpenClient.
func NewHintStore(db *gorm.DB) *HintStore {
	return &HintStore{db: db}
}

// Load returns the hint for taskID, or nil if none was saved.
func (h *HintStore) Load(ctx context.Context, taskID string) (*models.TimerHint, error) {
	var hint models.TimerHint

	err := h.db.WithContext(ctx).Where("task_id = ?", taskID).Take(&hint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load timer hint: %w", err)
	}

	return &hint, nil
}

// Save inserts or overwrites the hint for hint.TaskID.
func (h *HintStore) Save(ctx context.Context, hint models.TimerHint) error {
	err := h.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&hint).Error
	if err != nil {
		return fmt.Errorf("failed to save timer hint: %w", err)
	}
	return nil
}

// Clear removes the hint for taskID.
func (h *HintStore) Clear(ctx context.Context, taskID string) error {
	err := h.db.WithContext(ctx).Where("task_id = ?", taskID).Delete(&models.TimerHint{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear timer hint: %w", err)
	}
	return nil
}
