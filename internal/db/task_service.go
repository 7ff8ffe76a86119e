package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/balkashynov/tasktime/internal/access"
	"github.com/balkashynov/tasktime/internal/apperr"
	"github.com/balkashynov/tasktime/internal/models"
)

// CreateTaskRequest holds the ownership facts for a new task
type CreateTaskRequest struct {
	ID             string
	OwnerID        string
	AssigneeID     string
	OrganizationID string
}

// TaskRegistry serves task ownership and organization membership from the local database.
type TaskRegistry struct {
	db *gorm.DB
}

var _ access.Registry = (*TaskRegistry)(nil)

// NewTaskRegistry creates a registry over db.
func NewTaskRegistry(db *gorm.DB) *TaskRegistry {
	return &TaskRegistry{db: db}
}

// CreateTask registers a task's ownership facts.
func (r *TaskRegistry) CreateTask(ctx context.Context, req CreateTaskRequest) (*models.Task, error) {
	id := strings.TrimSpace(req.ID)
	owner := strings.TrimSpace(req.OwnerID)
	if id == "" || owner == "" {
		return nil, apperr.New(apperr.KindInvalid, "task id and owner are required")
	}

	task := models.Task{
		ID:             id,
		OwnerID:        owner,
		AssigneeID:     strings.TrimSpace(req.AssigneeID),
		OrganizationID: strings.TrimSpace(req.OrganizationID),
	}

	err := r.db.WithContext(ctx).Create(&task).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, apperr.New(apperr.KindConflict, fmt.Sprintf("task %s already exists", id))
	}
	if err != nil {
		return nil, err
	}

	return &task, nil
}

// AddMember adds userID to organization orgID. Adding an existing member is a no-op.
func (r *TaskRegistry) AddMember(ctx context.Context, orgID, userID string) error {
	if orgID == "" || userID == "" {
		return apperr.New(apperr.KindInvalid, "organization and user are required")
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Membership{OrganizationID: orgID, UserID: userID}).Error
}

// GetTask retrieves a task by ID
func (r *TaskRegistry) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	var task models.Task

	err := r.db.WithContext(ctx).Where("id = ?", taskID).Take(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.KindNotFound, fmt.Sprintf("task %s not found", taskID))
	}
	if err != nil {
		return nil, err
	}

	return &task, nil
}

// GetTaskOwnership implements access.Registry.
func (r *TaskRegistry) GetTaskOwnership(ctx context.Context, taskID string) (access.Ownership, error) {
	task, err := r.GetTask(ctx, taskID)
	if err != nil {
		return access.Ownership{}, err
	}
	return access.Ownership{
		OwnerID:        task.OwnerID,
		AssigneeID:     task.AssigneeID,
		OrganizationID: task.OrganizationID,
	}, nil
}

// GetCallerOrganizations implements access.Registry.
func (r *TaskRegistry) GetCallerOrganizations(ctx context.Context, userID string) (map[string]struct{}, error) {
	var orgIDs []string

	err := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("user_id = ?", userID).
		Pluck("organization_id", &orgIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}

	orgs := make(map[string]struct{}, len(orgIDs))
	for _, id := range orgIDs {
		orgs[id] = struct{}{}
	}
	return orgs, nil
}
