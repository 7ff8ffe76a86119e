// Package access decides which tasks a caller may see time for.
package access

import (
	"context"

	"github.com/balkashynov/tasktime/internal/apperr"
	"github.com/balkashynov/tasktime/internal/log"
)

// Ownership holds the visibility facts for one task.
type Ownership struct {
	OwnerID        string
	AssigneeID     string
	OrganizationID string
}

// Registry is the external task registry. GetTaskOwnership returns an apperr NotFound
// error for unknown tasks.
type Registry interface {
	GetTaskOwnership(ctx context.Context, taskID string) (Ownership, error)
	GetCallerOrganizations(ctx context.Context, userID string) (map[string]struct{}, error)
}

// Filter narrows task ids down to the ones a caller is allowed to see.
type Filter struct {
	registry Registry
}

// NewFilter creates a filter backed by registry.
func NewFilter(registry Registry) *Filter {
	return &Filter{registry: registry}
}

// VisibleTaskIDs returns the subset of taskIDs visible to caller: the caller created the
// task, is its assignee, or belongs to its organization. Registry failures for a single task
// make that task invisible rather than failing the whole call.
func (f *Filter) VisibleTaskIDs(ctx context.Context, taskIDs []string, caller string) (map[string]struct{}, error) {
	visible := make(map[string]struct{}, len(taskIDs))
	if len(taskIDs) == 0 || caller == "" {
		return visible, nil
	}

	orgs, err := f.registry.GetCallerOrganizations(ctx, caller)
	if err != nil {
		return nil, err
	}

	checked := make(map[string]struct{}, len(taskIDs))
	for _, id := range taskIDs {
		if _, seen := checked[id]; seen {
			continue
		}
		checked[id] = struct{}{}

		own, err := f.registry.GetTaskOwnership(ctx, id)
		if err != nil {
			if apperr.KindOf(err) != apperr.KindNotFound {
				log.ErrorErr(log.CatAccess, "ownership lookup failed", err, "task_id", id)
			}
			continue
		}
		if canSee(own, caller, orgs) {
			visible[id] = struct{}{}
		}
	}

	return visible, nil
}

// CanSee reports whether caller may see a single task. Unknown tasks are not visible.
func (f *Filter) CanSee(ctx context.Context, taskID, caller string) (bool, error) {
	visible, err := f.VisibleTaskIDs(ctx, []string{taskID}, caller)
	if err != nil {
		return false, err
	}
	_, ok := visible[taskID]
	return ok, nil
}

func canSee(own Ownership, caller string, orgs map[string]struct{}) bool {
	if own.OwnerID == caller || own.AssigneeID == caller {
		return true
	}
	if own.OrganizationID == "" {
		return false
	}
	_, member := orgs[own.OrganizationID]
	return member
}
