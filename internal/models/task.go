package models

import (
	"time"
)

// Task carries the ownership facts the access filter needs. Everything else about a task
// lives in the external task system.
type Task struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	OwnerID        string    `gorm:"not null;index" json:"owner_id"`
	AssigneeID     string    `gorm:"index" json:"assignee_id"`
	OrganizationID string    `gorm:"index" json:"organization_id"`
}

// Membership links a user to an organization.
type Membership struct {
	OrganizationID string `gorm:"primaryKey" json:"organization_id"`
	UserID         string `gorm:"primaryKey;index" json:"user_id"`
}
