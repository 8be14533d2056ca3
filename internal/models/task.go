package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Priority is the task priority enum.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

const priorityRule = "oneof=Low Medium High"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Task represents a task owned by a single user.
type Task struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	Name        string    `json:"name" gorm:"not null;uniqueIndex:idx_tasks_user_name"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed" gorm:"not null;default:false"`
	Priority    Priority  `json:"priority" gorm:"size:16;not null;default:Low"`
	UserID      string    `json:"user" gorm:"column:user_id;size:36;not null;index;uniqueIndex:idx_tasks_user_name"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TableName pins the GORM table name to the one the SQL store uses.
func (Task) TableName() string { return "tasks" }

// NewTask is the create input. Ownership is never taken from it.
type NewTask struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description"`
	Completed   bool     `json:"completed"`
	Priority    Priority `json:"priority" validate:"omitempty,oneof=Low Medium High"`
}

// Validate trims the name and checks field rules.
func (n *NewTask) Validate() error {
	n.Name = strings.TrimSpace(n.Name)
	if err := validate.Struct(n); err != nil {
		return describe(err)
	}
	return nil
}

// Build returns the Task to insert for owner.
func (n NewTask) Build(owner string) Task {
	p := n.Priority
	if p == "" {
		p = PriorityLow
	}
	return Task{
		Name:        n.Name,
		Description: n.Description,
		Completed:   n.Completed,
		Priority:    p,
		UserID:      owner,
	}
}

// TaskPatch lists the fields Edit may change. A nil field is left untouched.
type TaskPatch struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Completed   *bool     `json:"completed"`
	Priority    *Priority `json:"priority"`
}

// Validate runs the per-field validators on the fields that are present.
func (p *TaskPatch) Validate() error {
	if p.Name != nil {
		trimmed := strings.TrimSpace(*p.Name)
		p.Name = &trimmed
		if err := validate.Var(trimmed, "required"); err != nil {
			return fieldError("name", "required")
		}
	}
	if p.Priority != nil {
		if err := validate.Var(string(*p.Priority), priorityRule); err != nil {
			return fieldError("priority", "oneof")
		}
	}
	return nil
}

// Apply merges the patch into t.
func (p TaskPatch) Apply(t *Task) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
}

// ValidationError describes a single rejected field.
type ValidationError struct {
	Field string
	Rule  string
}

func (e *ValidationError) Error() string {
	switch e.Rule {
	case "required":
		return fmt.Sprintf("%s is required", e.Field)
	case "oneof":
		return fmt.Sprintf("%s must be one of Low, Medium, High", e.Field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", e.Field)
	case "min":
		return fmt.Sprintf("%s is too short", e.Field)
	case "max":
		return fmt.Sprintf("%s is too long", e.Field)
	default:
		return fmt.Sprintf("%s is invalid", e.Field)
	}
}

func fieldError(field, rule string) error {
	return &ValidationError{Field: field, Rule: rule}
}

// describe turns the first validator failure into a ValidationError keyed by
// the lowercase field name.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fieldError(strings.ToLower(fe.Field()), fe.Tag())
	}
	return err
}
