package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestNewTaskValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      NewTask
		wantErr string
	}{
		{"minimal", NewTask{Name: "T1"}, ""},
		{"with priority", NewTask{Name: "T1", Priority: PriorityHigh}, ""},
		{"missing name", NewTask{}, "name is required"},
		{"blank name", NewTask{Name: "   "}, "name is required"},
		{"bad priority", NewTask{Name: "T1", Priority: "Urgent"}, "priority must be one of Low, Medium, High"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.EqualError(t, err, tt.wantErr)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestNewTaskBuildDefaultsAndOwner(t *testing.T) {
	task := NewTask{Name: "T1"}.Build("owner-1")
	assert.Equal(t, PriorityLow, task.Priority)
	assert.False(t, task.Completed)
	assert.Equal(t, "owner-1", task.UserID)
}

func TestTaskPatchValidate(t *testing.T) {
	assert.NoError(t, (&TaskPatch{}).Validate())
	assert.NoError(t, (&TaskPatch{Completed: ptr(true)}).Validate())
	assert.EqualError(t, (&TaskPatch{Name: ptr(" ")}).Validate(), "name is required")
	assert.EqualError(t, (&TaskPatch{Priority: ptr(Priority("low"))}).Validate(), "priority must be one of Low, Medium, High")

	p := &TaskPatch{Name: ptr("  trimmed ")}
	require.NoError(t, p.Validate())
	assert.Equal(t, "trimmed", *p.Name)
}

func TestTaskPatchApplyOnlyTouchesPresentFields(t *testing.T) {
	task := Task{Name: "T1", Description: "d", Priority: PriorityHigh}
	TaskPatch{Completed: ptr(true)}.Apply(&task)

	assert.Equal(t, "T1", task.Name)
	assert.Equal(t, "d", task.Description)
	assert.Equal(t, PriorityHigh, task.Priority)
	assert.True(t, task.Completed)

	TaskPatch{Description: ptr(""), Priority: ptr(PriorityMedium)}.Apply(&task)
	assert.Equal(t, "", task.Description)
	assert.Equal(t, PriorityMedium, task.Priority)
}

func TestRegistrationValidate(t *testing.T) {
	r := &Registration{Username: " alice ", Email: " Alice@Example.com ", Password: "secret1"}
	require.NoError(t, r.Validate())
	assert.Equal(t, "alice", r.Username)
	assert.Equal(t, "alice@example.com", r.Email)

	assert.EqualError(t, (&Registration{Username: "a", Email: "nope", Password: "secret1"}).Validate(), "email must be a valid email address")
	assert.EqualError(t, (&Registration{Username: "a", Email: "a@b.co", Password: "123"}).Validate(), "password is too short")
}

func TestRoomFor(t *testing.T) {
	assert.Equal(t, "user:42", RoomFor("42"))
}
