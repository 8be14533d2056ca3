package controller

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"taskhub/internal/apperr"
	"taskhub/internal/middleware"
	"taskhub/internal/models"
)

// TaskService is what the task handlers need.
type TaskService interface {
	List(ctx context.Context, userID string) ([]models.Task, error)
	Get(ctx context.Context, userID, taskID string) (models.Task, error)
	Create(ctx context.Context, userID string, in models.NewTask) (models.Task, error)
	Edit(ctx context.Context, userID, taskID string, patch models.TaskPatch) (models.Task, error)
	Delete(ctx context.Context, userID, taskID string) error
}

type Tasks struct {
	svc TaskService
}

func NewTasks(svc TaskService) *Tasks {
	return &Tasks{svc: svc}
}

func owner(c *gin.Context) (string, bool) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		RespondError(c, apperr.Unauthorized(nil))
		return "", false
	}
	return u.ID, true
}

func (h *Tasks) List(c *gin.Context) {
	uid, ok := owner(c)
	if !ok {
		return
	}
	tasks, err := h.svc.List(c.Request.Context(), uid)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *Tasks) Get(c *gin.Context) {
	uid, ok := owner(c)
	if !ok {
		return
	}
	task, err := h.svc.Get(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"singleTask": task})
}

func (h *Tasks) Create(c *gin.Context) {
	uid, ok := owner(c)
	if !ok {
		return
	}
	var body models.NewTask
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, apperr.Validation("Invalid request body", err))
		return
	}
	task, err := h.svc.Create(c.Request.Context(), uid, body)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "added new task successfully!", "newTask": task})
}

func (h *Tasks) Edit(c *gin.Context) {
	uid, ok := owner(c)
	if !ok {
		return
	}
	var patch models.TaskPatch
	if err := c.ShouldBindJSON(&patch); err != nil && !errors.Is(err, io.EOF) {
		RespondError(c, apperr.Validation("Invalid request body", err))
		return
	}
	task, err := h.svc.Edit(c.Request.Context(), uid, c.Param("id"), patch)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task updated successfully!", "updatedTask": task})
}

func (h *Tasks) Delete(c *gin.Context) {
	uid, ok := owner(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), uid, c.Param("id")); err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task Deleted Successfully!"})
}
