package controller

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"taskhub/internal/apperr"
	"taskhub/internal/middleware"
	"taskhub/internal/models"
	"taskhub/internal/service"
)

// AuthService is what the auth handlers need.
type AuthService interface {
	Register(ctx context.Context, in models.Registration) (service.Session, error)
	Login(ctx context.Context, in models.Credentials) (service.Session, error)
}

type Auth struct {
	svc AuthService
}

func NewAuth(svc AuthService) *Auth {
	return &Auth{svc: svc}
}

// Register creates an account and returns its first token.
func (h *Auth) Register(c *gin.Context) {
	var body models.Registration
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, apperr.Validation("Invalid request body", err))
		return
	}
	s, err := h.svc.Register(c.Request.Context(), body)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": s.Token, "user": s.User})
}

func (h *Auth) Login(c *gin.Context) {
	var body models.Credentials
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, apperr.Validation("Invalid request body", err))
		return
	}
	s, err := h.svc.Login(c.Request.Context(), body)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": s.Token, "user": s.User})
}

// Me returns the authenticated user.
func (h *Auth) Me(c *gin.Context) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		RespondError(c, apperr.Unauthorized(nil))
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}
