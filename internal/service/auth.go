package service

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"taskhub/internal/apperr"
	"taskhub/internal/models"
	"taskhub/internal/repository"
	"taskhub/pkg/logger"
)

// MsgUserExists is returned when registration hits a taken email or username.
const MsgUserExists = "User already exists"

// UserStore is the persistence port of AuthService.
type UserStore interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	Exists(ctx context.Context, email, username string) (bool, error)
	Insert(ctx context.Context, u *models.User) error
}

// TokenIssuer issues and verifies bearer credentials.
type TokenIssuer interface {
	Configured() bool
	Issue(userID string) (string, error)
	Verify(token string) (string, error)
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

// Session is what Register and Login hand back to the client.
type Session struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

type AuthService struct {
	users     UserStore
	tokens    TokenIssuer
	passwords PasswordHasher
}

func NewAuthService(users UserStore, tokens TokenIssuer, passwords PasswordHasher) *AuthService {
	return &AuthService{users: users, tokens: tokens, passwords: passwords}
}

func (s *AuthService) Register(ctx context.Context, in models.Registration) (Session, error) {
	if err := in.Validate(); err != nil {
		return Session{}, apperr.Validation(err.Error(), err)
	}
	if !s.tokens.Configured() {
		logger.Error(ctx, "JWT secret is not configured")
		return Session{}, apperr.Internal("server misconfiguration", nil)
	}

	exists, err := s.users.Exists(ctx, in.Email, in.Username)
	if err != nil {
		return Session{}, apperr.Internal("failed to register", err)
	}
	if exists {
		return Session{}, apperr.Conflict(MsgUserExists)
	}

	hash, err := s.passwords.Hash(in.Password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return Session{}, apperr.Validation("password is too long", err)
	}
	if err != nil {
		return Session{}, apperr.Internal("failed to register", err)
	}
	u := models.User{Username: in.Username, Email: in.Email, PasswordHash: hash}
	if err := s.users.Insert(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return Session{}, apperr.Conflict(MsgUserExists)
		}
		return Session{}, apperr.Internal("failed to register", err)
	}
	return s.session(u)
}

func (s *AuthService) Login(ctx context.Context, in models.Credentials) (Session, error) {
	if err := in.Validate(); err != nil {
		return Session{}, apperr.Validation(err.Error(), err)
	}
	u, err := s.users.FindByEmail(ctx, in.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, apperr.InvalidCredentials()
	}
	if err != nil {
		return Session{}, apperr.Internal("failed to log in", err)
	}
	if !s.passwords.Verify(u.PasswordHash, in.Password) {
		return Session{}, apperr.InvalidCredentials()
	}
	return s.session(u)
}

// Authenticate resolves a bearer token to its user. Every failure, including
// a token for a user that no longer exists, is Unauthorized.
func (s *AuthService) Authenticate(ctx context.Context, token string) (models.User, error) {
	id, err := s.tokens.Verify(token)
	if err != nil {
		return models.User{}, apperr.Unauthorized(err)
	}
	u, err := s.users.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return models.User{}, apperr.Unauthorized(err)
	}
	if err != nil {
		return models.User{}, apperr.Internal("failed to authenticate", err)
	}
	return u, nil
}

func (s *AuthService) session(u models.User) (Session, error) {
	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return Session{}, apperr.Internal("failed to issue token", err)
	}
	return Session{Token: token, User: u}, nil
}
