package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"receivables/internal/auth"
	"receivables/internal/model"
	"receivables/internal/repository"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	msgCredentialsRequired = "Username and password required"
	msgInvalidCredentials  = "Invalid credentials"
	msgLoginSuccessful     = "Login successful"
)

type LoginRequest struct {
	Username string `json:"username" example:"admin"`
	Password string `json:"password" example:"admin123"`
}

// UserResponse describes the authenticated operator without sensitive data
type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type LoginResponse struct {
	Token   string       `json:"token"`
	User    UserResponse `json:"user"`
	Message string       `json:"message"`
}

// AuthService validates credentials and issues bearer tokens
type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	GetUserByID(ctx context.Context, id string) (*UserResponse, error)
}

type authService struct {
	repo   repository.UserRepository
	tokens *auth.TokenManager
}

// NewAuthService returns a new instance of AuthService
func NewAuthService(repo repository.UserRepository, tokens *auth.TokenManager) AuthService {
	return &authService{repo: repo, tokens: tokens}
}

func mapToUserResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:       user.ID.String(),
		Username: user.Username,
		Role:     user.Role,
	}
}

func (s *authService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, validationError(msgCredentialsRequired)
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authenticationError(msgInvalidCredentials)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, authenticationError(msgInvalidCredentials)
	}

	token, err := s.tokens.Issue(auth.Claims{
		UserID:   user.ID.String(),
		Username: user.Username,
		Role:     user.Role,
	})
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		Token:   token,
		User:    *mapToUserResponse(user),
		Message: msgLoginSuccessful,
	}, nil
}

func (s *authService) GetUserByID(ctx context.Context, id string) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("user not found")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return mapToUserResponse(user), nil
}
