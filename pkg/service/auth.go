package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	errdomain "github.com/knowbase/file-backend/pkg/errors"
	"github.com/knowbase/file-backend/pkg/repository"
)

// Login verifies credentials and issues a signed token. Invalid username and
// invalid password are indistinguishable to the caller.
func (s *service) Login(ctx context.Context, username, password string) (string, *repository.UserModel, error) {
	user, err := s.repository.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, errdomain.ErrNotFound) {
			return "", nil, fmt.Errorf("invalid credentials: %w", errdomain.ErrUnauthenticated)
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, fmt.Errorf("invalid credentials: %w", errdomain.ErrUnauthenticated)
	}

	expiry := s.auth.Expiry
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      fmt.Sprintf("%d", user.ID),
		"username": user.Username,
		"iat":      now.Unix(),
		"exp":      now.Add(expiry).Unix(),
	})
	signed, err := token.SignedString([]byte(s.auth.JWTSecret))
	if err != nil {
		return "", nil, fmt.Errorf("signing token: %w", err)
	}
	return signed, user, nil
}

// CreateUser registers a user with a bcrypt-hashed password.
func (s *service) CreateUser(ctx context.Context, username, password string) (*repository.UserModel, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password are required: %w", errdomain.ErrInvalidArgument)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	return s.repository.CreateUser(ctx, &repository.UserModel{
		Username:     username,
		PasswordHash: string(hash),
	})
}

// GetUser resolves a token subject to its live user record.
func (s *service) GetUser(ctx context.Context, userID uint) (*repository.UserModel, error) {
	return s.repository.GetUserByID(ctx, userID)
}
