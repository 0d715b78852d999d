package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	errdomain "github.com/knowbase/file-backend/pkg/errors"
)

// UserTableName is the table name for users
const UserTableName = "users"

// User interface defines the methods for the users table. Only what identity
// extraction and record ownership need; role storage is out of scope.
type User interface {
	CreateUser(ctx context.Context, user *UserModel) (*UserModel, error)
	GetUserByID(ctx context.Context, userID uint) (*UserModel, error)
	GetUserByUsername(ctx context.Context, username string) (*UserModel, error)
}

// UserModel is the model for the users table
type UserModel struct {
	ID           uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"column:username;size:80;not null;uniqueIndex" json:"username"`
	PasswordHash string    `gorm:"column:password_hash;size:255;not null" json:"-"`
	CreatedAt    time.Time `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName overrides the default table name for GORM
func (UserModel) TableName() string {
	return UserTableName
}

func (r *repository) CreateUser(ctx context.Context, user *UserModel) (*UserModel, error) {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

func (r *repository) GetUserByID(ctx context.Context, userID uint) (*UserModel, error) {
	var user UserModel
	err := r.db.WithContext(ctx).First(&user, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %d: %w", userID, errdomain.ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

func (r *repository) GetUserByUsername(ctx context.Context, username string) (*UserModel, error) {
	var user UserModel
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %q: %w", username, errdomain.ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}
