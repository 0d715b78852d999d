package repository

import (
	"context"

	"gorm.io/gorm"
)

// DefaultPageSize is the default pagination page size when page size is not assigned
const DefaultPageSize = 20

// MaxPageSize is the maximum pagination page size if the assigned value is over this number
const MaxPageSize = 100

// Repository bundles the persistence interfaces behind one injection point.
type Repository interface {
	File
	OperationLog
	User

	// Transaction runs fn against a transactional copy of the repository.
	// Everything fn writes commits together or not at all.
	Transaction(ctx context.Context, fn func(Repository) error) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a Repository backed by the given gorm connection.
func NewRepository(db *gorm.DB) Repository {
	return &repository{
		db: db,
	}
}

func (r *repository) Transaction(ctx context.Context, fn func(Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&repository{db: tx})
	})
}
