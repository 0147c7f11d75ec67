package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, model *Model) error
	Update(ctx context.Context, db *gorm.DB, model *Model) error
	Delete(ctx context.Context, db *gorm.DB, name string) error
	FindByName(ctx context.Context, db *gorm.DB, name string) (*Model, error)
	List(ctx context.Context, db *gorm.DB) ([]Model, error)
}
