package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	registrydomain "github.com/freewayhq/freeway/internal/registry/domain"
)

type repo struct{}

func Provide() registrydomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, model *registrydomain.Model) error {
	return db.WithContext(ctx).Create(model).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, model *registrydomain.Model) error {
	return db.WithContext(ctx).Save(model).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, name string) error {
	result := db.WithContext(ctx).Where("name = ?", name).Delete(&registrydomain.Model{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &registrydomain.NotFoundError{Name: name}
	}
	return nil
}

func (r *repo) FindByName(ctx context.Context, db *gorm.DB, name string) (*registrydomain.Model, error) {
	var model registrydomain.Model
	err := db.WithContext(ctx).Where("name = ?", name).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	// SQLite and MySQL default collations compare case-insensitively; the
	// catalog is case-sensitive by contract.
	if model.Name != name {
		return nil, nil
	}
	return &model, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]registrydomain.Model, error) {
	var models []registrydomain.Model
	if err := db.WithContext(ctx).Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return models, nil
}
