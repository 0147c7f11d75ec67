package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	userdomain "github.com/freewayhq/freeway/internal/user/domain"
)

type repo struct{}

func Provide() userdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *userdomain.User) error {
	return db.WithContext(ctx).Create(user).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, user *userdomain.User) error {
	return db.WithContext(ctx).Save(user).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, username string) error {
	result := db.WithContext(ctx).Where("username = ?", username).Delete(&userdomain.User{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return userdomain.ErrNotFound
	}
	return nil
}

func (r *repo) FindByUsername(ctx context.Context, db *gorm.DB, username string) (*userdomain.User, error) {
	var user userdomain.User
	err := db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]userdomain.User, error) {
	var users []userdomain.User
	if err := db.WithContext(ctx).Order("username ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
