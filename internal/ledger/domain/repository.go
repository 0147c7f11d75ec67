package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *UsageEvent) error
	AggregateUsage(ctx context.Context, db *gorm.DB, userID string, since time.Time) (WindowedUsage, error)
	AggregateCost(ctx context.Context, db *gorm.DB, userID string, since time.Time) (*float64, error)
	Find(ctx context.Context, db *gorm.DB, req ListRequest) ([]UsageEvent, error)
}
