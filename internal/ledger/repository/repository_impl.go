package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	ledgerdomain "github.com/freewayhq/freeway/internal/ledger/domain"
)

type repo struct{}

func Provide() ledgerdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *ledgerdomain.UsageEvent) error {
	return db.WithContext(ctx).Create(event).Error
}

func (r *repo) AggregateUsage(ctx context.Context, db *gorm.DB, userID string, since time.Time) (ledgerdomain.WindowedUsage, error) {
	var row struct {
		Requests         int64
		PromptTokens     int64
		CompletionTokens int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) AS requests,
		        COALESCE(SUM(prompt_tokens), 0) AS prompt_tokens,
		        COALESCE(SUM(completion_tokens), 0) AS completion_tokens
		 FROM usage_events WHERE user_id = ? AND timestamp > ?`,
		userID,
		since,
	).Scan(&row).Error
	if err != nil {
		return ledgerdomain.WindowedUsage{}, err
	}
	return ledgerdomain.WindowedUsage{
		Requests:         row.Requests,
		PromptTokens:     row.PromptTokens,
		CompletionTokens: row.CompletionTokens,
	}, nil
}

func (r *repo) AggregateCost(ctx context.Context, db *gorm.DB, userID string, since time.Time) (*float64, error) {
	var row struct {
		Cost *float64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT SUM(cost_usd) AS cost
		 FROM usage_events WHERE user_id = ? AND timestamp > ? AND cost_usd IS NOT NULL`,
		userID,
		since,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return row.Cost, nil
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, req ledgerdomain.ListRequest) ([]ledgerdomain.UsageEvent, error) {
	query := db.WithContext(ctx).Model(&ledgerdomain.UsageEvent{})
	if req.UserID != "" {
		query = query.Where("user_id = ?", req.UserID)
	}
	if req.ResponseID != "" {
		query = query.Where("response_id = ?", req.ResponseID)
	}
	if req.StartDate != nil {
		query = query.Where("timestamp >= ?", *req.StartDate)
	}
	if req.EndDate != nil {
		query = query.Where("timestamp <= ?", *req.EndDate)
	}

	var events []ledgerdomain.UsageEvent
	err := query.Order("timestamp DESC").
		Offset(req.Skip).
		Limit(req.Limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
