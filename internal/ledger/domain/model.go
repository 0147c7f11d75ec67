package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// UsageEvent is one recorded completion. Rows are append-only; aggregates are
// always derived, never stored.
type UsageEvent struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	Timestamp        time.Time    `gorm:"index" json:"timestamp"`
	ResponseID       string       `gorm:"uniqueIndex;size:255" json:"response_id"`
	UserID           string       `gorm:"index;size:255" json:"user_id"`
	Model            string       `gorm:"size:255" json:"model"`
	PromptTokens     int64        `json:"prompt_tokens"`
	CompletionTokens int64        `json:"completion_tokens"`
	CostUSD          *float64     `json:"cost_usd"`
}

func (UsageEvent) TableName() string {
	return "usage_events"
}

// WindowedUsage aggregates request and token counts over a time window.
// All fields are zero when the window holds no rows.
type WindowedUsage struct {
	Requests         int64 `json:"requests"`
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

// TotalTokens is the combined prompt and completion token count.
func (w WindowedUsage) TotalTokens() int64 {
	return w.PromptTokens + w.CompletionTokens
}

type ListRequest struct {
	UserID     string
	ResponseID string
	StartDate  *time.Time
	EndDate    *time.Time
	Skip       int
	Limit      int
}

type ListResponse struct {
	Items []UsageEvent `json:"items"`
	Skip  int          `json:"skip"`
	Limit int          `json:"limit"`
}

type Service interface {
	Append(ctx context.Context, event *UsageEvent) error
	WindowedUsage(ctx context.Context, userID string, since time.Time) (WindowedUsage, error)
	WindowedCost(ctx context.Context, userID string, since time.Time) (*float64, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

var (
	ErrInvalidEvent     = errors.New("invalid_usage_event")
	ErrDuplicateEvent   = errors.New("duplicate_usage_event")
	ErrInvalidDateRange = errors.New("invalid_date_range")
)
