package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	principaldomain "github.com/freewayhq/freeway/internal/principal/domain"
)

// Default quotas applied when a create request leaves them unset.
const (
	DefaultRequestsPerMinute int64   = 60
	DefaultTokensPerMinute   int64   = 100000
	DefaultCostUSDPerMonth   float64 = 10
)

type User struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	Username          string       `gorm:"uniqueIndex;size:255" json:"username"`
	PasswordHash      string       `json:"-"`
	IsAdmin           bool         `json:"is_admin"`
	RequestsPerMinute int64        `json:"requests_per_minute"`
	TokensPerMinute   int64        `json:"tokens_per_minute"`
	CostUSDPerMonth   float64      `json:"cost_usd_per_month"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// Principal maps the stored user onto the caller identity used by admission.
func (u *User) Principal() *principaldomain.Principal {
	return &principaldomain.Principal{
		ID:                u.ID.String(),
		Username:          u.Username,
		IsAdmin:           u.IsAdmin,
		RequestsPerMinute: u.RequestsPerMinute,
		TokensPerMinute:   u.TokensPerMinute,
		CostUSDPerMonth:   u.CostUSDPerMonth,
	}
}

type CreateRequest struct {
	Username          string   `json:"username" binding:"required"`
	Password          string   `json:"password" binding:"required"`
	IsAdmin           bool     `json:"is_admin"`
	RequestsPerMinute *int64   `json:"requests_per_minute"`
	TokensPerMinute   *int64   `json:"tokens_per_minute"`
	CostUSDPerMonth   *float64 `json:"cost_usd_per_month"`
}

type UpdateRequest struct {
	Password          *string  `json:"password"`
	IsAdmin           *bool    `json:"is_admin"`
	RequestsPerMinute *int64   `json:"requests_per_minute"`
	TokensPerMinute   *int64   `json:"tokens_per_minute"`
	CostUSDPerMonth   *float64 `json:"cost_usd_per_month"`
}

type Service interface {
	Authenticate(ctx context.Context, username, password string) (*User, error)
	EnsureUser(ctx context.Context, username string) (*principaldomain.Principal, error)
	Create(ctx context.Context, req CreateRequest) (*User, error)
	Get(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, username string, req UpdateRequest) (*User, error)
	Delete(ctx context.Context, username string) error
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	Update(ctx context.Context, db *gorm.DB, user *User) error
	Delete(ctx context.Context, db *gorm.DB, username string) error
	FindByUsername(ctx context.Context, db *gorm.DB, username string) (*User, error)
	List(ctx context.Context, db *gorm.DB) ([]User, error)
}
