package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Model is a priced completion model. Name is the exact identifier requests
// must carry; lookup is case-sensitive.
type Model struct {
	Name               string    `gorm:"primaryKey;size:255" json:"name"`
	InputCostPerToken  float64   `json:"input_cost_per_token"`
	OutputCostPerToken float64   `json:"output_cost_per_token"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type CreateRequest struct {
	Name               string  `json:"name" binding:"required"`
	InputCostPerToken  float64 `json:"input_cost_per_token"`
	OutputCostPerToken float64 `json:"output_cost_per_token"`
}

type UpdateRequest struct {
	InputCostPerToken  *float64 `json:"input_cost_per_token"`
	OutputCostPerToken *float64 `json:"output_cost_per_token"`
}

type Service interface {
	Lookup(ctx context.Context, name string) (*Model, error)
	List(ctx context.Context) ([]Model, error)
	Create(ctx context.Context, req CreateRequest) (*Model, error)
	Update(ctx context.Context, name string, req UpdateRequest) (*Model, error)
	Delete(ctx context.Context, name string) error
}

var (
	ErrInvalidName   = errors.New("invalid_model_name")
	ErrAlreadyExists = errors.New("model_already_exists")
	ErrReadOnly      = errors.New("registry_read_only")
)

// NotFoundError renders the exact denial callers see for unknown models.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("model=%s not registered", e.Name)
}

// IsNotFound reports whether err is a registry miss.
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}
