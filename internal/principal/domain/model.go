package domain

import "context"

// Principal is the authenticated caller with its quota envelope. Quotas travel
// with the principal so downstream checks never re-read the auth backend.
type Principal struct {
	ID                string  `json:"id"`
	Username          string  `json:"username"`
	IsAdmin           bool    `json:"is_admin"`
	RequestsPerMinute int64   `json:"requests_per_minute"`
	TokensPerMinute   int64   `json:"tokens_per_minute"`
	CostUSDPerMonth   float64 `json:"cost_usd_per_month"`
}

// Resolver turns a bearer token into a Principal.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*Principal, error)
}
