package local

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/freewayhq/freeway/internal/clock"
	"github.com/freewayhq/freeway/internal/config"
	"github.com/freewayhq/freeway/internal/principal/domain"
)

// Claims is the token payload issued by the local backend. Quotas are embedded
// at issue time so resolution never touches the user store.
type Claims struct {
	jwt.RegisteredClaims
	UserID            string  `json:"user_id"`
	IsAdmin           bool    `json:"is_admin"`
	RequestsPerMinute int64   `json:"requests_per_minute"`
	TokensPerMinute   int64   `json:"tokens_per_minute"`
	CostUSDPerMonth   float64 `json:"cost_usd_per_month"`
}

// Resolver verifies locally issued HS256 tokens.
type Resolver struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	clock  clock.Clock
}

func NewResolver(cfg config.Config, clk clock.Clock) (*Resolver, error) {
	secret := strings.TrimSpace(cfg.AuthJWTSecret)
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required for the local auth backend")
	}

	method := jwt.GetSigningMethod(strings.ToUpper(strings.TrimSpace(cfg.AuthJWTAlgorithm)))
	if method == nil {
		return nil, fmt.Errorf("unsupported JWT algorithm %q", cfg.AuthJWTAlgorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("local auth backend requires an HMAC algorithm, got %q", cfg.AuthJWTAlgorithm)
	}

	ttl := time.Duration(cfg.AuthTokenTTLMinute) * time.Minute
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &Resolver{
		secret: []byte(secret),
		method: method,
		ttl:    ttl,
		clock:  clk,
	}, nil
}

// Resolve parses and verifies a bearer token. Every failure collapses to
// ErrUnauthenticated so callers cannot distinguish bad signatures from
// expired or malformed tokens.
func (r *Resolver) Resolve(ctx context.Context, token string) (*domain.Principal, error) {
	_ = ctx

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != r.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return r.secret, nil
	}, jwt.WithTimeFunc(r.clock.Now))
	if err != nil || !parsed.Valid {
		return nil, domain.ErrUnauthenticated
	}

	username := strings.TrimSpace(claims.Subject)
	if username == "" {
		return nil, domain.ErrUnauthenticated
	}

	return &domain.Principal{
		ID:                claims.UserID,
		Username:          username,
		IsAdmin:           claims.IsAdmin,
		RequestsPerMinute: claims.RequestsPerMinute,
		TokensPerMinute:   claims.TokensPerMinute,
		CostUSDPerMonth:   claims.CostUSDPerMonth,
	}, nil
}

// Issue signs an access token for the principal with its quotas embedded.
func (r *Resolver) Issue(p domain.Principal) (string, error) {
	now := r.clock.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(r.ttl)),
		},
		UserID:            p.ID,
		IsAdmin:           p.IsAdmin,
		RequestsPerMinute: p.RequestsPerMinute,
		TokensPerMinute:   p.TokensPerMinute,
		CostUSDPerMonth:   p.CostUSDPerMonth,
	}

	return jwt.NewWithClaims(r.method, claims).SignedString(r.secret)
}

// TTL reports the configured token lifetime.
func (r *Resolver) TTL() time.Duration {
	return r.ttl
}

var _ domain.Resolver = (*Resolver)(nil)
