package oidc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/freewayhq/freeway/internal/config"
	"github.com/freewayhq/freeway/internal/principal/domain"
)

// UserProvisioner maps an IdP identity onto a local quota envelope, creating
// the user with default quotas on first sight.
type UserProvisioner interface {
	EnsureUser(ctx context.Context, username string) (*domain.Principal, error)
}

// Resolver verifies tokens issued by an external IdP against its JWKS.
type Resolver struct {
	jwks          *keyfunc.JWKS
	usernameClaim string
	provisioner   UserProvisioner
	log           *zap.Logger
}

func NewResolver(lc fx.Lifecycle, cfg config.Config, provisioner UserProvisioner, log *zap.Logger) (*Resolver, error) {
	jwksURL := strings.TrimSpace(cfg.OIDCJWKSURL)
	if jwksURL == "" {
		return nil, fmt.Errorf("OIDC_JWKS_URL is required for the oidc auth backend")
	}

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			log.Warn("jwks refresh failed", zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				_ = ctx
				jwks.EndBackground()
				return nil
			},
		})
	}

	usernameClaim := strings.TrimSpace(cfg.OIDCUsernameClaim)
	if usernameClaim == "" {
		usernameClaim = "preferred_username"
	}

	return &Resolver{
		jwks:          jwks,
		usernameClaim: usernameClaim,
		provisioner:   provisioner,
		log:           log.Named("principal.oidc"),
	}, nil
}

// Resolve verifies the token signature and expiry against the JWKS, then maps
// the quota and admin claims straight off the token onto the Principal. Tokens
// that carry no quota claims fall back to the local user store, provisioning
// the identity with default quotas on first sight. Every failure collapses to
// ErrUnauthenticated.
func (r *Resolver) Resolve(ctx context.Context, token string) (*domain.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, r.jwks.Keyfunc)
	if err != nil || !parsed.Valid {
		return nil, domain.ErrUnauthenticated
	}

	username := r.username(claims)
	if username == "" {
		return nil, domain.ErrUnauthenticated
	}

	if principal, ok := principalFromClaims(claims, username); ok {
		return principal, nil
	}

	principal, err := r.provisioner.EnsureUser(ctx, username)
	if err != nil {
		r.log.Warn("user provisioning failed", zap.String("username", username), zap.Error(err))
		return nil, domain.ErrUnauthenticated
	}
	return principal, nil
}

// principalFromClaims builds the Principal directly from IdP-asserted claims.
// The quota envelope is authoritative only when the token carries all three
// quota claims; partial claim sets fall back to the user store.
func principalFromClaims(claims jwt.MapClaims, username string) (*domain.Principal, bool) {
	rpm, okRPM := claimInt64(claims, "requests_per_minute")
	tpm, okTPM := claimInt64(claims, "tokens_per_minute")
	cost, okCost := claimFloat(claims, "cost_usd_per_month")
	if !okRPM || !okTPM || !okCost {
		return nil, false
	}

	id, _ := claims["sub"].(string)
	isAdmin, _ := claims["is_admin"].(bool)
	return &domain.Principal{
		ID:                id,
		Username:          username,
		IsAdmin:           isAdmin,
		RequestsPerMinute: rpm,
		TokensPerMinute:   tpm,
		CostUSDPerMonth:   cost,
	}, true
}

func claimInt64(claims jwt.MapClaims, key string) (int64, bool) {
	value, ok := claims[key].(float64)
	if !ok {
		return 0, false
	}
	return int64(value), true
}

func claimFloat(claims jwt.MapClaims, key string) (float64, bool) {
	value, ok := claims[key].(float64)
	return value, ok
}

func (r *Resolver) username(claims jwt.MapClaims) string {
	if value, ok := claims[r.usernameClaim].(string); ok {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	if value, ok := claims["sub"].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

var _ domain.Resolver = (*Resolver)(nil)
