package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"

	"github.com/freewayhq/freeway/internal/config"
)

const keyIngressUser = "ingress:completions:user:%s"

// IngressLimiter is a transport-level abuse gate in front of the completion
// endpoint. It is not a quota: admission against the usage ledger still
// decides whether a request may spend tokens.
type IngressLimiter struct {
	enabled bool

	bucket *TokenBucket
	rate   float64
	burst  int
}

// NewIngressLimiter returns a disabled limiter when REDIS_ADDR is unset.
func NewIngressLimiter(cfg config.Config) (*IngressLimiter, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return &IngressLimiter{}, nil
	}
	if cfg.IngressRate <= 0 || cfg.IngressBurst <= 0 {
		return nil, fmt.Errorf("ingress rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
	})

	return &IngressLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    cfg.IngressRate,
		burst:   cfg.IngressBurst,
	}, nil
}

func (l *IngressLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// Allow consumes one ingress token for the user. Redis outages fail open so
// the gateway keeps serving.
func (l *IngressLimiter) Allow(ctx context.Context, userID string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyIngressUser, strings.TrimSpace(userID)), l.rate, l.burst)
}
