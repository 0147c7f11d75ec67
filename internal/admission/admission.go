package admission

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/freewayhq/freeway/internal/clock"
	ledgerdomain "github.com/freewayhq/freeway/internal/ledger/domain"
	"github.com/freewayhq/freeway/internal/observability/metrics"
	principaldomain "github.com/freewayhq/freeway/internal/principal/domain"
)

const (
	ReasonRequestsPerMinute = "requests_per_minute"
	ReasonTokensPerMinute   = "tokens_per_minute"
	ReasonCostUSDPerMonth   = "cost_usd_per_month"

	usageWindow = time.Minute
	costWindow  = 30 * 24 * time.Hour
)

// DeniedError is a quota denial. Detail is the exact string surfaced to the
// caller with HTTP 429.
type DeniedError struct {
	Reason string
	Detail string
}

func (e *DeniedError) Error() string {
	return e.Detail
}

type Params struct {
	fx.In

	Log     *zap.Logger
	Clock   clock.Clock
	Ledger  ledgerdomain.Service
	Metrics *metrics.Metrics `optional:"true"`
}

// Controller admits or denies completion requests against recorded usage.
// The in-flight request is never pre-charged, so concurrent requests can all
// pass the same check; the window catches up once their usage lands.
type Controller struct {
	log     *zap.Logger
	clock   clock.Clock
	ledger  ledgerdomain.Service
	metrics *metrics.Metrics
}

func New(p Params) *Controller {
	return &Controller{
		log:     p.Log.Named("admission"),
		clock:   p.Clock,
		ledger:  p.Ledger,
		metrics: p.Metrics,
	}
}

// CheckAdmission evaluates the three quota checks in fixed order and stops at
// the first breach: requests per minute, then tokens per minute, then monthly
// cost.
func (c *Controller) CheckAdmission(ctx context.Context, principal *principaldomain.Principal) error {
	if principal == nil {
		return principaldomain.ErrUnauthenticated
	}

	now := c.clock.Now().UTC()

	usage, err := c.ledger.WindowedUsage(ctx, principal.ID, now.Add(-usageWindow))
	if err != nil {
		return err
	}

	if usage.Requests > principal.RequestsPerMinute {
		return c.deny(ctx, principal, &DeniedError{
			Reason: ReasonRequestsPerMinute,
			Detail: fmt.Sprintf("requests_per_minute=%d exceeded limit=%d", usage.Requests, principal.RequestsPerMinute),
		})
	}

	if usage.TotalTokens() > principal.TokensPerMinute {
		return c.deny(ctx, principal, &DeniedError{
			Reason: ReasonTokensPerMinute,
			Detail: fmt.Sprintf("tokens_per_minute=%d exceeded limit=%d", usage.TotalTokens(), principal.TokensPerMinute),
		})
	}

	cost, err := c.ledger.WindowedCost(ctx, principal.ID, now.Add(-costWindow))
	if err != nil {
		return err
	}
	if cost != nil && *cost != 0 && *cost > principal.CostUSDPerMonth {
		return c.deny(ctx, principal, &DeniedError{
			Reason: ReasonCostUSDPerMonth,
			Detail: fmt.Sprintf("cost_usd_per_month exceeded=%v exceeded limit=%v", *cost, principal.CostUSDPerMonth),
		})
	}

	return nil
}

func (c *Controller) deny(ctx context.Context, principal *principaldomain.Principal, denial *DeniedError) error {
	c.metrics.RecordAdmissionDenied(ctx, denial.Reason)
	c.log.Info("request denied",
		zap.String("user_id", principal.ID),
		zap.String("username", principal.Username),
		zap.String("reason", denial.Reason),
	)
	return denial
}
