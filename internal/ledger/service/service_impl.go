package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	ledgerdomain "github.com/freewayhq/freeway/internal/ledger/domain"
	"github.com/freewayhq/freeway/internal/observability/metrics"
	"github.com/freewayhq/freeway/pkg/db"
	"github.com/freewayhq/freeway/pkg/db/pagination"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    ledgerdomain.Repository
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    ledgerdomain.Repository
	metrics *metrics.Metrics
}

func New(p Params) ledgerdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("ledger.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

// Append records one completion. The response_id uniqueness constraint is the
// backstop against a pipeline double write.
func (s *Service) Append(ctx context.Context, event *ledgerdomain.UsageEvent) error {
	if event == nil {
		return ledgerdomain.ErrInvalidEvent
	}
	if strings.TrimSpace(event.ResponseID) == "" || strings.TrimSpace(event.UserID) == "" {
		return ledgerdomain.ErrInvalidEvent
	}

	if event.ID == 0 {
		event.ID = s.genID.Generate()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if err := s.repo.Insert(ctx, s.db, event); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return ledgerdomain.ErrDuplicateEvent
		}
		return err
	}

	s.metrics.RecordUsageEvent(ctx, event.Model)
	s.metrics.RecordTokens(ctx, event.Model, "prompt", event.PromptTokens)
	s.metrics.RecordTokens(ctx, event.Model, "completion", event.CompletionTokens)
	return nil
}

func (s *Service) WindowedUsage(ctx context.Context, userID string, since time.Time) (ledgerdomain.WindowedUsage, error) {
	return s.repo.AggregateUsage(ctx, s.db, userID, since)
}

func (s *Service) WindowedCost(ctx context.Context, userID string, since time.Time) (*float64, error) {
	return s.repo.AggregateCost(ctx, s.db, userID, since)
}

func (s *Service) List(ctx context.Context, req ledgerdomain.ListRequest) (ledgerdomain.ListResponse, error) {
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return ledgerdomain.ListResponse{}, ledgerdomain.ErrInvalidDateRange
	}

	page := pagination.Page{Skip: req.Skip, Limit: req.Limit}.Normalize()
	req.Skip = page.Skip
	req.Limit = page.Limit

	items, err := s.repo.Find(ctx, s.db, req)
	if err != nil {
		return ledgerdomain.ListResponse{}, err
	}
	if items == nil {
		items = []ledgerdomain.UsageEvent{}
	}

	return ledgerdomain.ListResponse{
		Items: items,
		Skip:  req.Skip,
		Limit: req.Limit,
	}, nil
}
