package service

import (
	"context"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/freewayhq/freeway/internal/clock"
	registrydomain "github.com/freewayhq/freeway/internal/registry/domain"
	"github.com/freewayhq/freeway/pkg/db"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  registrydomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  registrydomain.Repository
}

func New(p Params) *Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("registry.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// Lookup resolves a model by exact name. The name is not trimmed or folded;
// whatever the request carried is what gets matched.
func (s *Service) Lookup(ctx context.Context, name string) (*registrydomain.Model, error) {
	if name == "" {
		return nil, &registrydomain.NotFoundError{Name: name}
	}

	model, err := s.repo.FindByName(ctx, s.db, name)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, &registrydomain.NotFoundError{Name: name}
	}
	return model, nil
}

func (s *Service) List(ctx context.Context) ([]registrydomain.Model, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) Create(ctx context.Context, req registrydomain.CreateRequest) (*registrydomain.Model, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, registrydomain.ErrInvalidName
	}

	now := s.clock.Now().UTC()
	model := &registrydomain.Model{
		Name:               name,
		InputCostPerToken:  req.InputCostPerToken,
		OutputCostPerToken: req.OutputCostPerToken,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.repo.Insert(ctx, s.db, model); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, registrydomain.ErrAlreadyExists
		}
		return nil, err
	}

	s.log.Info("registered model", zap.String("model", name))
	return model, nil
}

func (s *Service) Update(ctx context.Context, name string, req registrydomain.UpdateRequest) (*registrydomain.Model, error) {
	model, err := s.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}

	if req.InputCostPerToken != nil {
		model.InputCostPerToken = *req.InputCostPerToken
	}
	if req.OutputCostPerToken != nil {
		model.OutputCostPerToken = *req.OutputCostPerToken
	}
	model.UpdatedAt = s.clock.Now().UTC()

	if err := s.repo.Update(ctx, s.db, model); err != nil {
		return nil, err
	}
	return model, nil
}

func (s *Service) Delete(ctx context.Context, name string) error {
	return s.repo.Delete(ctx, s.db, name)
}
