package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/freewayhq/freeway/internal/clock"
	principaldomain "github.com/freewayhq/freeway/internal/principal/domain"
	userdomain "github.com/freewayhq/freeway/internal/user/domain"
	"github.com/freewayhq/freeway/internal/user/password"
	"github.com/freewayhq/freeway/pkg/db"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  userdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  userdomain.Repository
}

func New(p Params) userdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("user.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// Authenticate verifies a username/password pair. Unknown usernames and bad
// passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, username, pass string) (*userdomain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || pass == "" {
		return nil, userdomain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByUsername(ctx, s.db, username)
	if err != nil {
		return nil, err
	}
	if user == nil || !password.Verify(pass, user.PasswordHash) {
		return nil, userdomain.ErrInvalidCredentials
	}
	return user, nil
}

// EnsureUser returns the quota envelope for an IdP-verified identity, creating
// the user with default quotas on first sight. Provisioned users carry no
// password and cannot log in locally.
func (s *Service) EnsureUser(ctx context.Context, username string) (*principaldomain.Principal, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, userdomain.ErrInvalidUsername
	}

	user, err := s.repo.FindByUsername(ctx, s.db, username)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user.Principal(), nil
	}

	now := s.clock.Now().UTC()
	user = &userdomain.User{
		ID:                s.genID.Generate(),
		Username:          username,
		RequestsPerMinute: userdomain.DefaultRequestsPerMinute,
		TokensPerMinute:   userdomain.DefaultTokensPerMinute,
		CostUSDPerMonth:   userdomain.DefaultCostUSDPerMonth,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Insert(ctx, s.db, user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Lost a provisioning race; the winner's row is authoritative.
			existing, findErr := s.repo.FindByUsername(ctx, s.db, username)
			if findErr == nil && existing != nil {
				return existing.Principal(), nil
			}
		}
		return nil, err
	}

	s.log.Info("provisioned user", zap.String("username", username))
	return user.Principal(), nil
}

func (s *Service) Create(ctx context.Context, req userdomain.CreateRequest) (*userdomain.User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, userdomain.ErrInvalidUsername
	}
	if req.Password == "" {
		return nil, userdomain.ErrInvalidPassword
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	user := &userdomain.User{
		ID:                s.genID.Generate(),
		Username:          username,
		PasswordHash:      hash,
		IsAdmin:           req.IsAdmin,
		RequestsPerMinute: valueOrDefault(req.RequestsPerMinute, userdomain.DefaultRequestsPerMinute),
		TokensPerMinute:   valueOrDefault(req.TokensPerMinute, userdomain.DefaultTokensPerMinute),
		CostUSDPerMonth:   floatOrDefault(req.CostUSDPerMonth, userdomain.DefaultCostUSDPerMonth),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.repo.Insert(ctx, s.db, user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, userdomain.ErrUsernameTaken
		}
		return nil, err
	}

	s.log.Info("created user", zap.String("username", username), zap.Bool("is_admin", user.IsAdmin))
	return user, nil
}

func (s *Service) Get(ctx context.Context, username string) (*userdomain.User, error) {
	user, err := s.repo.FindByUsername(ctx, s.db, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, userdomain.ErrNotFound
	}
	return user, nil
}

func (s *Service) List(ctx context.Context) ([]userdomain.User, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) Update(ctx context.Context, username string, req userdomain.UpdateRequest) (*userdomain.User, error) {
	user, err := s.Get(ctx, username)
	if err != nil {
		return nil, err
	}

	if req.Password != nil {
		if *req.Password == "" {
			return nil, userdomain.ErrInvalidPassword
		}
		hash, err := password.Hash(*req.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if req.IsAdmin != nil {
		user.IsAdmin = *req.IsAdmin
	}
	if req.RequestsPerMinute != nil {
		user.RequestsPerMinute = *req.RequestsPerMinute
	}
	if req.TokensPerMinute != nil {
		user.TokensPerMinute = *req.TokensPerMinute
	}
	if req.CostUSDPerMonth != nil {
		user.CostUSDPerMonth = *req.CostUSDPerMonth
	}
	user.UpdatedAt = s.clock.Now().UTC()

	if err := s.repo.Update(ctx, s.db, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) Delete(ctx context.Context, username string) error {
	return s.repo.Delete(ctx, s.db, strings.TrimSpace(username))
}

func valueOrDefault(value *int64, def int64) int64 {
	if value == nil {
		return def
	}
	return *value
}

func floatOrDefault(value *float64, def float64) float64 {
	if value == nil {
		return def
	}
	return *value
}
