package user

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/freewayhq/freeway/internal/config"
	"github.com/freewayhq/freeway/internal/principal/oidc"
	userdomain "github.com/freewayhq/freeway/internal/user/domain"
	"github.com/freewayhq/freeway/internal/user/repository"
	"github.com/freewayhq/freeway/internal/user/service"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(provideProvisioner),
	fx.Invoke(seedAdmin),
)

func provideProvisioner(svc userdomain.Service) oidc.UserProvisioner {
	return svc
}

// seedAdmin guarantees a usable admin account on a fresh database.
func seedAdmin(cfg config.Config, svc userdomain.Service, log *zap.Logger) error {
	username := strings.TrimSpace(cfg.SeedAdminUsername)
	if username == "" || cfg.SeedAdminPassword == "" {
		return nil
	}

	_, err := svc.Create(context.Background(), userdomain.CreateRequest{
		Username: username,
		Password: cfg.SeedAdminPassword,
		IsAdmin:  true,
	})
	if err != nil {
		if errors.Is(err, userdomain.ErrUsernameTaken) {
			return nil
		}
		return err
	}

	log.Info("seeded admin user", zap.String("username", username))
	return nil
}
