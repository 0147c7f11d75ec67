package registry

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/freewayhq/freeway/internal/config"
	registrydomain "github.com/freewayhq/freeway/internal/registry/domain"
	"github.com/freewayhq/freeway/internal/registry/filecatalog"
	"github.com/freewayhq/freeway/internal/registry/repository"
	"github.com/freewayhq/freeway/internal/registry/service"
)

var Module = fx.Module("registry.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(provideService),
)

// provideService picks the catalog backend once at startup: the gorm-backed
// registry by default, or the read-only file catalog.
func provideService(cfg config.Config, dbService *service.Service, log *zap.Logger) (registrydomain.Service, error) {
	if cfg.RegistrySource == config.RegistrySourceFile {
		return filecatalog.New(cfg, log)
	}
	return dbService, nil
}
