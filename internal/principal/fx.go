package principal

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/freewayhq/freeway/internal/clock"
	"github.com/freewayhq/freeway/internal/config"
	"github.com/freewayhq/freeway/internal/principal/domain"
	"github.com/freewayhq/freeway/internal/principal/local"
	"github.com/freewayhq/freeway/internal/principal/oidc"
)

var Module = fx.Module("principal",
	fx.Provide(
		provideLocalResolver,
		provideResolver,
	),
)

// provideLocalResolver only builds the HS256 verifier when the local backend
// is active; OIDC deployments have no signing secret.
func provideLocalResolver(cfg config.Config, clk clock.Clock) (*local.Resolver, error) {
	if cfg.AuthBackend != config.AuthBackendLocal {
		return nil, nil
	}
	return local.NewResolver(cfg, clk)
}

// provideResolver picks the auth backend once at startup. Handlers only ever
// see domain.Resolver.
func provideResolver(
	lc fx.Lifecycle,
	cfg config.Config,
	localResolver *local.Resolver,
	provisioner oidc.UserProvisioner,
	log *zap.Logger,
) (domain.Resolver, error) {
	if cfg.AuthBackend == config.AuthBackendOIDC {
		return oidc.NewResolver(lc, cfg, provisioner, log)
	}
	return localResolver, nil
}
