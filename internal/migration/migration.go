package migration

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	ledgerdomain "github.com/freewayhq/freeway/internal/ledger/domain"
	registrydomain "github.com/freewayhq/freeway/internal/registry/domain"
	userdomain "github.com/freewayhq/freeway/internal/user/domain"
)

var Module = fx.Module("migration",
	fx.Invoke(AutoMigrate),
)

// AutoMigrate creates or updates the gateway schema at startup.
func AutoMigrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running schema migration")
	return db.AutoMigrate(
		&userdomain.User{},
		&registrydomain.Model{},
		&ledgerdomain.UsageEvent{},
	)
}
