package ledger

import (
	"github.com/freewayhq/freeway/internal/ledger/repository"
	"github.com/freewayhq/freeway/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
