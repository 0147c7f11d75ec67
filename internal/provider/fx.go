package provider

import (
	"go.uber.org/fx"

	providerdomain "github.com/freewayhq/freeway/internal/provider/domain"
	"github.com/freewayhq/freeway/internal/provider/openai"
)

var Module = fx.Module("provider",
	fx.Provide(openai.New),
	fx.Provide(func(c *openai.Client) providerdomain.Client { return c }),
)
