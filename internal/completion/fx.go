package completion

import "go.uber.org/fx"

var Module = fx.Module("completion.service",
	fx.Provide(New),
)
